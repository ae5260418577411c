package models

import (
	"time"

	"github.com/google/uuid"
)

// User is a maintainer account.
type User struct {
	ID       uuid.UUID `json:"id"`
	Username string    `json:"username"`
	Email    string    `json:"email"`

	// PasswordHash is the bcrypt hash of the account password. It is
	// never serialized.
	PasswordHash string `json:"-"`

	CreatedAt time.Time `json:"created_at"`
}

// Comment is a user comment on a package page.
type Comment struct {
	ID        uuid.UUID `json:"id"`
	PackageID uuid.UUID `json:"package_id"`
	UserID    uuid.UUID `json:"user_id"`
	Username  string    `json:"username"`
	Body      string    `json:"body"`
	CreatedAt time.Time `json:"created_at"`
}

// Notification subscribes a user to update/delete mail for a package.
type Notification struct {
	ID        uuid.UUID `json:"id"`
	PackageID uuid.UUID `json:"package_id"`
	UserID    uuid.UUID `json:"user_id"`
	CreatedAt time.Time `json:"created_at"`
}

// Vote is a user's vote for a package.
type Vote struct {
	PackageID uuid.UUID `json:"package_id"`
	UserID    uuid.UUID `json:"user_id"`
	CreatedAt time.Time `json:"created_at"`
}
