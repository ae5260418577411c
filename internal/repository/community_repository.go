package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/archaur/archaur/internal/models"
)

// CommunityRepository persists the social layer around packages:
// comments, votes and update-notification subscriptions.
type CommunityRepository struct {
	db *sql.DB
}

func NewCommunityRepository(db *sql.DB) *CommunityRepository {
	return &CommunityRepository{db: db}
}

// AddComment attaches a comment to a package.
func (r *CommunityRepository) AddComment(ctx context.Context, packageID, userID uuid.UUID, body string) (*models.Comment, error) {
	var c models.Comment
	c.PackageID = packageID
	c.UserID = userID
	c.Body = body
	err := r.db.QueryRowContext(ctx, `INSERT INTO comments (package_id, user_id, body)
		VALUES ($1, $2, $3) RETURNING id, created_at`,
		packageID, userID, body).Scan(&c.ID, &c.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to add comment: %w", err)
	}
	return &c, nil
}

// ListComments returns a package's comments, newest first.
func (r *CommunityRepository) ListComments(ctx context.Context, packageID uuid.UUID) ([]models.Comment, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT c.id, c.package_id, c.user_id, u.username, c.body, c.created_at
		FROM comments c JOIN users u ON u.id = c.user_id
		WHERE c.package_id = $1 ORDER BY c.created_at DESC`, packageID)
	if err != nil {
		return nil, fmt.Errorf("failed to list comments: %w", err)
	}
	defer rows.Close()

	var out []models.Comment
	for rows.Next() {
		var c models.Comment
		if err := rows.Scan(&c.ID, &c.PackageID, &c.UserID, &c.Username, &c.Body, &c.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan comment: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// AddVote records a user's vote. Voting twice is a no-op.
func (r *CommunityRepository) AddVote(ctx context.Context, packageID, userID uuid.UUID) error {
	_, err := r.db.ExecContext(ctx, `INSERT INTO votes (package_id, user_id)
		VALUES ($1, $2) ON CONFLICT DO NOTHING`, packageID, userID)
	if err != nil {
		return fmt.Errorf("failed to add vote: %w", err)
	}
	return nil
}

// RemoveVote withdraws a user's vote.
func (r *CommunityRepository) RemoveVote(ctx context.Context, packageID, userID uuid.UUID) error {
	_, err := r.db.ExecContext(ctx,
		"DELETE FROM votes WHERE package_id = $1 AND user_id = $2", packageID, userID)
	if err != nil {
		return fmt.Errorf("failed to remove vote: %w", err)
	}
	return nil
}

// Subscribe enrolls a user for update/delete mail about a package.
// Subscribing twice is a no-op.
func (r *CommunityRepository) Subscribe(ctx context.Context, packageID, userID uuid.UUID) error {
	_, err := r.db.ExecContext(ctx, `INSERT INTO notifications (package_id, user_id)
		VALUES ($1, $2) ON CONFLICT DO NOTHING`, packageID, userID)
	if err != nil {
		return fmt.Errorf("failed to subscribe: %w", err)
	}
	return nil
}

// Unsubscribe removes a user's subscription.
func (r *CommunityRepository) Unsubscribe(ctx context.Context, packageID, userID uuid.UUID) error {
	_, err := r.db.ExecContext(ctx,
		"DELETE FROM notifications WHERE package_id = $1 AND user_id = $2", packageID, userID)
	if err != nil {
		return fmt.Errorf("failed to unsubscribe: %w", err)
	}
	return nil
}

// SubscriberEmails returns the addresses subscribed to a package by
// name. A missing package simply has no subscribers.
func (r *CommunityRepository) SubscriberEmails(ctx context.Context, packageName string) ([]string, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT u.email
		FROM notifications n
		JOIN users u ON u.id = n.user_id
		JOIN packages p ON p.id = n.package_id
		WHERE p.name = $1`, packageName)
	if err != nil {
		return nil, fmt.Errorf("failed to list subscribers: %w", err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var email string
		if err := rows.Scan(&email); err != nil {
			return nil, fmt.Errorf("failed to scan subscriber: %w", err)
		}
		out = append(out, email)
	}
	return out, rows.Err()
}

// GetUser loads an account by id.
func (r *CommunityRepository) GetUser(ctx context.Context, id uuid.UUID) (*models.User, error) {
	var u models.User
	err := r.db.QueryRowContext(ctx,
		"SELECT id, username, email, created_at FROM users WHERE id = $1", id).
		Scan(&u.ID, &u.Username, &u.Email, &u.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("user %s not found", id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load user: %w", err)
	}
	return &u, nil
}
