// Package validation checks API request fields before they reach the
// service layer.
package validation

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
)

const (
	maxCommentLength  = 4096
	minPasswordLength = 8
)

var reUsername = regexp.MustCompile(`^[a-z0-9][a-z0-9_-]{1,31}$`)

// repositoryNames is the fixed enumeration a package can be submitted
// to. The database seeds the same set.
var repositoryNames = map[string]bool{
	"core":        true,
	"extra":       true,
	"community":   true,
	"unsupported": true,
}

// ValidateRepositoryName rejects submissions to unknown repositories.
func ValidateRepositoryName(name string) error {
	if !repositoryNames[name] {
		return fmt.Errorf("unknown repository %q", name)
	}
	return nil
}

// ValidateUsername enforces the account-name format: lower-case
// alphanumeric with underscores and hyphens, 2 to 32 characters.
func ValidateUsername(name string) error {
	if !reUsername.MatchString(name) {
		return errors.New("username must be 2-32 lower-case alphanumeric characters")
	}
	return nil
}

// ValidatePassword enforces the minimum password length.
func ValidatePassword(password string) error {
	if len(password) < minPasswordLength {
		return fmt.Errorf("password must be at least %d characters", minPasswordLength)
	}
	return nil
}

// ValidateCommentBody rejects empty or oversized comments.
func ValidateCommentBody(body string) error {
	if strings.TrimSpace(body) == "" {
		return errors.New("comment body is required")
	}
	if len(body) > maxCommentLength {
		return fmt.Errorf("comment exceeds %d characters", maxCommentLength)
	}
	return nil
}
