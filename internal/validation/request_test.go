package validation

import (
	"strings"
	"testing"
)

func TestValidateRepositoryName(t *testing.T) {
	for _, name := range []string{"core", "extra", "community", "unsupported"} {
		if err := ValidateRepositoryName(name); err != nil {
			t.Errorf("ValidateRepositoryName(%q) = %v, want nil", name, err)
		}
	}
	for _, name := range []string{"", "Core", "testing", "aur"} {
		if err := ValidateRepositoryName(name); err == nil {
			t.Errorf("ValidateRepositoryName(%q) = nil, want error", name)
		}
	}
}

func TestValidateUsername(t *testing.T) {
	for _, name := range []string{"alice", "bob-2", "x_y", "0day"} {
		if err := ValidateUsername(name); err != nil {
			t.Errorf("ValidateUsername(%q) = %v, want nil", name, err)
		}
	}
	for _, name := range []string{"", "a", "Alice", "has space", "-leading", strings.Repeat("a", 33)} {
		if err := ValidateUsername(name); err == nil {
			t.Errorf("ValidateUsername(%q) = nil, want error", name)
		}
	}
}

func TestValidatePassword(t *testing.T) {
	if err := ValidatePassword("12345678"); err != nil {
		t.Errorf("8-character password rejected: %v", err)
	}
	if err := ValidatePassword("1234567"); err == nil {
		t.Error("7-character password accepted")
	}
}

func TestValidateCommentBody(t *testing.T) {
	if err := ValidateCommentBody("works for me"); err != nil {
		t.Errorf("valid comment rejected: %v", err)
	}
	if err := ValidateCommentBody("   \n\t"); err == nil {
		t.Error("whitespace-only comment accepted")
	}
	if err := ValidateCommentBody(strings.Repeat("x", maxCommentLength+1)); err == nil {
		t.Error("oversized comment accepted")
	}
}
