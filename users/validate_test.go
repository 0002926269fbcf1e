package users

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidateUsername(t *testing.T) {
	for _, ok := range []string{"Reza", "abc", "user_01", "A2345678901234567890"} {
		assert.NoError(t, ValidateUsername(ok), ok)
	}
	for _, bad := range []string{"", "ab", "has space", "dash-name", "A23456789012345678901", "رضا"} {
		assert.Error(t, ValidateUsername(bad), bad)
	}
}

func TestValidateEmail(t *testing.T) {
	for _, ok := range []string{"user@example.com", "first.last+tag@sub.example.org"} {
		assert.NoError(t, ValidateEmail(ok), ok)
	}
	for _, bad := range []string{"", "invalid", "@example.com", "user@", "Name <user@example.com>", "user@example.com\nBcc: x@y.com", "user@localhost"} {
		assert.Error(t, ValidateEmail(bad), bad)
	}
}

func TestValidatePassword(t *testing.T) {
	tests := []struct {
		name     string
		password string
		wantErr  bool
	}{
		{"ok", "password123", false},
		{"min length", "12345678", false},
		{"max length", "12345678901234567890123456789012", false},
		{"too short", "1234567", true},
		{"too long", "123456789012345678901234567890123", true},
		{"space", "pass word123", true},
		{"tab", "pass\tword123", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidatePassword(tt.password)
			if tt.wantErr {
				assert.Error(t, err)
				assert.True(t, IsValidationError(err))
			} else {
				assert.NoError(t, err)
			}
		})
	}
}
