package users

import (
	"errors"
	"net/mail"
	"regexp"
	"strings"
	"unicode/utf8"
)

var (
	usernamePattern = regexp.MustCompile(`^[a-zA-Z0-9_]{3,20}$`)
	emailPattern    = regexp.MustCompile(`^[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}$`)
)

// Password length limits. bcrypt only reads the first 72 bytes.
const (
	MinPasswordLength = 8
	MaxPasswordLength = 32
)

// ValidationError reports an invalid registration field.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return e.Field + ": " + e.Message
}

// IsValidationError checks if an error is a ValidationError.
func IsValidationError(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

// ValidateUsername checks the username format.
func ValidateUsername(username string) error {
	if !usernamePattern.MatchString(username) {
		return &ValidationError{Field: "username", Message: "must be 3-20 letters, digits or underscores"}
	}
	return nil
}

// ValidateEmail checks that email is a single plain address.
func ValidateEmail(email string) error {
	if len(email) > 254 || strings.ContainsAny(email, "\r\n<>") {
		return &ValidationError{Field: "email", Message: "invalid email address"}
	}
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email || !emailPattern.MatchString(email) {
		return &ValidationError{Field: "email", Message: "invalid email address"}
	}
	return nil
}

// ValidatePassword checks password length and that it has no spaces.
func ValidatePassword(password string) error {
	n := utf8.RuneCountInString(password)
	if n < MinPasswordLength || n > MaxPasswordLength {
		return &ValidationError{Field: "password", Message: "must be 8-32 characters"}
	}
	if strings.ContainsFunc(password, func(r rune) bool { return r == ' ' || r == '\t' || r == '\n' || r == '\r' }) {
		return &ValidationError{Field: "password", Message: "must not contain spaces"}
	}
	return nil
}

// ValidateRegistration checks every registration field.
func ValidateRegistration(username, email, password string) error {
	if err := ValidateUsername(username); err != nil {
		return err
	}
	if err := ValidateEmail(email); err != nil {
		return err
	}
	return ValidatePassword(password)
}
