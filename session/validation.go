package session

import (
	"strings"
	"unicode"

	"github.com/pkg/errors"
)

// validateCredentials checks the shape of login/register input before any
// network or throttle interaction. It returns ok=false with a field-level
// Result when the input is unusable.
func validateCredentials(email, password string) (Result, bool) {
	if email == "" {
		return Result{Field: "email", Error: "email is required"}, false
	}
	if !strings.Contains(email, "@") || !strings.Contains(email, ".") {
		return Result{Field: "email", Error: "email address is not valid"}, false
	}
	if password == "" {
		return Result{Field: "password", Error: "password is required"}, false
	}
	return Result{}, true
}

// validatePasswordStrength enforces the registration password policy:
// at least eight characters with an upper-case letter, a lower-case letter
// and a digit.
func validatePasswordStrength(password string) error {
	if len(password) < 8 {
		return errors.New("password must be at least 8 characters long")
	}
	var hasUpper, hasLower, hasDigit bool
	for _, r := range password {
		switch {
		case unicode.IsUpper(r):
			hasUpper = true
		case unicode.IsLower(r):
			hasLower = true
		case unicode.IsDigit(r):
			hasDigit = true
		}
	}
	if !hasUpper || !hasLower || !hasDigit {
		return errors.New("password must contain upper-case, lower-case and numeric characters")
	}
	return nil
}
