package credentials

import (
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"
)

const (
	MinPasswordLength = 8
	MinFullNameLength = 2
)

const (
	PasswordTooShortMsg  = "Password must be at least 8 characters long"
	PasswordNoUpperMsg   = "Password must contain at least one uppercase letter"
	PasswordNoLowerMsg   = "Password must contain at least one lowercase letter"
	PasswordNoNumberMsg  = "Password must contain at least one number"
	InvalidEmailMsg      = "Please enter a valid email address"
	FullNameTooShortMsg  = "Full name must be at least 2 characters long"
	MissingCredentialMsg = "Email and password are required"
)

var emailPattern = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

// PasswordResult is the outcome of a password strength check. Message holds
// the first rule that failed and is empty when Valid is true.
type PasswordResult struct {
	Valid   bool   `json:"valid"`
	Message string `json:"message,omitempty"`
}

// ValidateEmail reports whether text has the shape local@domain.tld with no
// whitespace and a single @.
func ValidateEmail(text string) bool {
	return emailPattern.MatchString(text)
}

// ValidatePassword checks length, then uppercase, then lowercase, then digit,
// and reports the first failing rule in that order.
func ValidatePassword(text string) PasswordResult {
	if utf8.RuneCountInString(text) < MinPasswordLength {
		return PasswordResult{Message: PasswordTooShortMsg}
	}

	var (
		hasUpper  bool
		hasLower  bool
		hasNumber bool
	)

	for _, char := range text {
		switch {
		case unicode.IsUpper(char):
			hasUpper = true
		case unicode.IsLower(char):
			hasLower = true
		case unicode.IsDigit(char):
			hasNumber = true
		}
	}

	if !hasUpper {
		return PasswordResult{Message: PasswordNoUpperMsg}
	}
	if !hasLower {
		return PasswordResult{Message: PasswordNoLowerMsg}
	}
	if !hasNumber {
		return PasswordResult{Message: PasswordNoNumberMsg}
	}

	return PasswordResult{Valid: true}
}

// ValidateFullName applies the sign up rule for display names.
func ValidateFullName(text string) bool {
	return utf8.RuneCountInString(strings.TrimSpace(text)) >= MinFullNameLength
}
