package errors

import (
	"context"
	"errors"
	"net"
	"net/url"
	"strings"
)

// Code is the auth error taxonomy exposed to callers.
type Code string

const (
	CodeInvalidInput       Code = "invalid_input"
	CodeInvalidCredentials Code = "invalid_credentials"
	CodeUserNotFound       Code = "user_not_found"
	CodeUserAlreadyExists  Code = "user_already_exists"
	CodeWeakPassword       Code = "weak_password"
	CodeInvalidEmail       Code = "invalid_email"
	CodeRateLimitExceeded  Code = "rate_limit_exceeded"
	CodeSessionExpired     Code = "session_expired"
	CodeNetworkError       Code = "network_error"
	CodeUnknownError       Code = "unknown_error"
)

var defaultMessages = map[Code]string{
	CodeInvalidInput:       "Please fill in all required fields",
	CodeInvalidCredentials: "Invalid email or password",
	CodeUserNotFound:       "No account found with this email",
	CodeUserAlreadyExists:  "An account with this email already exists",
	CodeWeakPassword:       "Password does not meet the strength requirements",
	CodeInvalidEmail:       "Please enter a valid email address",
	CodeRateLimitExceeded:  "Too many requests. Please try again later.",
	CodeSessionExpired:     "Your session has expired. Please sign in again.",
	CodeNetworkError:       "Network error. Please check your connection and try again.",
	CodeUnknownError:       "An unexpected error occurred",
}

// AuthError is a classified authentication failure. Message is safe to show
// to the user; Err keeps the underlying cause.
type AuthError struct {
	Code    Code   `json:"code"`
	Message string `json:"message"`
	Err     error  `json:"-"`

	// FromMessage is set when the code was inferred from the error text
	// rather than a structured provider code.
	FromMessage bool `json:"-"`
}

func (e *AuthError) Error() string {
	return e.Message
}

func (e *AuthError) Unwrap() error {
	return e.Err
}

// NewAuthError builds an AuthError, falling back to the default message for code.
func NewAuthError(code Code, message string, cause error) *AuthError {
	if message == "" {
		message = defaultMessages[code]
	}
	return &AuthError{Code: code, Message: message, Err: cause}
}

// CodedError is implemented by provider errors that carry a machine readable code.
type CodedError interface {
	error
	ErrorCode() string
}

var providerCodes = map[string]Code{
	"invalid_credentials":        CodeInvalidCredentials,
	"invalid_grant":              CodeInvalidCredentials,
	"email_not_confirmed":        CodeInvalidCredentials,
	"user_not_found":             CodeUserNotFound,
	"user_already_exists":        CodeUserAlreadyExists,
	"email_exists":               CodeUserAlreadyExists,
	"weak_password":              CodeWeakPassword,
	"email_address_invalid":      CodeInvalidEmail,
	"validation_failed":          CodeInvalidEmail,
	"over_request_rate_limit":    CodeRateLimitExceeded,
	"over_email_send_rate_limit": CodeRateLimitExceeded,
	"session_expired":            CodeSessionExpired,
	"session_not_found":          CodeSessionExpired,
	"refresh_token_not_found":    CodeSessionExpired,
	"bad_jwt":                    CodeSessionExpired,
}

var messagePatterns = []struct {
	fragment string
	code     Code
}{
	{"invalid login credentials", CodeInvalidCredentials},
	{"invalid credentials", CodeInvalidCredentials},
	{"user not found", CodeUserNotFound},
	{"already registered", CodeUserAlreadyExists},
	{"already exists", CodeUserAlreadyExists},
	{"password should be", CodeWeakPassword},
	{"weak password", CodeWeakPassword},
	{"unable to validate email", CodeInvalidEmail},
	{"invalid email", CodeInvalidEmail},
	{"rate limit", CodeRateLimitExceeded},
	{"too many requests", CodeRateLimitExceeded},
	{"jwt expired", CodeSessionExpired},
	{"session expired", CodeSessionExpired},
	{"refresh token", CodeSessionExpired},
	{"failed to fetch", CodeNetworkError},
	{"network", CodeNetworkError},
	{"connection refused", CodeNetworkError},
}

// Classify maps err onto the auth taxonomy. Structured provider codes win,
// then transport failures, then text matching. Unmapped errors become
// CodeUnknownError with the original message preserved.
func Classify(err error) *AuthError {
	if err == nil {
		return nil
	}

	var authErr *AuthError
	if errors.As(err, &authErr) {
		return authErr
	}

	var coded CodedError
	if errors.As(err, &coded) {
		if code, ok := providerCodes[coded.ErrorCode()]; ok {
			return NewAuthError(code, messageFor(code, coded.Error()), err)
		}
	}

	if isNetworkError(err) {
		return NewAuthError(CodeNetworkError, "", err)
	}

	text := strings.ToLower(err.Error())
	for _, p := range messagePatterns {
		if strings.Contains(text, p.fragment) {
			ae := NewAuthError(p.code, messageFor(p.code, err.Error()), err)
			ae.FromMessage = true
			return ae
		}
	}

	return NewAuthError(CodeUnknownError, err.Error(), err)
}

// messageFor keeps the provider's wording where it carries detail the user needs.
func messageFor(code Code, original string) string {
	switch code {
	case CodeWeakPassword:
		if original != "" {
			return original
		}
	}
	return defaultMessages[code]
}

func isNetworkError(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr)
}

// CodeOf returns the taxonomy code of err, or "" for nil.
func CodeOf(err error) Code {
	if ae := Classify(err); ae != nil {
		return ae.Code
	}
	return ""
}
