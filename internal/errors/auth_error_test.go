package errors_test

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"testing"

	apperrors "github.com/jrsteele09/campus-market/internal/errors"
	"github.com/stretchr/testify/require"
)

type codedErr struct {
	code string
	msg  string
}

func (e codedErr) Error() string     { return e.msg }
func (e codedErr) ErrorCode() string { return e.code }

func TestClassify_StructuredCodes(t *testing.T) {
	tests := []struct {
		code string
		want apperrors.Code
	}{
		{"invalid_credentials", apperrors.CodeInvalidCredentials},
		{"user_already_exists", apperrors.CodeUserAlreadyExists},
		{"email_exists", apperrors.CodeUserAlreadyExists},
		{"weak_password", apperrors.CodeWeakPassword},
		{"email_address_invalid", apperrors.CodeInvalidEmail},
		{"over_request_rate_limit", apperrors.CodeRateLimitExceeded},
		{"session_expired", apperrors.CodeSessionExpired},
		{"user_not_found", apperrors.CodeUserNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.code, func(t *testing.T) {
			ae := apperrors.Classify(codedErr{code: tt.code, msg: "whatever the provider said"})
			require.Equal(t, tt.want, ae.Code)
			require.False(t, ae.FromMessage)
		})
	}
}

func TestClassify_StructuredCodeWinsOverMessage(t *testing.T) {
	// the text suggests rate limiting but the code is authoritative
	ae := apperrors.Classify(codedErr{code: "invalid_credentials", msg: "rate limit reached"})
	require.Equal(t, apperrors.CodeInvalidCredentials, ae.Code)
}

func TestClassify_MessageFallback(t *testing.T) {
	tests := []struct {
		msg  string
		want apperrors.Code
	}{
		{"Invalid login credentials", apperrors.CodeInvalidCredentials},
		{"User already registered", apperrors.CodeUserAlreadyExists},
		{"Password should be at least 6 characters", apperrors.CodeWeakPassword},
		{"Unable to validate email address: invalid format", apperrors.CodeInvalidEmail},
		{"Email rate limit exceeded", apperrors.CodeRateLimitExceeded},
		{"JWT expired", apperrors.CodeSessionExpired},
		{"TypeError: Failed to fetch", apperrors.CodeNetworkError},
	}
	for _, tt := range tests {
		t.Run(tt.msg, func(t *testing.T) {
			ae := apperrors.Classify(errors.New(tt.msg))
			require.Equal(t, tt.want, ae.Code)
			require.True(t, ae.FromMessage)
		})
	}
}

func TestClassify_UnknownCodeFallsBackToMessage(t *testing.T) {
	ae := apperrors.Classify(codedErr{code: "something_new", msg: "Invalid login credentials"})
	require.Equal(t, apperrors.CodeInvalidCredentials, ae.Code)
	require.True(t, ae.FromMessage)
}

func TestClassify_Transport(t *testing.T) {
	ae := apperrors.Classify(&url.Error{Op: "Post", URL: "https://x", Err: errors.New("dial tcp: i/o timeout")})
	require.Equal(t, apperrors.CodeNetworkError, ae.Code)

	ae = apperrors.Classify(fmt.Errorf("sign in: %w", context.DeadlineExceeded))
	require.Equal(t, apperrors.CodeNetworkError, ae.Code)
}

func TestClassify_UnknownPreservesMessage(t *testing.T) {
	ae := apperrors.Classify(errors.New("database is on fire"))
	require.Equal(t, apperrors.CodeUnknownError, ae.Code)
	require.Equal(t, "database is on fire", ae.Message)
}

func TestClassify_PassesThroughAuthErrors(t *testing.T) {
	original := apperrors.NewAuthError(apperrors.CodeInvalidEmail, "", nil)
	wrapped := fmt.Errorf("login: %w", original)
	require.Same(t, original, apperrors.Classify(wrapped))
	require.Equal(t, "Please enter a valid email address", original.Error())
	require.Nil(t, apperrors.Classify(nil))
	require.Equal(t, apperrors.Code(""), apperrors.CodeOf(nil))
}
