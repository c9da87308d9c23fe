// Package identity defines the boundary to the hosted identity provider.
// Implementations live in gotrue (REST client) and fakeprovider (in-memory).
package identity

import (
	"context"
	"fmt"
	"time"
)

// Event is a session-changed notification pushed by the provider.
type Event string

const (
	EventInitialSession   Event = "INITIAL_SESSION"
	EventSignedIn         Event = "SIGNED_IN"
	EventSignedOut        Event = "SIGNED_OUT"
	EventTokenRefreshed   Event = "TOKEN_REFRESHED"
	EventUserUpdated      Event = "USER_UPDATED"
	EventPasswordRecovery Event = "PASSWORD_RECOVERY"
)

// User is the provider's user payload. Metadata maps may be nil.
type User struct {
	ID               string         `json:"id"`
	Email            string         `json:"email"`
	Role             string         `json:"role,omitempty"`
	EmailConfirmedAt *time.Time     `json:"email_confirmed_at,omitempty"`
	CreatedAt        *time.Time     `json:"created_at,omitempty"`
	UpdatedAt        *time.Time     `json:"updated_at,omitempty"`
	AppMetadata      map[string]any `json:"app_metadata,omitempty"`
	UserMetadata     map[string]any `json:"user_metadata,omitempty"`
}

// Session is the provider's token payload.
type Session struct {
	AccessToken  string `json:"access_token"`
	TokenType    string `json:"token_type,omitempty"`
	ExpiresIn    int64  `json:"expires_in,omitempty"`
	ExpiresAt    int64  `json:"expires_at,omitempty"`
	RefreshToken string `json:"refresh_token,omitempty"`
	User         *User  `json:"user,omitempty"`
}

// Expired reports whether the access token is past its expiry, allowing for skew.
func (s *Session) Expired(now time.Time, skew time.Duration) bool {
	if s == nil || s.ExpiresAt == 0 {
		return false
	}
	return now.Add(skew).Unix() >= s.ExpiresAt
}

type SignUpParams struct {
	Email      string
	Password   string
	RedirectTo string
	Data       map[string]any
}

// Listener receives provider events. session is nil for EventSignedOut.
type Listener func(event Event, session *Session)

type Subscription interface {
	Unsubscribe()
}

// Provider is the hosted identity service as seen by one browser session.
type Provider interface {
	SignInWithPassword(ctx context.Context, email, password string) (*Session, error)
	// SignUp returns a nil session when the provider requires email confirmation.
	SignUp(ctx context.Context, params SignUpParams) (*User, *Session, error)
	SignOut(ctx context.Context) error
	GetSession(ctx context.Context) (*Session, error)
	RefreshSession(ctx context.Context) (*Session, error)
	ResetPasswordForEmail(ctx context.Context, email, redirectTo string) error
	UpdatePassword(ctx context.Context, password string) (*User, error)
	OAuthURL(ctx context.Context, provider, redirectTo string) (string, error)
	ExchangeCodeForSession(ctx context.Context, code string) (*Session, error)
	OnAuthStateChange(listener Listener) Subscription
}

// TokenIntrospector validates an access token against the provider.
type TokenIntrospector interface {
	GetUser(ctx context.Context, accessToken string) (*User, error)
}

// Error is a failed provider call.
type Error struct {
	Status  int    `json:"-"`
	Code    string `json:"error_code,omitempty"`
	Message string `json:"msg,omitempty"`
}

func (e *Error) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("identity provider error (status %d)", e.Status)
	}
	return e.Message
}

func (e *Error) ErrorCode() string {
	return e.Code
}
