package sessions

import (
	"time"

	"github.com/jrsteele09/campus-market/users"
)

// Session is the local view of an authenticated provider session.
// A session with a nil User carries no credentials.
type Session struct {
	User         *users.User `json:"user"`
	AccessToken  string      `json:"access_token"`
	RefreshToken string      `json:"refresh_token,omitempty"`
	ExpiresAt    *time.Time  `json:"expires_at,omitempty"`
}

// Valid reports whether the session holds both a user and an access token,
// or neither.
func (s *Session) Valid() bool {
	if s == nil {
		return true
	}
	return (s.User != nil) == (s.AccessToken != "")
}

func (s *Session) Clone() *Session {
	if s == nil {
		return nil
	}
	cp := *s
	cp.User = s.User.Clone()
	if s.ExpiresAt != nil {
		t := *s.ExpiresAt
		cp.ExpiresAt = &t
	}
	return &cp
}
