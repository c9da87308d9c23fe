package auth

import (
	apperrors "github.com/jrsteele09/campus-market/internal/errors"
	"github.com/jrsteele09/campus-market/sessions"
	"github.com/jrsteele09/campus-market/users"
)

// State is a snapshot of one orchestrator. Snapshots are copies and safe to
// keep after the orchestrator moves on.
type State struct {
	User        *users.User          `json:"user"`
	Session     *sessions.Session    `json:"-"`
	Loading     bool                 `json:"loading"`
	Error       *apperrors.AuthError `json:"error,omitempty"`
	Initialized bool                 `json:"initialized"`
}

func (s State) Authenticated() bool {
	return s.User != nil && s.Session != nil
}

func (s State) clone() State {
	cp := s
	cp.User = s.User.Clone()
	cp.Session = s.Session.Clone()
	if s.Error != nil {
		e := *s.Error
		cp.Error = &e
	}
	return cp
}

// SignUpResult reports whether the new account is already signed in or is
// waiting for email confirmation.
type SignUpResult struct {
	User                 *users.User `json:"user,omitempty"`
	ConfirmationRequired bool        `json:"confirmation_required"`
}
