package loginsession

import (
	"time"

	"github.com/jrsteele09/campus-market/auth"
)

// Session ties one browser to the orchestrator that owns its auth state.
type Session struct {
	ID           string
	Orchestrator *auth.Orchestrator

	CreatedAt time.Time
	LastSeen  time.Time
}

// Repo stores browser sessions. Removing a session closes its orchestrator.
type Repo interface {
	Upsert(sessionID string, session *Session) error
	Get(sessionID string) (*Session, error)
	Delete(sessionID string) error
	Sweep() int
	Len() int
}
