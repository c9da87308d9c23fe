package loginsession

import (
	"context"
	"sync"
	"time"

	apperrors "github.com/jrsteele09/campus-market/internal/errors"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

const DefaultMaxIdle = 24 * time.Hour

var _ Repo = (*InMemoryLoginSessionRepo)(nil)

// InMemoryLoginSessionRepo keeps browser sessions in process. Sessions idle for
// longer than maxIdle are treated as gone.
type InMemoryLoginSessionRepo struct {
	mu       sync.RWMutex
	sessions map[string]*Session
	maxIdle  time.Duration
	nowTime  func() time.Time
}

type Option func(*InMemoryLoginSessionRepo)

func WithMaxIdle(d time.Duration) Option {
	return func(r *InMemoryLoginSessionRepo) {
		r.maxIdle = d
	}
}

// WithNowTime sets the clock (primarily for testing)
func WithNowTime(nowFunc func() time.Time) Option {
	return func(r *InMemoryLoginSessionRepo) {
		r.nowTime = nowFunc
	}
}

func NewInMemoryLoginSessionRepo(options ...Option) *InMemoryLoginSessionRepo {
	r := &InMemoryLoginSessionRepo{
		sessions: make(map[string]*Session),
		maxIdle:  DefaultMaxIdle,
		nowTime:  time.Now,
	}
	for _, opt := range options {
		opt(r)
	}
	return r
}

// Upsert stores session under sessionID. A different orchestrator previously
// stored under the same id is closed.
func (r *InMemoryLoginSessionRepo) Upsert(sessionID string, session *Session) error {
	if sessionID == "" {
		return errors.New("[InMemoryLoginSessionRepo.Upsert] sessionID is required")
	}
	if session == nil || session.Orchestrator == nil {
		return errors.New("[InMemoryLoginSessionRepo.Upsert] session with an orchestrator is required")
	}

	now := r.nowTime()
	r.mu.Lock()
	previous := r.sessions[sessionID]
	session.ID = sessionID
	if session.CreatedAt.IsZero() {
		session.CreatedAt = now
	}
	session.LastSeen = now
	r.sessions[sessionID] = session
	r.mu.Unlock()

	if previous != nil && previous.Orchestrator != session.Orchestrator {
		previous.Orchestrator.Close()
	}
	return nil
}

// Get returns the session and marks it as seen.
func (r *InMemoryLoginSessionRepo) Get(sessionID string) (*Session, error) {
	if sessionID == "" {
		return nil, errors.New("[InMemoryLoginSessionRepo.Get] sessionID is required")
	}

	now := r.nowTime()
	r.mu.Lock()
	session, ok := r.sessions[sessionID]
	if !ok {
		r.mu.Unlock()
		return nil, apperrors.ErrSessionNotFound
	}
	if r.expired(session, now) {
		delete(r.sessions, sessionID)
		r.mu.Unlock()
		session.Orchestrator.Close()
		return nil, apperrors.ErrSessionExpired
	}
	session.LastSeen = now
	r.mu.Unlock()
	return session, nil
}

// Delete removes the session and closes its orchestrator. Unknown ids are not an error.
func (r *InMemoryLoginSessionRepo) Delete(sessionID string) error {
	if sessionID == "" {
		return errors.New("[InMemoryLoginSessionRepo.Delete] sessionID is required")
	}

	r.mu.Lock()
	session, ok := r.sessions[sessionID]
	delete(r.sessions, sessionID)
	r.mu.Unlock()

	if ok {
		session.Orchestrator.Close()
	}
	return nil
}

// Sweep closes and removes idle sessions and returns how many were removed.
func (r *InMemoryLoginSessionRepo) Sweep() int {
	now := r.nowTime()
	var idle []*Session

	r.mu.Lock()
	for id, session := range r.sessions {
		if r.expired(session, now) {
			idle = append(idle, session)
			delete(r.sessions, id)
		}
	}
	r.mu.Unlock()

	for _, session := range idle {
		session.Orchestrator.Close()
	}
	return len(idle)
}

// StartSweeper runs Sweep every interval until ctx is done.
func (r *InMemoryLoginSessionRepo) StartSweeper(ctx context.Context, interval time.Duration) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if n := r.Sweep(); n > 0 {
					log.Debug().Int("removed", n).Msg("swept idle browser sessions")
				}
			}
		}
	}()
}

func (r *InMemoryLoginSessionRepo) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}

func (r *InMemoryLoginSessionRepo) expired(session *Session, now time.Time) bool {
	return r.maxIdle > 0 && now.Sub(session.LastSeen) > r.maxIdle
}
