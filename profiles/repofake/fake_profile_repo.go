package repofake

import (
	"context"
	"sync"
	"time"

	apperrors "github.com/jrsteele09/campus-market/internal/errors"
	"github.com/jrsteele09/campus-market/profiles"
)

var _ profiles.Repo = (*FakeProfileRepo)(nil)

type FakeProfileRepo struct {
	lock     sync.RWMutex
	profiles map[string]profiles.Profile
	err      error
}

func NewFakeProfileRepo() *FakeProfileRepo {
	return &FakeProfileRepo{
		profiles: make(map[string]profiles.Profile),
	}
}

// SetError makes every call fail with err; nil restores normal behaviour.
func (r *FakeProfileRepo) SetError(err error) {
	r.lock.Lock()
	defer r.lock.Unlock()
	r.err = err
}

func (r *FakeProfileRepo) Get(_ context.Context, userID string) (*profiles.Profile, error) {
	r.lock.RLock()
	defer r.lock.RUnlock()

	if r.err != nil {
		return nil, r.err
	}
	p, ok := r.profiles[userID]
	if !ok {
		return nil, apperrors.ErrNotFound
	}
	return &p, nil
}

func (r *FakeProfileRepo) Upsert(_ context.Context, profile *profiles.Profile) error {
	r.lock.Lock()
	defer r.lock.Unlock()

	if r.err != nil {
		return r.err
	}
	now := time.Now().UTC()
	if existing, ok := r.profiles[profile.ID]; ok {
		profile.CreatedAt = existing.CreatedAt
		profile.OnboardingCompleted = profile.OnboardingCompleted || existing.OnboardingCompleted
	} else {
		profile.CreatedAt = now
	}
	profile.UpdatedAt = now
	r.profiles[profile.ID] = *profile
	return nil
}
