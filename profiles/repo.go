package profiles

import "context"

// Repo persists profiles. Get returns errors.ErrNotFound for unknown ids.
type Repo interface {
	Get(ctx context.Context, userID string) (*Profile, error)
	// Upsert creates or replaces the profile in a single write.
	Upsert(ctx context.Context, profile *Profile) error
}
