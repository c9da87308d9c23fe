package profiles

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jrsteele09/campus-market/internal/dbx"
	apperrors "github.com/jrsteele09/campus-market/internal/errors"
)

var _ Repo = (*PostgresRepository)(nil)

type PostgresRepository struct {
	db      dbx.DBTX
	nowTime func() time.Time
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db, nowTime: time.Now}
}

func (r *PostgresRepository) Get(ctx context.Context, userID string) (*Profile, error) {
	query :=
		`SELECT id, display_name, bio, school, program, avatar_url, onboarding_completed, created_at, updated_at
		 FROM profiles
		 WHERE id = $1
		 `

	p := &Profile{}
	err := r.db.QueryRowContext(ctx, query, userID).Scan(
		&p.ID, &p.DisplayName, &p.Bio, &p.School, &p.Program, &p.AvatarURL,
		&p.OnboardingCompleted, &p.CreatedAt, &p.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperrors.ErrNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return p, nil
}

// Upsert writes every field in one statement. onboarding_completed never
// reverts to false once set.
func (r *PostgresRepository) Upsert(ctx context.Context, profile *Profile) error {
	query :=
		`INSERT INTO profiles (id, display_name, bio, school, program, avatar_url, onboarding_completed, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $8)
		 ON CONFLICT (id) DO UPDATE SET
		     display_name = EXCLUDED.display_name,
		     bio = EXCLUDED.bio,
		     school = EXCLUDED.school,
		     program = EXCLUDED.program,
		     avatar_url = EXCLUDED.avatar_url,
		     onboarding_completed = profiles.onboarding_completed OR EXCLUDED.onboarding_completed,
		     updated_at = EXCLUDED.updated_at
		 RETURNING created_at, updated_at, onboarding_completed
		 `

	now := r.nowTime().UTC()
	err := r.db.QueryRowContext(ctx, query,
		profile.ID, profile.DisplayName, profile.Bio, profile.School, profile.Program,
		profile.AvatarURL, profile.OnboardingCompleted, now,
	).Scan(&profile.CreatedAt, &profile.UpdatedAt, &profile.OnboardingCompleted)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}
