package profiles

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	apperrors "github.com/jrsteele09/campus-market/internal/errors"
	"github.com/stretchr/testify/require"
)

func newRepoWithMock(t *testing.T) (*PostgresRepository, sqlmock.Sqlmock, *sql.DB) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return NewPostgresRepository(db), mock, db
}

var profileColumns = []string{"id", "display_name", "bio", "school", "program", "avatar_url", "onboarding_completed", "created_at", "updated_at"}

func TestGet_Found(t *testing.T) {
	repo, mock, _ := newRepoWithMock(t)
	ts := time.Date(2024, 9, 1, 0, 0, 0, 0, time.UTC)

	mock.ExpectQuery(`(?s)^SELECT\s+id,\s*display_name.*FROM\s+profiles\s+WHERE\s+id\s*=\s*\$1`).
		WithArgs("user-1").
		WillReturnRows(sqlmock.NewRows(profileColumns).
			AddRow("user-1", "Sam", "", "North Campus", "CS", "", true, ts, ts))

	p, err := repo.Get(context.Background(), "user-1")
	require.NoError(t, err)
	require.Equal(t, "Sam", p.DisplayName)
	require.Equal(t, "North Campus", p.School)
	require.True(t, p.OnboardingCompleted)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestGet_NotFound(t *testing.T) {
	repo, mock, _ := newRepoWithMock(t)
	mock.ExpectQuery(`(?s)^SELECT.*FROM\s+profiles`).
		WithArgs("missing").
		WillReturnError(sql.ErrNoRows)

	_, err := repo.Get(context.Background(), "missing")
	require.ErrorIs(t, err, apperrors.ErrNotFound)
}

func TestGet_DBError(t *testing.T) {
	repo, mock, _ := newRepoWithMock(t)
	mock.ExpectQuery(`(?s)^SELECT.*FROM\s+profiles`).
		WithArgs("user-1").
		WillReturnError(errors.New("db down"))

	_, err := repo.Get(context.Background(), "user-1")
	require.Error(t, err)
	require.Regexp(t, `db error: .*db down`, err.Error())
}

func TestUpsert(t *testing.T) {
	repo, mock, _ := newRepoWithMock(t)
	now := time.Date(2024, 9, 2, 12, 0, 0, 0, time.UTC)
	repo.nowTime = func() time.Time { return now }
	created := now.Add(-time.Hour)

	mock.ExpectQuery(`(?s)^INSERT\s+INTO\s+profiles.*ON\s+CONFLICT\s+\(id\)\s+DO\s+UPDATE.*profiles\.onboarding_completed\s+OR\s+EXCLUDED\.onboarding_completed.*RETURNING`).
		WithArgs("user-1", "Sam", "Bio", "North Campus", "CS", "", true, now).
		WillReturnRows(sqlmock.NewRows([]string{"created_at", "updated_at", "onboarding_completed"}).AddRow(created, now, true))

	p := &Profile{ID: "user-1", DisplayName: "Sam", Bio: "Bio", School: "North Campus", Program: "CS", OnboardingCompleted: true}
	require.NoError(t, repo.Upsert(context.Background(), p))
	require.Equal(t, created, p.CreatedAt)
	require.Equal(t, now, p.UpdatedAt)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestUpsert_DBError(t *testing.T) {
	repo, mock, _ := newRepoWithMock(t)
	mock.ExpectQuery(`(?s)^INSERT\s+INTO\s+profiles`).WillReturnError(errors.New("constraint"))

	err := repo.Upsert(context.Background(), &Profile{ID: "user-1"})
	require.Error(t, err)
	require.Contains(t, err.Error(), "db error")
}
