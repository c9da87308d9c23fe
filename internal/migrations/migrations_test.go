package migrations

import (
	"context"
	"database/sql"
	"errors"
	"io/fs"
	"testing"

	"github.com/pressly/goose/v3"
	"github.com/stretchr/testify/require"
)

func TestMigrationsAreEmbedded(t *testing.T) {
	files, err := fs.Glob(Migrations, "*.sql")
	require.NoError(t, err)
	require.Equal(t, []string{"00001_profiles.sql", "00002_items.sql"}, files)
}

func TestRun(t *testing.T) {
	orig := gooseUpContext
	t.Cleanup(func() { gooseUpContext = orig })

	t.Run("success", func(t *testing.T) {
		var dir string
		gooseUpContext = func(ctx context.Context, db *sql.DB, d string, opts ...goose.OptionsFunc) error {
			dir = d
			return nil
		}
		require.NoError(t, Run(context.Background(), nil))
		require.Equal(t, ".", dir)
	})

	t.Run("error is wrapped", func(t *testing.T) {
		gooseUpContext = func(ctx context.Context, db *sql.DB, d string, opts ...goose.OptionsFunc) error {
			return errors.New("locked")
		}
		err := Run(context.Background(), nil)
		require.Error(t, err)
		require.Contains(t, err.Error(), "locked")
	})
}
