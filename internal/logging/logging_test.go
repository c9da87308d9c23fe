package logging

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/stretchr/testify/require"
)

func TestSetup(t *testing.T) {
	orig := log.Logger
	origLevel := zerolog.GlobalLevel()
	t.Cleanup(func() {
		log.Logger = orig
		zerolog.SetGlobalLevel(origLevel)
	})

	t.Run("json outside dev", func(t *testing.T) {
		var buf bytes.Buffer
		Setup("PROD", "warn", &buf)
		log.Info().Msg("hidden")
		log.Warn().Str("user_id", "u1").Msg("shown")

		var entry map[string]any
		require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
		require.Equal(t, "shown", entry["message"])
		require.Equal(t, "u1", entry["user_id"])
		require.Equal(t, "warn", entry["level"])
	})

	t.Run("console in dev", func(t *testing.T) {
		var buf bytes.Buffer
		Setup("DEV", "nonsense", &buf)
		require.Equal(t, zerolog.InfoLevel, zerolog.GlobalLevel())
		log.Info().Msg("hello")
		require.Contains(t, buf.String(), "hello")
		require.False(t, json.Valid(buf.Bytes()))
	})
}
