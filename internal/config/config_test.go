package config_test

import (
	"testing"
	"time"

	"github.com/jrsteele09/campus-market/internal/config"
	"github.com/stretchr/testify/require"
)

func TestNew_Defaults(t *testing.T) {
	t.Setenv("ENV", "")
	t.Setenv("PORT", "")
	t.Setenv("IDENTITY_PROVIDER", "")

	cfg, err := config.New()
	require.NoError(t, err)

	require.Equal(t, ":8080", cfg.GetPort())
	require.Equal(t, "DEV", cfg.GetEnv())
	require.True(t, cfg.IsDev())
	require.Equal(t, config.IdentityProviderMemory, cfg.GetIdentityProvider())
	require.Equal(t, "authenticated", cfg.GetJWTAudience())

	require.Equal(t, 5, cfg.GetMaxAttempts())
	require.Equal(t, 15*time.Minute, cfg.GetAttemptWindow())
	require.Equal(t, 30*time.Minute, cfg.GetLockoutDuration())
	require.Equal(t, time.Hour, cfg.GetThrottleSweepInterval())
	require.Equal(t, 3*time.Second, cfg.GetSessionInitTimeout())

	require.True(t, cfg.GetAllowedOrigins().IsAllowedOrigin("http://localhost:3000"))
	require.Equal(t, int64(25<<20), cfg.GetMaxUploadBytes())
}

func TestNew_FromEnvironment(t *testing.T) {
	t.Setenv("PORT", "9000")
	t.Setenv("ENV", "prod")
	t.Setenv("BASE_URL", "https://market.example.com/")
	t.Setenv("SESSION_SECRET", "cookie-secret")
	t.Setenv("IDENTITY_PROVIDER", "gotrue")
	t.Setenv("MARKET_PROJECT_URL", "https://project.example.com")
	t.Setenv("MARKET_ANON_KEY", "anon")
	t.Setenv("MARKET_SERVICE_ROLE_KEY", "service")
	t.Setenv("LOGIN_LOCKOUT", "10m")
	t.Setenv("CORS_ALLOWED_ORIGINS", "https://market.example.com, https://admin.example.com")

	cfg, err := config.New()
	require.NoError(t, err)
	require.Equal(t, ":9000", cfg.GetPort())
	require.False(t, cfg.IsDev())
	require.Equal(t, "https://market.example.com", cfg.GetBaseURL())
	require.Equal(t, "service", cfg.GetServiceRoleKey())
	require.Equal(t, 10*time.Minute, cfg.GetLockoutDuration())

	origins := cfg.GetAllowedOrigins()
	require.Len(t, origins, 2)
	require.True(t, origins.IsAllowedOrigin("https://admin.example.com"))
}

func TestNew_Validation(t *testing.T) {
	t.Run("gotrue needs project settings", func(t *testing.T) {
		t.Setenv("IDENTITY_PROVIDER", "gotrue")
		t.Setenv("MARKET_PROJECT_URL", "")
		_, err := config.New()
		require.ErrorContains(t, err, "MARKET_PROJECT_URL")
	})

	t.Run("unknown provider", func(t *testing.T) {
		t.Setenv("IDENTITY_PROVIDER", "ldap")
		_, err := config.New()
		require.Error(t, err)
	})

	t.Run("session secret outside dev", func(t *testing.T) {
		t.Setenv("IDENTITY_PROVIDER", "memory")
		t.Setenv("ENV", "PROD")
		t.Setenv("SESSION_SECRET", "")
		_, err := config.New()
		require.ErrorContains(t, err, "SESSION_SECRET")
	})

	t.Run("bad duration", func(t *testing.T) {
		t.Setenv("IDENTITY_PROVIDER", "memory")
		t.Setenv("LOGIN_ATTEMPT_WINDOW", "soon")
		_, err := config.New()
		require.Error(t, err)
	})
}
