package config

import (
	"fmt"

	"github.com/caarlos0/env/v11"
	"github.com/pkg/errors"
)

type Config interface {
	EnvConfig
	IdentityConfig
	CorsConfig
	SecurityConfig
	StorageConfig
}

type EnvConfig interface {
	GetPort() string
	GetAppName() string
	GetBaseURL() string
	GetEnv() string
	IsDev() bool
	GetLogLevel() string
}

type CorsConfig interface {
	GetAllowedOrigins() AllowedOrigins
	GetAllowedMethods() []string
	GetAllowedHeaders() []string
}

type mainConfig struct {
	EnvVars
	Identity
	Cors
	Security
	Storage
}

// New reads the configuration from the environment.
func New() (Config, error) {
	cfg := mainConfig{}
	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c mainConfig) validate() error {
	switch c.GetIdentityProvider() {
	case IdentityProviderMemory:
	case IdentityProviderGoTrue:
		if c.GetProjectURL() == "" || c.GetAnonKey() == "" {
			return errors.New("[config] MARKET_PROJECT_URL and MARKET_ANON_KEY are required for the gotrue identity provider")
		}
	default:
		return errors.Errorf("[config] unknown IDENTITY_PROVIDER %q", c.GetIdentityProvider())
	}

	if !c.IsDev() && c.GetSessionSecret() == "" {
		return errors.New("[config] SESSION_SECRET is required outside DEV")
	}
	if c.GetMaxAttempts() < 1 {
		return errors.New("[config] LOGIN_MAX_ATTEMPTS must be at least 1")
	}
	return nil
}
