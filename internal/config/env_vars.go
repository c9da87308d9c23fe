package config

import (
	"fmt"
	"strings"
)

const devEnv = "DEV"

type EnvVars struct {
	Port     string `env:"PORT"      envDefault:"8080"`
	AppName  string `env:"APP_NAME"  envDefault:"Campus Market"`
	BaseURL  string `env:"BASE_URL"  envDefault:"http://localhost:8080"`
	Env      string `env:"ENV"       envDefault:"DEV"`
	LogLevel string `env:"LOG_LEVEL" envDefault:"info"`
}

var _ EnvConfig = EnvVars{}

func (e EnvVars) GetPort() string {
	port := e.Port
	if port != "" && port[0] != ':' {
		port = fmt.Sprintf(":%s", port)
	}
	return port
}

func (e EnvVars) GetAppName() string {
	return e.AppName
}

// GetBaseURL returns the public origin of the server (e.g., "https://market.example.com").
// Email confirmation, OAuth and password reset redirects are built from it.
func (e EnvVars) GetBaseURL() string {
	return strings.TrimRight(e.BaseURL, "/")
}

func (e EnvVars) GetEnv() string {
	if e.Env == "" {
		return devEnv
	}
	return strings.ToUpper(e.Env)
}

func (e EnvVars) IsDev() bool {
	return e.GetEnv() == devEnv
}

func (e EnvVars) GetLogLevel() string {
	return e.LogLevel
}
