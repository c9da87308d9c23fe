package config

const (
	IdentityProviderMemory = "memory"
	IdentityProviderGoTrue = "gotrue"
)

type IdentityConfig interface {
	GetIdentityProvider() string
	GetProjectURL() string
	GetAnonKey() string
	GetServiceRoleKey() string
	GetJWTSecret() string
	GetJWTAudience() string
	GetJWKSIssuer() string
}

// Identity holds the hosted auth project settings. The service role key is
// server-only and must never reach a browser.
type Identity struct {
	Provider       string `env:"IDENTITY_PROVIDER"       envDefault:"memory"`
	ProjectURL     string `env:"MARKET_PROJECT_URL"`
	AnonKey        string `env:"MARKET_ANON_KEY"`
	ServiceRoleKey string `env:"MARKET_SERVICE_ROLE_KEY"`
	JWTSecret      string `env:"MARKET_JWT_SECRET"`
	JWTAudience    string `env:"MARKET_JWT_AUDIENCE"     envDefault:"authenticated"`
	JWKSIssuer     string `env:"MARKET_JWKS_ISSUER"`
}

var _ IdentityConfig = Identity{}

func (i Identity) GetIdentityProvider() string {
	return i.Provider
}

func (i Identity) GetProjectURL() string {
	return i.ProjectURL
}

func (i Identity) GetAnonKey() string {
	return i.AnonKey
}

func (i Identity) GetServiceRoleKey() string {
	return i.ServiceRoleKey
}

func (i Identity) GetJWTSecret() string {
	return i.JWTSecret
}

func (i Identity) GetJWTAudience() string {
	return i.JWTAudience
}

func (i Identity) GetJWKSIssuer() string {
	return i.JWKSIssuer
}
