package config

import "time"

type SecurityConfig interface {
	GetMaxAttempts() int
	GetAttemptWindow() time.Duration
	GetLockoutDuration() time.Duration
	GetThrottleSweepInterval() time.Duration
	GetRedisAddr() string
	GetSessionInitTimeout() time.Duration
	GetMaxSessionAge() time.Duration
	GetSessionSecret() string
	GetSecureCookies() bool
}

type Security struct {
	MaxAttempts           int           `env:"LOGIN_MAX_ATTEMPTS"      envDefault:"5"`
	AttemptWindow         time.Duration `env:"LOGIN_ATTEMPT_WINDOW"    envDefault:"15m"`
	LockoutDuration       time.Duration `env:"LOGIN_LOCKOUT"           envDefault:"30m"`
	ThrottleSweepInterval time.Duration `env:"THROTTLE_SWEEP_INTERVAL" envDefault:"1h"`
	RedisAddr             string        `env:"REDIS_ADDR"`
	SessionInitTimeout    time.Duration `env:"SESSION_INIT_TIMEOUT"    envDefault:"3s"`
	MaxSessionAge         time.Duration `env:"SESSION_MAX_AGE"         envDefault:"24h"`
	SessionSecret         string        `env:"SESSION_SECRET"`
	SecureCookies         bool          `env:"SECURE_COOKIES"          envDefault:"false"`
}

var _ SecurityConfig = Security{}

func (s Security) GetMaxAttempts() int {
	return s.MaxAttempts
}

func (s Security) GetAttemptWindow() time.Duration {
	return s.AttemptWindow
}

func (s Security) GetLockoutDuration() time.Duration {
	return s.LockoutDuration
}

func (s Security) GetThrottleSweepInterval() time.Duration {
	return s.ThrottleSweepInterval
}

// GetRedisAddr returns the address of a shared throttle store. Empty keeps
// the throttle in process.
func (s Security) GetRedisAddr() string {
	return s.RedisAddr
}

func (s Security) GetSessionInitTimeout() time.Duration {
	return s.SessionInitTimeout
}

// GetMaxSessionAge bounds how long an idle browser session is kept.
func (s Security) GetMaxSessionAge() time.Duration {
	return s.MaxSessionAge
}

func (s Security) GetSessionSecret() string {
	return s.SessionSecret
}

func (s Security) GetSecureCookies() bool {
	return s.SecureCookies
}
