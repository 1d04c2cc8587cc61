package config

import (
	"os"
	"strings"
)

// AppConfig is the portal client configuration, composed from the domain
// configs in this package.
//
// Configuration is loaded from environment variables using the
// github.com/caarlos0/env library:
//   - auth.go: identity provider selection and settings
//   - backend.go: profile source and backend API settings
//   - routes.go: redirect targets
//   - database.go: PostgreSQL, Redis and session persistence
//   - observability.go: logging and metrics
type AppConfig struct {
	// IsDev enables development behavior such as loud contract assertions.
	// Set DEV=true or NODE_ENV=development.
	IsDev bool `env:"DEV" envDefault:"false"`

	Auth    AuthConfig
	Backend BackendConfig
	Routes  RoutesConfig

	Postgres DBConfig      `envPrefix:"DB_"`
	Redis    RedisConfig   `envPrefix:"REDIS_"`
	Session  SessionConfig `envPrefix:"SESSION_"`

	Observability ObservabilityConfig
}

// Sanitize applies guardrails to configuration values loaded from env.
// Call it after parsing.
func (c *AppConfig) Sanitize() {
	c.Auth.Sanitize()
	c.Backend.Sanitize()
	c.Routes.Sanitize()
	c.Session.Sanitize()
	c.Observability.Sanitize()
	c.detectDevMode()
}

// detectDevMode falls back to NODE_ENV when DEV is unset.
func (c *AppConfig) detectDevMode() {
	if !c.IsDev {
		nodeEnv := strings.ToLower(os.Getenv("NODE_ENV"))
		c.IsDev = nodeEnv == "development" || nodeEnv == "dev"
	}
}

// NeedsPostgres reports whether the configured components use PostgreSQL.
func (c *AppConfig) NeedsPostgres() bool {
	return c.Backend.Source == ProfileSourcePostgres
}

// NeedsRedis reports whether the configured components use Redis.
func (c *AppConfig) NeedsRedis() bool {
	return c.Session.Persist && c.Auth.Mode == AuthModeOIDC
}
