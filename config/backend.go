package config

import (
	"fmt"
	"strings"
	"time"
)

// ProfileSource selects where user profiles come from.
type ProfileSource string

const (
	// ProfileSourceHTTP uses the portal backend API.
	ProfileSourceHTTP ProfileSource = "http"
	// ProfileSourcePostgres reads profiles directly from PostgreSQL (local stacks).
	ProfileSourcePostgres ProfileSource = "postgres"
)

// UnmarshalText implements encoding.TextUnmarshaler for ProfileSource.
func (p *ProfileSource) UnmarshalText(text []byte) error {
	v := strings.ToLower(strings.TrimSpace(string(text)))
	switch v {
	case "http", "postgres":
		*p = ProfileSource(v)
		return nil
	default:
		return fmt.Errorf("invalid ProfileSource: %q (valid options: http, postgres)", v)
	}
}

// BackendConfig contains profile API settings.
type BackendConfig struct {
	Source        ProfileSource `env:"PROFILE_SOURCE"          envDefault:"http"`
	BaseURL       string        `env:"BACKEND_BASE_URL"        envDefault:"http://localhost:8080"`
	Timeout       time.Duration `env:"BACKEND_TIMEOUT"         envDefault:"10s"`
	ProfilePath   string        `env:"BACKEND_PROFILE_PATH"    envDefault:"/users/me"`
	RoleExpr      string        `env:"BACKEND_ROLE_EXPR"       envDefault:"role"`
	ErrorCodeExpr string        `env:"BACKEND_ERROR_CODE_EXPR" envDefault:"error.code || code"`
}

// Sanitize applies backend guardrails.
func (c *BackendConfig) Sanitize() {
	if c.Source == "" {
		c.Source = ProfileSourceHTTP
	}
	c.BaseURL = strings.TrimRight(strings.TrimSpace(c.BaseURL), "/")
	if c.Timeout <= 0 {
		c.Timeout = 10 * time.Second
	}
	c.ProfilePath = ensureLeadingSlash(strings.TrimSpace(c.ProfilePath), "/users/me")
}
