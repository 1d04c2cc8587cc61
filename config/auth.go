package config

import (
	"fmt"
	"strings"
	"time"
)

// AuthMode selects the identity provider.
type AuthMode string

const (
	// AuthModeOIDC uses an OpenID Connect issuer.
	AuthModeOIDC AuthMode = "oidc"
	// AuthModeMock uses the in-memory dev provider (development only).
	AuthModeMock AuthMode = "mock"
)

// UnmarshalText implements encoding.TextUnmarshaler for AuthMode.
func (a *AuthMode) UnmarshalText(text []byte) error {
	v := strings.ToLower(strings.TrimSpace(string(text)))
	switch v {
	case "oidc", "mock":
		*a = AuthMode(v)
		return nil
	default:
		return fmt.Errorf("invalid AuthMode: %q (valid options: oidc, mock)", v)
	}
}

// OIDCConfig contains OpenID Connect settings.
type OIDCConfig struct {
	ClientID     string `env:"CLIENT_ID"     envDefault:"portal"`
	ClientSecret string `env:"CLIENT_SECRET"`
	Scope        string `env:"SCOPE"         envDefault:"openid email offline_access"`
	DiscoveryURL string `env:"DISCOVERY_URL"`
	// AccountsURL is the base URL of the sign-up, verification and reset endpoints.
	AccountsURL string `env:"ACCOUNTS_URL"`
}

// DevAuthConfig controls the in-memory dev identity provider.
type DevAuthConfig struct {
	TokenSecret string        `env:"TOKEN_SECRET" envDefault:"portal-dev-secret"`
	TokenTTL    time.Duration `env:"TOKEN_TTL"    envDefault:"1h"`
	Issuer      string        `env:"ISSUER"       envDefault:"portal-devauth"`
	// Accounts seeds the provider, ";"-separated, each "email:password[:verified][:disabled]".
	Accounts []string `env:"ACCOUNTS" envDefault:"dev@example.com:password:verified" envSeparator:";"`
}

// DevAccount is one parsed DEV_AUTH_ACCOUNTS entry.
type DevAccount struct {
	Email    string
	Password string
	Verified bool
	Disabled bool
}

// ParseAccounts parses the seeded account list.
func (c DevAuthConfig) ParseAccounts() ([]DevAccount, error) {
	out := make([]DevAccount, 0, len(c.Accounts))
	for _, raw := range c.Accounts {
		raw = strings.TrimSpace(raw)
		if raw == "" {
			continue
		}
		parts := strings.Split(raw, ":")
		if len(parts) < 2 || parts[0] == "" || parts[1] == "" {
			return nil, fmt.Errorf("invalid dev account %q: want email:password[:verified][:disabled]", raw)
		}
		acct := DevAccount{Email: parts[0], Password: parts[1]}
		for _, flag := range parts[2:] {
			switch strings.ToLower(flag) {
			case "verified":
				acct.Verified = true
			case "disabled":
				acct.Disabled = true
			default:
				return nil, fmt.Errorf("invalid dev account flag %q in %q", flag, parts[0])
			}
		}
		out = append(out, acct)
	}
	return out, nil
}

// AuthConfig groups identity and auth-core configuration.
type AuthConfig struct {
	Mode AuthMode `env:"AUTH_MODE" envDefault:"oidc"`

	OIDC    OIDCConfig    `envPrefix:"OIDC_"`
	DevAuth DevAuthConfig `envPrefix:"DEV_AUTH_"`

	// RequestTimeout bounds each profile request issued by the auth core.
	RequestTimeout time.Duration `env:"AUTH_REQUEST_TIMEOUT" envDefault:"10s"`

	// RoleAliases maps extra backend role names to portal roles, e.g. "chair:administrator".
	RoleAliases map[string]string `env:"AUTH_ROLE_ALIASES" envSeparator:"," envKeyValSeparator:":"`
}

// Sanitize applies auth guardrails.
func (c *AuthConfig) Sanitize() {
	if c.Mode == "" {
		c.Mode = AuthModeOIDC
	}
	if c.RequestTimeout <= 0 {
		c.RequestTimeout = 10 * time.Second
	}
	if c.DevAuth.TokenTTL <= 0 {
		c.DevAuth.TokenTTL = time.Hour
	}
	c.OIDC.DiscoveryURL = strings.TrimSpace(c.OIDC.DiscoveryURL)
	c.OIDC.AccountsURL = strings.TrimSpace(c.OIDC.AccountsURL)
}
