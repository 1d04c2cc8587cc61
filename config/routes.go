package config

import "strings"

// RoutesConfig holds the redirect targets used by access control.
type RoutesConfig struct {
	LoginPath string `env:"ROUTE_LOGIN_PATH" envDefault:"/login"`
	HomePath  string `env:"ROUTE_HOME_PATH"  envDefault:"/"`
}

// Sanitize normalizes route paths.
func (c *RoutesConfig) Sanitize() {
	c.LoginPath = ensureLeadingSlash(strings.TrimSpace(c.LoginPath), "/login")
	c.HomePath = ensureLeadingSlash(strings.TrimSpace(c.HomePath), "/")
}

func ensureLeadingSlash(path, fallback string) string {
	if path == "" {
		return fallback
	}
	if !strings.HasPrefix(path, "/") {
		return "/" + path
	}
	return path
}
