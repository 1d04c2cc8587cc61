package config

import (
	"strings"
	"time"
)

// DBConfig contains PostgreSQL database configuration.
type DBConfig struct {
	Host     string `env:"HOST"     envDefault:"localhost"`
	Port     int    `env:"PORT"     envDefault:"5432"`
	User     string `env:"USER"     envDefault:"portal"`
	Password string `env:"PASSWORD" envDefault:"portal"`
	Name     string `env:"NAME"     envDefault:"portal"`
	SSLMode  string `env:"SSL_MODE" envDefault:"disable"` // 'require' in production
	// RunMigrationsOnStart applies embedded migrations when the profile store connects.
	RunMigrationsOnStart bool `env:"RUN_MIGRATIONS_ON_START" envDefault:"true"`
}

// RedisConfig contains Redis configuration.
type RedisConfig struct {
	URI                string   `env:"URI"                  envDefault:"localhost:6379"`
	Password           string   `env:"PASSWORD"             envDefault:""`
	DB                 int      `env:"DB"                   envDefault:"0"`
	SentinelNodes      []string `env:"SENTINEL_NODES"`
	SentinelMasterName string   `env:"SENTINEL_MASTER_NAME" envDefault:"mymaster"`
	SentinelPassword   string   `env:"SENTINEL_PASSWORD"    envDefault:""`
	UseSentinel        bool     `env:"USE_SENTINEL"         envDefault:"false"`
}

// SessionConfig controls persistence of identity-provider sessions.
type SessionConfig struct {
	// Persist stores refresh tokens in Redis so the shell can resume after restart.
	Persist bool `env:"PERSIST" envDefault:"false"`
	// DeviceID keys the stored session; defaults to the host name.
	DeviceID string        `env:"DEVICE_ID"`
	TTL      time.Duration `env:"TTL"       envDefault:"720h"`
	// EncryptionKey seals stored refresh tokens (32 bytes, hex or base64).
	// Without it tokens are stored readable, which only suits development.
	EncryptionKey string `env:"ENCRYPTION_KEY"`
}

// Sanitize applies session guardrails.
func (c *SessionConfig) Sanitize() {
	c.DeviceID = strings.TrimSpace(c.DeviceID)
	if c.TTL <= 0 {
		c.TTL = 720 * time.Hour
	}
}
