package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/redis/go-redis/v9"

	"github.com/festa-portal/portal-client/config"
	"github.com/festa-portal/portal-client/internal/adapters/devauth"
	"github.com/festa-portal/portal-client/internal/adapters/oidc"
	redisadapter "github.com/festa-portal/portal-client/internal/adapters/redis"
	"github.com/festa-portal/portal-client/internal/cryptoutil"
	"github.com/festa-portal/portal-client/internal/ports"
)

// IdentityConfig contains configuration for the identity provider.
type IdentityConfig struct {
	Auth        config.AuthConfig
	Session     config.SessionConfig
	RedisClient redis.UniversalClient // Optional: enables session persistence for OIDC
	Logger      *slog.Logger
}

// Identity is the configured identity provider and its side capabilities.
type Identity struct {
	Provider ports.IdentityProvider
	// Verifier authenticates bearer tokens locally; set only for the dev provider.
	Verifier ports.TokenVerifier
	// Dev is the dev provider, for the shell's mail outbox commands.
	Dev *devauth.Provider
	// Restore resumes a persisted session; a no-op when nothing is persisted.
	Restore func(ctx context.Context) error
}

// BuildIdentity creates the identity provider selected by cfg.Auth.Mode.
func BuildIdentity(cfg IdentityConfig) (Identity, error) {
	switch cfg.Auth.Mode {
	case config.AuthModeMock:
		return buildDevIdentity(cfg)
	case config.AuthModeOIDC:
		return buildOIDCIdentity(cfg)
	default:
		return Identity{}, fmt.Errorf("unsupported auth mode %q", cfg.Auth.Mode)
	}
}

func noRestore(context.Context) error { return nil }

func buildDevIdentity(cfg IdentityConfig) (Identity, error) {
	dev := cfg.Auth.DevAuth
	accounts, err := dev.ParseAccounts()
	if err != nil {
		return Identity{}, err
	}
	seed := make([]devauth.Account, 0, len(accounts))
	for _, a := range accounts {
		seed = append(seed, devauth.Account{
			Email:    a.Email,
			Password: a.Password,
			Verified: a.Verified,
			Disabled: a.Disabled,
		})
	}

	prov, err := devauth.NewProvider(devauth.Config{
		TokenSecret: []byte(dev.TokenSecret),
		Issuer:      dev.Issuer,
		TokenTTL:    dev.TokenTTL,
		Accounts:    seed,
		Logger:      cfg.Logger,
	})
	if err != nil {
		return Identity{}, fmt.Errorf("create dev auth provider: %w", err)
	}
	if cfg.Logger != nil {
		cfg.Logger.Warn("using in-memory dev identity provider", "accounts", len(seed))
	}
	return Identity{Provider: prov, Verifier: prov.Verifier(), Dev: prov, Restore: noRestore}, nil
}

func buildOIDCIdentity(cfg IdentityConfig) (Identity, error) {
	o := cfg.Auth.OIDC
	if o.DiscoveryURL == "" || o.ClientID == "" {
		return Identity{}, errors.New("AUTH_MODE=oidc requires OIDC_DISCOVERY_URL and OIDC_CLIENT_ID")
	}

	pc := oidc.ProviderConfig{
		ClientID:     o.ClientID,
		ClientSecret: o.ClientSecret,
		Scope:        o.Scope,
		DiscoveryURL: o.DiscoveryURL,
		AccountsURL:  o.AccountsURL,
		SessionTTL:   cfg.Session.TTL,
		Logger:       cfg.Logger,
	}
	if cfg.Session.Persist && cfg.RedisClient != nil {
		sealer, err := buildSealer(cfg.Session, cfg.Logger)
		if err != nil {
			return Identity{}, err
		}
		pc.Store = redisadapter.NewSessionStoreWithOptions(redisadapter.SessionStoreOptions{
			Client:     cfg.RedisClient,
			DefaultTTL: cfg.Session.TTL,
			Sealer:     sealer,
		})
		pc.DeviceID = deviceID(cfg.Session)
	}

	prov, err := oidc.NewProvider(pc)
	if err != nil {
		return Identity{}, fmt.Errorf("create OIDC provider: %w", err)
	}
	return Identity{Provider: prov, Restore: prov.Restore}, nil
}

// buildSealer returns the refresh-token sealer for SESSION_ENCRYPTION_KEY.
//
//nolint:ireturn // AES or plain sealer is picked from config.
func buildSealer(cfg config.SessionConfig, logger *slog.Logger) (cryptoutil.Sealer, error) {
	if cfg.EncryptionKey == "" {
		if logger != nil {
			logger.Warn("SESSION_ENCRYPTION_KEY is not set, refresh tokens are stored unencrypted")
		}
		return cryptoutil.PlainSealer{}, nil
	}
	key, err := cryptoutil.ParseKey(cfg.EncryptionKey)
	if err != nil {
		return nil, fmt.Errorf("SESSION_ENCRYPTION_KEY: %w", err)
	}
	sealer, err := cryptoutil.NewAESGCMSealer(key)
	if err != nil {
		return nil, fmt.Errorf("create session sealer: %w", err)
	}
	return sealer, nil
}

func deviceID(cfg config.SessionConfig) string {
	if cfg.DeviceID != "" {
		return cfg.DeviceID
	}
	if host, err := os.Hostname(); err == nil && host != "" {
		return host
	}
	return "default"
}
