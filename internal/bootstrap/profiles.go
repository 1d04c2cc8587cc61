package bootstrap

import (
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"github.com/festa-portal/portal-client/config"
	"github.com/festa-portal/portal-client/internal/adapters/authroles"
	"github.com/festa-portal/portal-client/internal/adapters/backend"
	"github.com/festa-portal/portal-client/internal/adapters/pgprofile"
	domainauth "github.com/festa-portal/portal-client/internal/domain/auth"
	"github.com/festa-portal/portal-client/internal/ports"
)

// ProfileConfig contains configuration for the profile source.
type ProfileConfig struct {
	Backend  config.BackendConfig
	Roles    ports.RoleMapper
	DB       *sql.DB             // Required for the postgres source
	Verifier ports.TokenVerifier // Required for the postgres source
	Logger   *slog.Logger
}

// BuildRoleMapper builds the role mapper from AUTH_ROLE_ALIASES.
func BuildRoleMapper(aliases map[string]string) (authroles.StaticRoleMapper, error) {
	mapped := make(map[string]domainauth.Role, len(aliases))
	for name, raw := range aliases {
		role, ok := domainauth.ParseRole(raw)
		if !ok {
			return authroles.StaticRoleMapper{}, fmt.Errorf("role alias %q: unknown role %q", name, raw)
		}
		mapped[authroles.NormalizeName(name)] = role
	}
	return authroles.StaticRoleMapper{Aliases: mapped}, nil
}

// BuildProfileFetcher creates the profile source selected by cfg.Backend.Source.
//
//nolint:ireturn // the source is chosen at runtime.
func BuildProfileFetcher(cfg ProfileConfig) (ports.ProfileFetcher, error) {
	switch cfg.Backend.Source {
	case config.ProfileSourceHTTP:
		client, err := backend.NewClient(backend.ClientOptions{
			BaseURL:       cfg.Backend.BaseURL,
			ProfilePath:   cfg.Backend.ProfilePath,
			Timeout:       cfg.Backend.Timeout,
			Roles:         cfg.Roles,
			RoleExpr:      cfg.Backend.RoleExpr,
			ErrorCodeExpr: cfg.Backend.ErrorCodeExpr,
			Logger:        cfg.Logger,
		})
		if err != nil {
			return nil, fmt.Errorf("create backend client: %w", err)
		}
		return client, nil
	case config.ProfileSourcePostgres:
		if cfg.DB == nil {
			return nil, errors.New("PROFILE_SOURCE=postgres requires a database connection")
		}
		if cfg.Verifier == nil {
			return nil, errors.New("PROFILE_SOURCE=postgres requires AUTH_MODE=mock to verify tokens locally")
		}
		store, err := pgprofile.NewStore(pgprofile.StoreOptions{
			DB:       cfg.DB,
			Verifier: cfg.Verifier,
			Roles:    cfg.Roles,
			Logger:   cfg.Logger,
		})
		if err != nil {
			return nil, fmt.Errorf("create profile store: %w", err)
		}
		return store, nil
	default:
		return nil, fmt.Errorf("unsupported profile source %q", cfg.Backend.Source)
	}
}
