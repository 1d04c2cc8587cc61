package bootstrap

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"github.com/redis/go-redis/v9"

	"github.com/festa-portal/portal-client/config"
	"github.com/festa-portal/portal-client/internal/observability/statsd"
	"github.com/festa-portal/portal-client/internal/ports"
	"github.com/festa-portal/portal-client/internal/service"
)

// App holds the wired auth core and the infrastructure it owns.
type App struct {
	Config   config.AppConfig
	Logger   *slog.Logger
	Identity Identity
	Profiles ports.ProfileFetcher
	Auth     *service.AuthMachine
	Metrics  statsd.Sink
	DB       *sql.DB

	closers []func() error
}

// Build connects infrastructure and wires the auth core. The auth machine is
// created but not started; call App.Start.
func Build(ctx context.Context, cfg config.AppConfig, logger *slog.Logger) (*App, error) {
	if logger == nil {
		logger = slog.Default()
	}
	app := &App{Config: cfg, Logger: logger}

	if err := app.build(ctx); err != nil {
		if closeErr := app.Close(); closeErr != nil {
			err = errors.Join(err, closeErr)
		}
		return nil, err
	}
	return app, nil
}

func (a *App) build(ctx context.Context) error {
	cfg := a.Config
	dbCfg := DatabaseConfig{DBConfig: cfg.Postgres, RedisConfig: cfg.Redis, Logger: a.Logger}

	if client := BuildMetricsSink(cfg.Observability.Metrics, a.Logger); client != nil {
		a.Metrics = client
		a.closers = append(a.closers, client.Close)
	}

	var redisClient redis.UniversalClient
	if cfg.NeedsRedis() {
		client, err := ConnectRedis(ctx, dbCfg)
		if err != nil {
			return err
		}
		redisClient = client
		a.closers = append(a.closers, client.Close)
	}

	if cfg.NeedsPostgres() {
		db, err := ConnectDB(ctx, dbCfg)
		if err != nil {
			return err
		}
		a.DB = db
		a.closers = append(a.closers, db.Close)
		if cfg.Postgres.RunMigrationsOnStart {
			if err := RunMigrations(ctx, db, a.Logger); err != nil {
				return err
			}
		}
	}

	identity, err := BuildIdentity(IdentityConfig{
		Auth:        cfg.Auth,
		Session:     cfg.Session,
		RedisClient: redisClient,
		Logger:      a.Logger,
	})
	if err != nil {
		return err
	}
	a.Identity = identity

	roles, err := BuildRoleMapper(cfg.Auth.RoleAliases)
	if err != nil {
		return err
	}
	profiles, err := BuildProfileFetcher(ProfileConfig{
		Backend:  cfg.Backend,
		Roles:    roles,
		DB:       a.DB,
		Verifier: identity.Verifier,
		Logger:   a.Logger,
	})
	if err != nil {
		return err
	}
	a.Profiles = profiles

	machine, err := service.NewAuthMachine(service.AuthMachineOptions{
		Identity:       identity.Provider,
		Profiles:       profiles,
		Logger:         a.Logger,
		Metrics:        a.Metrics,
		RequestTimeout: cfg.Auth.RequestTimeout,
		Strict:         cfg.IsDev,
	})
	if err != nil {
		return fmt.Errorf("create auth machine: %w", err)
	}
	a.Auth = machine
	a.closers = append(a.closers, func() error { machine.Close(); return nil })
	return nil
}

// Start subscribes the auth machine and restores any persisted session.
// A failed restore is logged; the shell starts signed out.
func (a *App) Start(ctx context.Context) error {
	if err := a.Auth.Init(ctx); err != nil {
		return fmt.Errorf("start auth machine: %w", err)
	}
	if a.Identity.Restore != nil {
		if err := a.Identity.Restore(ctx); err != nil {
			a.Logger.WarnContext(ctx, "could not restore session", "error", err)
		}
	}
	return nil
}

// Close releases everything Build acquired, in reverse order.
func (a *App) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}
