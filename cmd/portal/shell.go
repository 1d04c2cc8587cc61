package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/festa-portal/portal-client/internal/bootstrap"
	"github.com/festa-portal/portal-client/internal/domain/access"
	"github.com/festa-portal/portal-client/internal/service"
	"github.com/festa-portal/portal-client/internal/shell"
)

func newShellCmd() *cobra.Command {
	var startPath string
	cmd := &cobra.Command{
		Use:   "shell",
		Short: "Start the interactive portal shell (default)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runShell(cmd.Context(), cmd, startPath)
		},
	}
	cmd.Flags().StringVar(&startPath, "path", "/", "Route to open first")
	return cmd
}

func runShell(ctx context.Context, cmd *cobra.Command, startPath string) error {
	cfg, logger, err := loadConfig()
	if err != nil {
		return err
	}
	logger.InfoContext(ctx, "starting portal shell",
		"auth_mode", string(cfg.Auth.Mode),
		"profile_source", string(cfg.Backend.Source),
		"dev", cfg.IsDev)

	app, err := bootstrap.Build(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := app.Close(); cerr != nil {
			logger.ErrorContext(ctx, "shutdown failed", "error", cerr)
		}
	}()

	router := shell.NewRouter(startPath)
	opts := shell.Options{
		Auth:   app.Auth,
		Router: router,
		In:     cmd.InOrStdin(),
		Out:    cmd.OutOrStdout(),
		Logger: logger,
	}
	if app.Identity.Dev != nil {
		opts.Dev = app.Identity.Dev
	}
	sh, err := shell.New(opts)
	if err != nil {
		return fmt.Errorf("create shell: %w", err)
	}

	effect, err := service.NewRedirectEffect(service.RedirectEffectOptions{
		Auth:      app.Auth,
		Navigator: router,
		Targets:   access.Targets{Login: cfg.Routes.LoginPath, Home: cfg.Routes.HomePath},
		Logger:    logger,
		Metrics:   app.Metrics,
		OnOutcome: sh.Render,
	})
	if err != nil {
		return fmt.Errorf("create redirect effect: %w", err)
	}

	if err := app.Start(ctx); err != nil {
		return err
	}

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	g, gctx := errgroup.WithContext(runCtx)
	g.Go(func() error {
		return effect.Run(gctx)
	})
	g.Go(func() error {
		defer cancel()
		return sh.Run(gctx)
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}
