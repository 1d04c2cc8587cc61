// Command portal is the terminal client of the festival portal.
package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/festa-portal/portal-client/config"
	"github.com/festa-portal/portal-client/internal/bootstrap"
)

func main() {
	logger := bootstrap.InitLogger(os.Stderr, slog.LevelInfo)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		logger.ErrorContext(ctx, "fatal error", "error", err)
		stop()
		os.Exit(1) //nolint:forbidigo // Main entrypoint should exit with non-zero status on fatal errors.
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "portal",
		Short: "Festival portal client",
		Long: `portal signs you in to the festival portal, resolves your profile and
role, and lets you move between portal pages from the terminal.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	shell := newShellCmd()
	root.RunE = shell.RunE
	root.Flags().AddFlagSet(shell.Flags())

	root.AddCommand(shell, newPagesCmd(), newMigrateCmd(), newProfilesCmd())
	return root
}

// loadConfig reads configuration and re-installs the logger at the configured level.
func loadConfig() (config.AppConfig, *slog.Logger, error) {
	cfg, err := bootstrap.LoadConfig()
	if err != nil {
		return cfg, slog.Default(), err
	}
	logger := bootstrap.InitLogger(os.Stderr, cfg.Observability.SlogLevel())
	return cfg, logger, nil
}
