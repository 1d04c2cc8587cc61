package main

import (
	"context"
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/festa-portal/portal-client/internal/adapters/pgprofile"
	"github.com/festa-portal/portal-client/internal/bootstrap"
	"github.com/festa-portal/portal-client/internal/domain/access"
	domainauth "github.com/festa-portal/portal-client/internal/domain/auth"
)

const defaultMigrationTimeout = 5 * time.Minute

func newPagesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "pages",
		Short: "List portal routes and their access policies",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return printPages(cmd.OutOrStdout(), access.NewRegistry(access.PortalPages()...))
		},
	}
}

func printPages(out io.Writer, pages *access.Registry) error {
	w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	if _, err := fmt.Fprintln(w, "PATH\tTITLE\tPOLICY"); err != nil {
		return fmt.Errorf("write pages header: %w", err)
	}
	for _, p := range pages.Pages() {
		if _, err := fmt.Fprintf(w, "%s\t%s\t%s\n", p.Path, p.Title, p.Policy); err != nil {
			return fmt.Errorf("write page %s: %w", p.Path, err)
		}
	}
	return w.Flush()
}

func newMigrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply database migrations for the local profile store",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, logger, err := loadConfig()
			if err != nil {
				return err
			}
			ctx, cancel := context.WithTimeout(cmd.Context(), defaultMigrationTimeout)
			defer cancel()

			db, err := bootstrap.ConnectDB(ctx, bootstrap.DatabaseConfig{DBConfig: cfg.Postgres, Logger: logger})
			if err != nil {
				return err
			}
			defer func() {
				if cerr := db.Close(); cerr != nil {
					logger.ErrorContext(ctx, "close database failed", "error", cerr)
				}
			}()
			return bootstrap.RunMigrations(ctx, db, logger)
		},
	}
}

func newProfilesCmd() *cobra.Command {
	profiles := &cobra.Command{
		Use:   "profiles",
		Short: "Manage profiles in the local profile store",
	}
	profiles.AddCommand(&cobra.Command{
		Use:   "set-role <identity-id> <role>",
		Short: "Change the role of a profile",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			role, ok := domainauth.ParseRole(args[1])
			if !ok {
				return fmt.Errorf("unknown role %q", args[1])
			}
			cfg, logger, err := loadConfig()
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			db, err := bootstrap.ConnectDB(ctx, bootstrap.DatabaseConfig{DBConfig: cfg.Postgres, Logger: logger})
			if err != nil {
				return err
			}
			defer func() {
				if cerr := db.Close(); cerr != nil {
					logger.ErrorContext(ctx, "close database failed", "error", cerr)
				}
			}()

			if err := pgprofile.SetRole(ctx, db, args[0], role); err != nil {
				return err
			}
			logger.InfoContext(ctx, "profile role updated", "identity_id", args[0], "role", string(role))
			return nil
		},
	})
	return profiles
}
