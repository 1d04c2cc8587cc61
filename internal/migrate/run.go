// Package migrate applies the profile store schema embedded in the binary.
package migrate

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"path"
	"regexp"
	"sort"

	apperrors "github.com/festa-portal/portal-client/internal/errors"
)

//go:embed migrations/*.sql
var embedded embed.FS

const (
	// HistoryTable records applied versions.
	HistoryTable = "portal_schema_migrations"

	// lockKey serializes concurrent clients migrating the same database.
	lockKey int64 = 0x706f7274616c
)

var fileName = regexp.MustCompile(`^(\d{4})_([a-z0-9_]+)\.sql$`)

// Migration is one embedded schema change.
type Migration struct {
	Version string
	Name    string
	body    string
}

// Options configures Run.
type Options struct {
	Logger *slog.Logger
	// Source overrides the embedded migrations; nil uses the built-in set.
	Source fs.FS
}

// Run applies every pending migration in version order and returns the
// versions it applied. Each migration runs in its own transaction under an
// advisory lock, so calling Run again or from several processes is harmless.
func Run(ctx context.Context, db *sql.DB, opts Options) ([]string, error) {
	if db == nil {
		return nil, errors.New("db is required")
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "migrate")

	src := opts.Source
	if src == nil {
		sub, err := fs.Sub(embedded, "migrations")
		if err != nil {
			return nil, fmt.Errorf("open embedded migrations: %w", err)
		}
		src = sub
	}
	migrations, err := Load(src)
	if err != nil {
		return nil, err
	}

	if _, err := db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS `+HistoryTable+` (
			version TEXT PRIMARY KEY,
			name TEXT NOT NULL,
			applied_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)`); err != nil {
		return nil, fmt.Errorf("create %s: %w", HistoryTable, apperrors.MapDBError(err))
	}

	var applied []string
	for _, m := range migrations {
		ok, err := apply(ctx, db, m, logger)
		if err != nil {
			return applied, err
		}
		if ok {
			applied = append(applied, m.Version)
		}
	}
	return applied, nil
}

// Load reads NNNN_name.sql files from src, sorted by version.
func Load(src fs.FS) ([]Migration, error) {
	entries, err := fs.ReadDir(src, ".")
	if err != nil {
		return nil, fmt.Errorf("read migrations: %w", err)
	}

	seen := make(map[string]string, len(entries))
	var out []Migration
	for _, entry := range entries {
		if entry.IsDir() || path.Ext(entry.Name()) != ".sql" {
			continue
		}
		match := fileName.FindStringSubmatch(entry.Name())
		if match == nil {
			return nil, apperrors.ValidationField("migration", fmt.Sprintf("file %q is not named NNNN_name.sql", entry.Name()))
		}
		if prev, dup := seen[match[1]]; dup {
			return nil, apperrors.Newf(apperrors.ErrCodeConflict, "migration version %s used by %s and %s", match[1], prev, entry.Name())
		}
		seen[match[1]] = entry.Name()

		body, err := fs.ReadFile(src, entry.Name())
		if err != nil {
			return nil, fmt.Errorf("read migration %s: %w", entry.Name(), err)
		}
		out = append(out, Migration{Version: match[1], Name: match[2], body: string(body)})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Version < out[j].Version })
	return out, nil
}

func apply(ctx context.Context, db *sql.DB, m Migration, logger *slog.Logger) (bool, error) {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("begin migration %s: %w", m.Version, apperrors.MapDBError(err))
	}
	defer func() {
		if rbErr := tx.Rollback(); rbErr != nil && !errors.Is(rbErr, sql.ErrTxDone) {
			logger.ErrorContext(ctx, "rollback failed", "version", m.Version, "error", rbErr)
		}
	}()

	if _, err := tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock($1)`, lockKey); err != nil {
		return false, fmt.Errorf("lock migrations: %w", apperrors.MapDBError(err))
	}

	var done bool
	if err := tx.QueryRowContext(ctx,
		`SELECT EXISTS(SELECT 1 FROM `+HistoryTable+` WHERE version = $1)`, m.Version,
	).Scan(&done); err != nil {
		return false, fmt.Errorf("check migration %s: %w", m.Version, apperrors.MapDBError(err))
	}
	if done {
		return false, nil
	}

	logger.InfoContext(ctx, "applying migration", "version", m.Version, "name", m.Name)
	if _, err := tx.ExecContext(ctx, m.body); err != nil {
		return false, fmt.Errorf("migration %s_%s: %w", m.Version, m.Name, apperrors.MapDBError(err))
	}
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO `+HistoryTable+` (version, name) VALUES ($1, $2)`, m.Version, m.Name,
	); err != nil {
		return false, fmt.Errorf("record migration %s: %w", m.Version, apperrors.MapDBError(err))
	}
	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("commit migration %s: %w", m.Version, apperrors.MapDBError(err))
	}
	return true, nil
}
