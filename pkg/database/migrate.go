package database

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"slices"
	"strings"

	"github.com/jackc/pgx/v5"
)

const (
	upSuffix = ".up.sql"

	createVersionTable = `CREATE TABLE IF NOT EXISTS schema_migrations (
	version TEXT PRIMARY KEY,
	applied_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
)`
	selectVersions = `SELECT version FROM schema_migrations`
	insertVersion  = `INSERT INTO schema_migrations (version) VALUES ($1)`
)

// PendingFiles returns the names of the *.up.sql files at the root of
// migrations in lexical order, which is apply order.
func PendingFiles(migrations fs.FS) ([]string, error) {
	entries, err := fs.ReadDir(migrations, ".")
	if err != nil {
		return nil, fmt.Errorf("read migrations dir: %w", err)
	}
	var names []string
	for _, e := range entries {
		if e.Type().IsRegular() && strings.HasSuffix(e.Name(), upSuffix) {
			names = append(names, e.Name())
		}
	}
	slices.Sort(names)
	return names, nil
}

// RunMigrations applies each up migration not yet listed in
// schema_migrations, one transaction per file. Connection failures restart
// the run with the startup backoff; SQL errors abort it.
func RunMigrations(ctx context.Context, db Migrator, migrations fs.FS, logger *slog.Logger) error {
	return withRetry(ctx, "run migrations", logger, func() error {
		err := migrate(ctx, db, migrations, logger)
		if err != nil && !isConnectionError(err) {
			return permanentError{err}
		}
		return err
	})
}

func migrate(ctx context.Context, db Migrator, migrations fs.FS, logger *slog.Logger) error {
	if _, err := db.Exec(ctx, createVersionTable); err != nil {
		return fmt.Errorf("create schema_migrations table: %w", err)
	}

	names, err := PendingFiles(migrations)
	if err != nil {
		return err
	}

	rows, err := db.Query(ctx, selectVersions)
	if err != nil {
		return fmt.Errorf("list applied migrations: %w", err)
	}
	applied, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return fmt.Errorf("list applied migrations: %w", err)
	}

	for _, name := range names {
		if slices.Contains(applied, name) {
			continue
		}
		body, err := fs.ReadFile(migrations, name)
		if err != nil {
			return fmt.Errorf("read migration %s: %w", name, err)
		}
		if err := applyOne(ctx, db, name, string(body)); err != nil {
			return err
		}
		if logger != nil {
			logger.Info("migration applied", slog.String("version", name))
		}
	}
	return nil
}

func applyOne(ctx context.Context, db Migrator, name, body string) error {
	tx, err := db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin migration %s: %w", name, err)
	}
	if _, err := tx.Exec(ctx, body); err != nil {
		_ = tx.Rollback(ctx)
		return fmt.Errorf("execute migration %s: %w", name, err)
	}
	if _, err := tx.Exec(ctx, insertVersion, name); err != nil {
		_ = tx.Rollback(ctx)
		return fmt.Errorf("record migration %s: %w", name, err)
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit migration %s: %w", name, err)
	}
	return nil
}
