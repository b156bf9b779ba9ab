// Package migrate applies the SQL migrations embedded alongside it.
package migrate

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

const ledgerTable = `
	CREATE TABLE IF NOT EXISTS schema_migrations (
		version TEXT PRIMARY KEY,
		applied_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`

// Run applies every embedded migration that is not yet recorded in
// schema_migrations, in lexical order of file name. Each migration runs in
// its own transaction together with its ledger row, so a failure leaves the
// schema at the last fully applied version. Calling Run again is a no-op for
// versions already in the ledger.
func Run(ctx context.Context, db *sql.DB) error {
	if _, err := db.ExecContext(ctx, ledgerTable); err != nil {
		return fmt.Errorf("create schema_migrations table: %w", err)
	}

	pending, err := pendingMigrations(ctx, db)
	if err != nil {
		return err
	}

	logger := slog.Default().With("component", "migrations")
	for _, m := range pending {
		if err := m.apply(ctx, db, logger); err != nil {
			return err
		}
	}
	return nil
}

// migration is one embedded .sql file; version is the file name without the
// extension.
type migration struct {
	version string
	file    string
}

// pendingMigrations lists the embedded migrations whose version has no
// ledger row yet, sorted by file name.
func pendingMigrations(ctx context.Context, db *sql.DB) ([]migration, error) {
	entries, err := migrationsFS.ReadDir("migrations")
	if err != nil {
		return nil, fmt.Errorf("read migrations: %w", err)
	}

	applied, err := appliedVersions(ctx, db)
	if err != nil {
		return nil, err
	}

	var pending []migration
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".sql") {
			continue
		}
		m := migration{version: strings.TrimSuffix(e.Name(), ".sql"), file: e.Name()}
		if !applied[m.version] {
			pending = append(pending, m)
		}
	}
	sort.Slice(pending, func(i, j int) bool { return pending[i].file < pending[j].file })
	return pending, nil
}

func appliedVersions(ctx context.Context, db *sql.DB) (map[string]bool, error) {
	rows, err := db.QueryContext(ctx, `SELECT version FROM schema_migrations`)
	if err != nil {
		return nil, fmt.Errorf("read schema_migrations: %w", err)
	}
	defer rows.Close()

	applied := make(map[string]bool)
	for rows.Next() {
		var v string
		if err := rows.Scan(&v); err != nil {
			return nil, fmt.Errorf("scan schema_migrations: %w", err)
		}
		applied[v] = true
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("read schema_migrations: %w", err)
	}
	return applied, nil
}

func (m migration) apply(ctx context.Context, db *sql.DB, logger *slog.Logger) error {
	stmts, err := migrationsFS.ReadFile("migrations/" + m.file)
	if err != nil {
		return fmt.Errorf("read migration %s: %w", m.file, err)
	}

	logger.InfoContext(ctx, "applying migration", "version", m.version)

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() {
		if rbErr := tx.Rollback(); rbErr != nil && !errors.Is(rbErr, sql.ErrTxDone) {
			logger.ErrorContext(ctx, "failed to rollback migration",
				"version", m.version, "error", rbErr)
		}
	}()

	if _, err := tx.ExecContext(ctx, string(stmts)); err != nil {
		return fmt.Errorf("exec migration %s: %w", m.file, err)
	}
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO schema_migrations (version) VALUES ($1)`, m.version,
	); err != nil {
		return fmt.Errorf("record migration %s: %w", m.file, err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit migration %s: %w", m.file, err)
	}
	return nil
}
