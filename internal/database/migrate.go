package database

import (
	"context"
	"database/sql"
	"fmt"
	"io/fs"
	"log/slog"
	"path"
	"sort"
	"strings"
)

// Dialect holds the bookkeeping statements that differ between SQL engines.
type Dialect struct {
	Name          string
	CreateTracker string
	IsApplied     string // one placeholder: version
	MarkApplied   string // one placeholder: version
}

// SQLite is the dialect of the embedded modernc.org/sqlite database.
var SQLite = Dialect{
	Name: "sqlite",
	CreateTracker: `CREATE TABLE IF NOT EXISTS schema_migrations (
		version TEXT PRIMARY KEY,
		applied_at DATETIME DEFAULT (datetime('now'))
	)`,
	IsApplied:   "SELECT COUNT(*) FROM schema_migrations WHERE version = ?",
	MarkApplied: "INSERT INTO schema_migrations (version) VALUES (?)",
}

// Postgres is the dialect of the pgx stdlib driver.
var Postgres = Dialect{
	Name: "postgres",
	CreateTracker: `CREATE TABLE IF NOT EXISTS schema_migrations (
		version    TEXT PRIMARY KEY,
		applied_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	IsApplied:   "SELECT COUNT(*) FROM schema_migrations WHERE version = $1",
	MarkApplied: "INSERT INTO schema_migrations (version) VALUES ($1)",
}

// Migration is one versioned SQL script.
type Migration struct {
	Version string
	SQL     string
}

// LoadMigrations reads every *.sql file in dir of fsys, ordered by file
// name. Versions are the file names without extension, prefixed with
// prefix so several components can share one schema_migrations table.
func LoadMigrations(fsys fs.FS, dir, prefix string) ([]Migration, error) {
	entries, err := fs.ReadDir(fsys, dir)
	if err != nil {
		return nil, fmt.Errorf("reading migrations directory: %w", err)
	}

	sort.Slice(entries, func(i, j int) bool {
		return entries[i].Name() < entries[j].Name()
	})

	var migrations []Migration
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".sql") {
			continue
		}
		content, err := fs.ReadFile(fsys, path.Join(dir, entry.Name()))
		if err != nil {
			return nil, fmt.Errorf("reading migration %s: %w", entry.Name(), err)
		}
		migrations = append(migrations, Migration{
			Version: prefix + strings.TrimSuffix(entry.Name(), ".sql"),
			SQL:     string(content),
		})
	}
	return migrations, nil
}

// Migrate applies every migration not yet recorded in schema_migrations.
// Each one runs in its own transaction together with its bookkeeping row.
// It returns the number of migrations applied.
func Migrate(ctx context.Context, db *sql.DB, d Dialect, migrations []Migration) (int, error) {
	if _, err := db.ExecContext(ctx, d.CreateTracker); err != nil {
		return 0, fmt.Errorf("creating schema_migrations table: %w", err)
	}

	applied := 0
	for _, m := range migrations {
		var count int
		if err := db.QueryRowContext(ctx, d.IsApplied, m.Version).Scan(&count); err != nil {
			return applied, fmt.Errorf("checking migration %s: %w", m.Version, err)
		}
		if count > 0 {
			continue
		}

		if err := applyMigration(ctx, db, d, m); err != nil {
			return applied, err
		}
		applied++

		slog.Info("applied migration", "dialect", d.Name, "version", m.Version)
	}
	return applied, nil
}

func applyMigration(ctx context.Context, db *sql.DB, d Dialect, m Migration) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction for migration %s: %w", m.Version, err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, m.SQL); err != nil {
		return fmt.Errorf("executing migration %s: %w", m.Version, err)
	}
	if _, err := tx.ExecContext(ctx, d.MarkApplied, m.Version); err != nil {
		return fmt.Errorf("recording migration %s: %w", m.Version, err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing migration %s: %w", m.Version, err)
	}
	return nil
}
