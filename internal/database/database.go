// Package database opens the local SQLite file that backs the sqlite
// session store, and provides the migration runner shared with the
// postgres store.
package database

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// FileName is the database file created inside the data directory.
const FileName = "phonetree.db"

// DB wraps a sql.DB connection with the SQLite pragmas used by phonetree.
type DB struct {
	*sql.DB
	Path string
}

// Open creates or opens phonetree.db under dataDir with WAL mode enabled
// and applies pending migrations.
func Open(ctx context.Context, dataDir string) (*DB, error) {
	if err := os.MkdirAll(dataDir, 0750); err != nil {
		return nil, fmt.Errorf("creating data directory: %w", err)
	}

	dbPath := filepath.Join(dataDir, FileName)
	dsn := fmt.Sprintf("file:%s?_pragma=journal_mode(wal)&_pragma=busy_timeout(5000)", dbPath)

	sqlDB, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	if err := sqlDB.PingContext(ctx); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("pinging database: %w", err)
	}

	// Single writer; session rows are tiny and turns are short.
	sqlDB.SetMaxOpenConns(1)
	sqlDB.SetConnMaxIdleTime(10 * time.Minute)

	migrations, err := LoadMigrations(migrationsFS, "migrations", "")
	if err != nil {
		sqlDB.Close()
		return nil, err
	}
	if _, err := Migrate(ctx, sqlDB, SQLite, migrations); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	slog.Info("database opened", "path", dbPath)
	return &DB{DB: sqlDB, Path: dbPath}, nil
}
