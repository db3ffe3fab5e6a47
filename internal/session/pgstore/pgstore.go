// Package pgstore keeps call sessions in PostgreSQL so several phonetree
// instances can serve the same calls.
package pgstore

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/flowpbx/phonetree/internal/database"
	"github.com/flowpbx/phonetree/internal/ivr"
	"github.com/flowpbx/phonetree/internal/session"

	_ "github.com/jackc/pgx/v5/stdlib"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// Store implements session.Store using PostgreSQL.
type Store struct {
	db  *sql.DB
	ttl time.Duration
}

// New opens a PostgreSQL connection and runs pending migrations. Sessions
// expire ttl after their last write; a ttl of zero disables expiry.
func New(ctx context.Context, dsn string, ttl time.Duration) (*Store, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("opening postgresql: %w", err)
	}

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("pinging postgresql: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	s := &Store{db: db, ttl: ttl}

	if _, err := s.migrate(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	slog.Info("postgresql session store opened")
	return s, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// migrationPrefix namespaces session migrations in a shared
// schema_migrations table.
const migrationPrefix = "ivr_"

// migrate applies pending session migrations and reports how many ran.
func (s *Store) migrate(ctx context.Context) (int, error) {
	migrations, err := database.LoadMigrations(migrationsFS, "migrations", migrationPrefix)
	if err != nil {
		return 0, err
	}
	return database.Migrate(ctx, s.db, database.Postgres, migrations)
}

// Get returns the session for callID.
func (s *Store) Get(ctx context.Context, callID string) (ivr.Session, error) {
	var (
		state     string
		updatedAt time.Time
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT current_state, updated_at FROM ivr_sessions
		 WHERE call_id = $1 AND (expires_at IS NULL OR expires_at > NOW())`,
		callID,
	).Scan(&state, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return ivr.Session{}, session.ErrNotFound
	}
	if err != nil {
		return ivr.Session{}, fmt.Errorf("querying session %s: %w", callID, err)
	}

	return ivr.Session{
		CallID:       callID,
		CurrentState: ivr.StateID(state),
		UpdatedAt:    updatedAt.UTC(),
	}, nil
}

// Put upserts the session row.
func (s *Store) Put(ctx context.Context, sess ivr.Session) error {
	var expiresAt sql.NullTime
	if s.ttl > 0 {
		expiresAt = sql.NullTime{Time: time.Now().Add(s.ttl), Valid: true}
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO ivr_sessions (call_id, current_state, updated_at, expires_at)
		 VALUES ($1, $2, $3, $4)
		 ON CONFLICT (call_id) DO UPDATE SET
		   current_state = EXCLUDED.current_state,
		   updated_at = EXCLUDED.updated_at,
		   expires_at = EXCLUDED.expires_at`,
		sess.CallID, string(sess.CurrentState), sess.UpdatedAt, expiresAt,
	)
	if err != nil {
		return fmt.Errorf("storing session %s: %w", sess.CallID, err)
	}
	return nil
}

// Delete removes the session row.
func (s *Store) Delete(ctx context.Context, callID string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM ivr_sessions WHERE call_id = $1`, callID); err != nil {
		return fmt.Errorf("deleting session %s: %w", callID, err)
	}
	return nil
}

// Count returns the number of unexpired sessions.
func (s *Store) Count(ctx context.Context) (int64, error) {
	var n int64
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM ivr_sessions WHERE expires_at IS NULL OR expires_at > NOW()`,
	).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("counting sessions: %w", err)
	}
	return n, nil
}

// DeleteExpired removes expired rows.
func (s *Store) DeleteExpired(ctx context.Context) (int64, error) {
	result, err := s.db.ExecContext(ctx, `DELETE FROM ivr_sessions WHERE expires_at <= NOW()`)
	if err != nil {
		return 0, fmt.Errorf("deleting expired sessions: %w", err)
	}
	return result.RowsAffected()
}

var (
	_ session.Store   = (*Store)(nil)
	_ session.Expirer = (*Store)(nil)
)
