// Package sqlitestore keeps call sessions in the local SQLite database.
package sqlitestore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/flowpbx/phonetree/internal/database"
	"github.com/flowpbx/phonetree/internal/ivr"
	"github.com/flowpbx/phonetree/internal/session"
)

// Store implements session.Store on the ivr_sessions table.
type Store struct {
	db  *database.DB
	ttl time.Duration
	now func() time.Time
}

// New creates a store on an already migrated database. Sessions expire ttl
// after their last write; a ttl of zero disables expiry.
func New(db *database.DB, ttl time.Duration) *Store {
	return &Store{db: db, ttl: ttl, now: time.Now}
}

// Get returns the session for callID.
func (s *Store) Get(ctx context.Context, callID string) (ivr.Session, error) {
	var (
		state     string
		updatedAt int64
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT current_state, updated_at FROM ivr_sessions
		 WHERE call_id = ? AND (expires_at = 0 OR expires_at > ?)`,
		callID, s.now().UnixNano(),
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
		UpdatedAt:    time.Unix(0, updatedAt).UTC(),
	}, nil
}

// Put inserts or replaces the session row.
func (s *Store) Put(ctx context.Context, sess ivr.Session) error {
	var expiresAt int64
	if s.ttl > 0 {
		expiresAt = s.now().Add(s.ttl).UnixNano()
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO ivr_sessions (call_id, current_state, updated_at, expires_at)
		 VALUES (?, ?, ?, ?)
		 ON CONFLICT(call_id) DO UPDATE SET
		   current_state = excluded.current_state,
		   updated_at = excluded.updated_at,
		   expires_at = excluded.expires_at`,
		sess.CallID, string(sess.CurrentState), sess.UpdatedAt.UnixNano(), expiresAt,
	)
	if err != nil {
		return fmt.Errorf("storing session %s: %w", sess.CallID, err)
	}
	return nil
}

// Delete removes the session row.
func (s *Store) Delete(ctx context.Context, callID string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM ivr_sessions WHERE call_id = ?`, callID); err != nil {
		return fmt.Errorf("deleting session %s: %w", callID, err)
	}
	return nil
}

// Count returns the number of unexpired sessions.
func (s *Store) Count(ctx context.Context) (int64, error) {
	var n int64
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM ivr_sessions WHERE expires_at = 0 OR expires_at > ?`,
		s.now().UnixNano(),
	).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("counting sessions: %w", err)
	}
	return n, nil
}

// DeleteExpired removes expired rows.
func (s *Store) DeleteExpired(ctx context.Context) (int64, error) {
	result, err := s.db.ExecContext(ctx,
		`DELETE FROM ivr_sessions WHERE expires_at != 0 AND expires_at <= ?`,
		s.now().UnixNano(),
	)
	if err != nil {
		return 0, fmt.Errorf("deleting expired sessions: %w", err)
	}
	return result.RowsAffected()
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

var (
	_ session.Store   = (*Store)(nil)
	_ session.Expirer = (*Store)(nil)
)
