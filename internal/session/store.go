// Package session persists the IVR state of each call between webhook turns.
package session

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/flowpbx/phonetree/internal/ivr"
)

// ErrNotFound is returned when no session exists for a call.
var ErrNotFound = errors.New("session not found")

// DefaultTTL is how long an idle call session is kept.
const DefaultTTL = 4 * time.Hour

// Store persists one ivr.Session per call. Implementations must give
// read-after-write consistency for a single call and must never expose
// one call's session under another call's key.
type Store interface {
	// Get returns the session for callID, or ErrNotFound.
	Get(ctx context.Context, callID string) (ivr.Session, error)

	// Put creates or replaces the session keyed by sess.CallID.
	Put(ctx context.Context, sess ivr.Session) error

	// Delete removes the session for callID. Deleting a missing session is
	// not an error.
	Delete(ctx context.Context, callID string) error

	// Count returns the number of live sessions.
	Count(ctx context.Context) (int64, error)

	// Close releases the store's resources.
	Close() error
}

// Expirer is implemented by stores that need explicit removal of idle
// sessions. Stores with native key expiry do not implement it.
type Expirer interface {
	DeleteExpired(ctx context.Context) (int64, error)
}

// StartCleanupTicker runs a goroutine that periodically removes expired
// sessions. It stops when the provided context is cancelled.
func StartCleanupTicker(ctx context.Context, store Expirer, interval time.Duration) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				removed, err := store.DeleteExpired(ctx)
				if err != nil {
					slog.Error("failed to clean expired sessions", "error", err)
					continue
				}
				if removed > 0 {
					slog.Debug("cleaned expired sessions", "removed", removed)
				}
			}
		}
	}()
}
