package session

import (
	"context"
	"sync"
	"time"

	"github.com/flowpbx/phonetree/internal/ivr"
)

type memoryEntry struct {
	sess      ivr.Session
	expiresAt time.Time
}

// MemoryStore keeps sessions in process memory. Safe for concurrent use.
type MemoryStore struct {
	mu       sync.RWMutex
	sessions map[string]memoryEntry
	ttl      time.Duration
	now      func() time.Time
}

// NewMemoryStore creates an empty store whose sessions expire ttl after
// their last write. A ttl of zero disables expiry.
func NewMemoryStore(ttl time.Duration) *MemoryStore {
	return &MemoryStore{
		sessions: make(map[string]memoryEntry),
		ttl:      ttl,
		now:      time.Now,
	}
}

// Get returns the session for callID. Expired sessions are removed and
// reported as ErrNotFound.
func (s *MemoryStore) Get(_ context.Context, callID string) (ivr.Session, error) {
	s.mu.RLock()
	entry, ok := s.sessions[callID]
	s.mu.RUnlock()

	if !ok {
		return ivr.Session{}, ErrNotFound
	}

	if s.expired(entry, s.now()) {
		s.mu.Lock()
		delete(s.sessions, callID)
		s.mu.Unlock()
		return ivr.Session{}, ErrNotFound
	}

	return entry.sess, nil
}

// Put stores sess, replacing any previous session for the same call.
func (s *MemoryStore) Put(_ context.Context, sess ivr.Session) error {
	entry := memoryEntry{sess: sess}
	if s.ttl > 0 {
		entry.expiresAt = s.now().Add(s.ttl)
	}

	s.mu.Lock()
	s.sessions[sess.CallID] = entry
	s.mu.Unlock()
	return nil
}

// Delete removes a session by call ID.
func (s *MemoryStore) Delete(_ context.Context, callID string) error {
	s.mu.Lock()
	delete(s.sessions, callID)
	s.mu.Unlock()
	return nil
}

// Count returns the number of unexpired sessions.
func (s *MemoryStore) Count(_ context.Context) (int64, error) {
	now := s.now()

	s.mu.RLock()
	defer s.mu.RUnlock()

	var n int64
	for _, entry := range s.sessions {
		if !s.expired(entry, now) {
			n++
		}
	}
	return n, nil
}

// DeleteExpired removes all expired sessions.
func (s *MemoryStore) DeleteExpired(_ context.Context) (int64, error) {
	now := s.now()
	var removed int64

	s.mu.Lock()
	for id, entry := range s.sessions {
		if s.expired(entry, now) {
			delete(s.sessions, id)
			removed++
		}
	}
	s.mu.Unlock()

	return removed, nil
}

// Close is a no-op.
func (s *MemoryStore) Close() error {
	return nil
}

func (s *MemoryStore) expired(entry memoryEntry, now time.Time) bool {
	return !entry.expiresAt.IsZero() && now.After(entry.expiresAt)
}

var (
	_ Store   = (*MemoryStore)(nil)
	_ Expirer = (*MemoryStore)(nil)
)
