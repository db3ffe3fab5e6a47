// Package redisstore keeps call sessions in Redis with native key expiry.
package redisstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/flowpbx/phonetree/internal/ivr"
	"github.com/flowpbx/phonetree/internal/session"
	backend "github.com/redis/go-redis/v9"
)

// DefaultPrefix namespaces every key the store writes.
const DefaultPrefix = "phonetree:session:"

// noExpiryScore is the index score of sessions stored without a ttl.
const noExpiryScore = 4102444800 // 2100-01-01

// Store implements session.Store using Redis. Each session is a JSON value
// under prefix+"call:"+callID; a sorted set under prefix+"index" scores call
// IDs by expiry time so Count does not have to scan the keyspace. No call ID
// can map onto the index key.
type Store struct {
	client *backend.Client
	prefix string
	ttl    time.Duration
	now    func() time.Time
}

// Option configures a Store.
type Option func(*Store)

// WithTTL sets the expiration for sessions.
func WithTTL(ttl time.Duration) Option {
	return func(s *Store) {
		s.ttl = ttl
	}
}

// WithPrefix sets the key prefix for sessions.
func WithPrefix(prefix string) Option {
	return func(s *Store) {
		s.prefix = prefix
	}
}

// New connects to the Redis server at address and verifies the connection.
func New(ctx context.Context, address, password string, db int, opts ...Option) (*Store, error) {
	client := backend.NewClient(&backend.Options{
		Addr:     address,
		Password: password,
		DB:       db,
	})

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("pinging redis: %w", err)
	}

	return NewFromClient(client, opts...), nil
}

// NewFromClient creates a store from an existing client.
func NewFromClient(client *backend.Client, opts ...Option) *Store {
	s := &Store{
		client: client,
		prefix: DefaultPrefix,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Store) key(callID string) string {
	return s.prefix + "call:" + callID
}

func (s *Store) indexKey() string {
	return s.prefix + "index"
}

// Get returns the session for callID.
func (s *Store) Get(ctx context.Context, callID string) (ivr.Session, error) {
	val, err := s.client.Get(ctx, s.key(callID)).Bytes()
	if errors.Is(err, backend.Nil) {
		return ivr.Session{}, session.ErrNotFound
	}
	if err != nil {
		return ivr.Session{}, fmt.Errorf("getting session %s from redis: %w", callID, err)
	}

	var sess ivr.Session
	if err := json.Unmarshal(val, &sess); err != nil {
		return ivr.Session{}, fmt.Errorf("decoding session %s: %w", callID, err)
	}
	return sess, nil
}

// Put writes the session and refreshes its index entry in one pipeline.
func (s *Store) Put(ctx context.Context, sess ivr.Session) error {
	data, err := json.Marshal(sess)
	if err != nil {
		return fmt.Errorf("encoding session %s: %w", sess.CallID, err)
	}

	score := float64(noExpiryScore)
	if s.ttl > 0 {
		score = float64(s.now().Add(s.ttl).Unix())
	}

	pipe := s.client.TxPipeline()
	pipe.Set(ctx, s.key(sess.CallID), data, s.ttl)
	pipe.ZAdd(ctx, s.indexKey(), backend.Z{Score: score, Member: sess.CallID})
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("storing session %s in redis: %w", sess.CallID, err)
	}
	return nil
}

// Delete removes the session and its index entry.
func (s *Store) Delete(ctx context.Context, callID string) error {
	pipe := s.client.TxPipeline()
	pipe.Del(ctx, s.key(callID))
	pipe.ZRem(ctx, s.indexKey(), callID)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("deleting session %s from redis: %w", callID, err)
	}
	return nil
}

// Count prunes index entries whose keys have expired and returns the rest.
func (s *Store) Count(ctx context.Context) (int64, error) {
	now := strconv.FormatInt(s.now().Unix(), 10)
	if err := s.client.ZRemRangeByScore(ctx, s.indexKey(), "-inf", now).Err(); err != nil {
		return 0, fmt.Errorf("pruning expired sessions: %w", err)
	}

	n, err := s.client.ZCard(ctx, s.indexKey()).Result()
	if err != nil {
		return 0, fmt.Errorf("counting sessions: %w", err)
	}
	return n, nil
}

// Close closes the redis client.
func (s *Store) Close() error {
	return s.client.Close()
}

var _ session.Store = (*Store)(nil)
