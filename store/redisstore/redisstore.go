// Package redisstore persists session records in Redis, keyed by a
// caller-supplied session key (typically the browser session cookie).
// Suited to BFF deployments where several instances share one logical
// session.
package redisstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/darasa/authkit-go/store"
)

// DefaultTTL bounds how long an untouched record survives. Refreshes
// rewrite the record and reset the clock.
const DefaultTTL = 30 * 24 * time.Hour

// Store implements store.Store on a Redis client.
type Store struct {
	client *redis.Client
	key    string
	ttl    time.Duration
}

// Option configures the Store.
type Option func(*Store)

// WithTTL overrides the record TTL.
func WithTTL(d time.Duration) Option {
	return func(s *Store) { s.ttl = d }
}

// New creates a Redis-backed store for one logical session. sessionKey
// must be unique per browser session.
func New(client *redis.Client, sessionKey string, opts ...Option) *Store {
	s := &Store{
		client: client,
		key:    "authkit:session:" + sessionKey,
		ttl:    DefaultTTL,
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// compile-time check
var _ store.Store = (*Store)(nil)

// Load fetches and decodes the record.
func (s *Store) Load(ctx context.Context) (*store.Record, error) {
	data, err := s.client.Get(ctx, s.key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("redisstore: get %s: %w", s.key, err)
	}

	var rec store.Record
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, store.ErrNotFound
	}
	if rec.Version != store.SchemaVersion {
		return nil, store.ErrNotFound
	}
	return &rec, nil
}

// Save writes the record with the configured TTL.
func (s *Store) Save(ctx context.Context, rec *store.Record) error {
	cp := *rec
	cp.Version = store.SchemaVersion
	data, err := json.Marshal(&cp)
	if err != nil {
		return fmt.Errorf("redisstore: encode record: %w", err)
	}
	if err := s.client.Set(ctx, s.key, data, s.ttl).Err(); err != nil {
		return fmt.Errorf("redisstore: set %s: %w", s.key, err)
	}
	return nil
}

// Clear deletes the record.
func (s *Store) Clear(ctx context.Context) error {
	if err := s.client.Del(ctx, s.key).Err(); err != nil {
		return fmt.Errorf("redisstore: del %s: %w", s.key, err)
	}
	return nil
}
