// Package redistore provides a Redis-backed websec.SessionStore for
// deployments that share sessions across processes.
//
// Records are stored as JSON under a configurable key prefix with a Redis
// TTL matching the session expiry, so Redis evicts on its own; Get still
// checks the embedded expiry so the inclusive boundary holds even when
// Redis has not expired the key yet.
package redistore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	websec "github.com/halcyonsec/websec-go"
)

const defaultKeyPrefix = "websec:session:"

// Store is a Redis-backed session store.
type Store struct {
	client    redis.UniversalClient
	keyPrefix string
	now       func() time.Time
}

var _ websec.SessionStore = (*Store)(nil)

// Option configures the Store.
type Option func(*Store)

// WithKeyPrefix overrides the key prefix. Default: "websec:session:".
func WithKeyPrefix(prefix string) Option {
	return func(s *Store) { s.keyPrefix = prefix }
}

// WithClock overrides the time source. Intended for tests.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// New creates a session store on top of an existing Redis client.
func New(client redis.UniversalClient, opts ...Option) *Store {
	s := &Store{
		client:    client,
		keyPrefix: defaultKeyPrefix,
		now:       time.Now,
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

func (s *Store) key(sessionID string) string {
	return s.keyPrefix + sessionID
}

// Get returns the record for the session id, or websec.ErrSessionNotFound
// for missing, expired or undecodable records.
func (s *Store) Get(ctx context.Context, sessionID string) (*websec.SessionRecord, error) {
	data, err := s.client.Get(ctx, s.key(sessionID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, websec.ErrSessionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("redistore: get: %w", err)
	}

	var rec websec.SessionRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		// An unreadable record is as good as absent; drop it.
		_ = s.client.Del(ctx, s.key(sessionID)).Err()
		return nil, websec.ErrSessionNotFound
	}
	if rec.Expired(s.now()) {
		_ = s.client.Del(ctx, s.key(sessionID)).Err()
		return nil, websec.ErrSessionNotFound
	}
	return &rec, nil
}

// Put stores the subject under the session id with a matching Redis TTL.
func (s *Store) Put(ctx context.Context, sessionID string, subject *websec.Subject, ttl time.Duration) error {
	now := s.now()
	rec := websec.SessionRecord{
		ID:        sessionID,
		Subject:   subject,
		CreatedAt: now,
		ExpiresAt: now.Add(ttl),
	}
	data, err := json.Marshal(&rec)
	if err != nil {
		return fmt.Errorf("redistore: marshal: %w", err)
	}
	if err := s.client.Set(ctx, s.key(sessionID), data, ttl).Err(); err != nil {
		return fmt.Errorf("redistore: set: %w", err)
	}
	return nil
}

// Delete removes the record. Absent records are a no-op.
func (s *Store) Delete(ctx context.Context, sessionID string) error {
	if err := s.client.Del(ctx, s.key(sessionID)).Err(); err != nil {
		return fmt.Errorf("redistore: del: %w", err)
	}
	return nil
}

// Sweep scans for records whose embedded expiry has passed and removes
// them. Redis TTLs already evict on their own, so this mostly catches
// records written with a TTL longer than their embedded expiry.
func (s *Store) Sweep(ctx context.Context, now time.Time) (int, error) {
	removed := 0
	iter := s.client.Scan(ctx, 0, s.keyPrefix+"*", 0).Iterator()
	for iter.Next(ctx) {
		key := iter.Val()
		data, err := s.client.Get(ctx, key).Bytes()
		if err != nil {
			continue
		}
		var rec websec.SessionRecord
		if err := json.Unmarshal(data, &rec); err != nil || rec.Expired(now) {
			if s.client.Del(ctx, key).Err() == nil {
				removed++
			}
		}
	}
	if err := iter.Err(); err != nil {
		return removed, fmt.Errorf("redistore: scan: %w", err)
	}
	return removed, nil
}
