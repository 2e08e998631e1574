// Package memstore provides an in-process websec.SessionStore.
//
// Suitable for single-process deployments where losing sessions on restart
// is acceptable. All reads honor expiry themselves; the Sweep pass only
// reclaims memory earlier.
package memstore

import (
	"context"
	"sync"
	"time"

	websec "github.com/halcyonsec/websec-go"
)

// Store holds session records in a mutex-guarded map.
type Store struct {
	mu      sync.Mutex
	records map[string]*websec.SessionRecord
	now     func() time.Time
}

var _ websec.SessionStore = (*Store)(nil)

// Option configures the Store.
type Option func(*Store)

// WithClock overrides the time source. Intended for tests.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// New creates an empty in-process session store.
func New(opts ...Option) *Store {
	s := &Store{
		records: make(map[string]*websec.SessionRecord),
		now:     time.Now,
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Get returns the record for the session id. Expired records are removed
// and reported as not found; the expiry boundary is inclusive.
func (s *Store) Get(_ context.Context, sessionID string) (*websec.SessionRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.records[sessionID]
	if !ok {
		return nil, websec.ErrSessionNotFound
	}
	if rec.Expired(s.now()) {
		delete(s.records, sessionID)
		return nil, websec.ErrSessionNotFound
	}
	return rec, nil
}

// Put stores the subject under the session id, replacing any existing record.
func (s *Store) Put(_ context.Context, sessionID string, subject *websec.Subject, ttl time.Duration) error {
	now := s.now()

	s.mu.Lock()
	defer s.mu.Unlock()

	s.records[sessionID] = &websec.SessionRecord{
		ID:        sessionID,
		Subject:   subject,
		CreatedAt: now,
		ExpiresAt: now.Add(ttl),
	}
	return nil
}

// Delete removes the record. Absent records are a no-op.
func (s *Store) Delete(_ context.Context, sessionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.records, sessionID)
	return nil
}

// Sweep removes records expired at the given instant.
func (s *Store) Sweep(_ context.Context, now time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for id, rec := range s.records {
		if rec.Expired(now) {
			delete(s.records, id)
			removed++
		}
	}
	return removed, nil
}

// Len returns the number of records currently held, including ones that are
// expired but not yet swept.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.records)
}
