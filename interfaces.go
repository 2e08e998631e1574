package websec

import (
	"context"
	"time"
)

// Realm is a pluggable identity backend. Each realm validates the credential
// kinds it declares and returns a principal with its roles, or a definitive
// failure. Implementations: realm/local (directory-backed), realm/remote
// (third-party provider), realm/bearer (local JWT verification).
//
// Error contract: ErrAuthenticationFailed for a rejected credential,
// ErrRealmUnavailable for a backend that could not answer. Realms never
// retry on their own; the caller decides.
type Realm interface {
	// Kinds lists the credential kinds this realm handles.
	Kinds() []CredentialKind

	// Authenticate validates the credential and returns the principal and
	// role set it maps to.
	Authenticate(ctx context.Context, cred Credential) (*AuthInfo, error)
}

// SessionStore is the contract a session backend must satisfy.
// Implementations: store/memstore (in-process), store/redistore (Redis).
//
// Get must treat an expired record as not found regardless of whether a
// sweep has run; the expiry boundary is inclusive. Concurrent writers for
// the same session may overwrite each other (last write wins); callers must
// not assume compare-and-swap semantics.
type SessionStore interface {
	// Get returns the record for the given session id, or
	// ErrSessionNotFound if it is missing or expired.
	Get(ctx context.Context, sessionID string) (*SessionRecord, error)

	// Put stores the subject under the session id with an absolute expiry
	// of now + ttl, replacing any existing record.
	Put(ctx context.Context, sessionID string, subject *Subject, ttl time.Duration) error

	// Delete removes the record. Deleting an absent record is a no-op.
	Delete(ctx context.Context, sessionID string) error

	// Sweep removes records expired at the given instant and returns how
	// many were removed. Advisory cleanup only; correctness does not depend
	// on it.
	Sweep(ctx context.Context, now time.Time) (int, error)
}

// CacheInvalidator is the capability a cache exposes so the coordinator can
// evict a subject's derived authorization state on logout or privilege
// change. Invalidating an absent entry is a no-op, never an error.
type CacheInvalidator interface {
	Invalidate(ctx context.Context, subject *Subject) error
}
