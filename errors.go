package websec

import "errors"

// Sentinel errors for the per-request failure taxonomy. Realms and stores
// wrap these so callers can classify with errors.Is.
var (
	// ErrAuthenticationFailed means the presented credential was rejected.
	// Recoverable; surfaces as access denied (401-equivalent).
	ErrAuthenticationFailed = errors.New("websec: authentication failed")

	// ErrRealmUnavailable means a backend could not answer (network error,
	// timeout, provider outage). Retryable at the caller's discretion;
	// never conflated with ErrAuthenticationFailed.
	ErrRealmUnavailable = errors.New("websec: realm unavailable")

	// ErrSessionNotFound is returned by session stores for missing or
	// expired records.
	ErrSessionNotFound = errors.New("websec: session not found")
)

// ConfigError is a fatal startup failure: malformed rule expressions or
// invalid realm wiring. The process cannot start with one of these.
type ConfigError struct {
	Reason string
}

func (e *ConfigError) Error() string {
	return "websec: config: " + e.Reason
}
