package websec

import "time"

// CookieConfig describes the session cookie the HTTP adapter emits.
// The core never reads cookies itself; this is carried for the transport
// layer (middleware/ginmw).
type CookieConfig struct {
	Name     string
	Domain   string
	Path     string
	HTTPOnly bool
	MaxAge   int
	Secure   bool
}

// Config holds Manager behavior configuration.
type Config struct {
	// SessionTTL is the absolute lifetime of a stored session.
	// Default: 30 minutes.
	SessionTTL time.Duration

	// GCEnabled turns on the background sweep of expired sessions.
	// Disabling it only defers cleanup; Get treats expired records as
	// missing either way.
	GCEnabled bool

	// GCInterval is the delay between sweep passes. Default: 1 minute.
	GCInterval time.Duration

	// UseClientSubjectLogin trusts a client-presented subject hint without
	// a server-side session lookup. Expiry enforcement then falls entirely
	// to the transport that stamped the hint. Off by default.
	UseClientSubjectLogin bool

	// BasicAuthExpression is the rule-configuration expression naming the
	// users allowed to authenticate with HTTP Basic, e.g. "basic(alice,bob)".
	// Empty disables Basic authentication.
	BasicAuthExpression string

	// Cookie configures the session cookie for the HTTP adapter.
	Cookie CookieConfig
}

// DefaultSessionTTL is used when Config.SessionTTL is zero.
const DefaultSessionTTL = 30 * time.Minute

// DefaultGCInterval is used when Config.GCInterval is zero.
const DefaultGCInterval = time.Minute

// DefaultCookieName is used when Config.Cookie.Name is empty.
const DefaultCookieName = "websec_session"

func (c *Config) applyDefaults() {
	if c.SessionTTL == 0 {
		c.SessionTTL = DefaultSessionTTL
	}
	if c.GCInterval <= 0 {
		c.GCInterval = DefaultGCInterval
	}
	if c.Cookie.Name == "" {
		c.Cookie.Name = DefaultCookieName
	}
	if c.Cookie.Path == "" {
		c.Cookie.Path = "/"
	}
}
