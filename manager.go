// Package websec provides a pluggable web authentication and authorization
// layer: a security filter chain, a subject/session data model, and a
// realm-based authentication protocol.
//
// The Manager is the composition root. Concrete identity backends (realms),
// session stores and caches are injected via Option functions, keeping the
// core independent of any storage or transport:
//
//	mgr, err := websec.NewManager(
//	    websec.Config{BasicAuthExpression: "basic(alice,bob)"},
//	    websec.WithSessionStore(memstore.New()),
//	    websec.WithRealm(local.New(directory)),
//	)
package websec

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"

	"github.com/halcyonsec/websec-go/audit"
	"github.com/halcyonsec/websec-go/basicauth"
	"github.com/halcyonsec/websec-go/metrics"
)

// Hints carries the identity material an adapter extracted from one inbound
// request. All fields are optional; the Manager decides what to use.
type Hints struct {
	// SessionID is the opaque session identifier, if the request carried one.
	SessionID string

	// BasicAuthorization is the payload of an HTTP Basic Authorization
	// header, already base64-encoded as presented on the wire.
	BasicAuthorization string

	// RemoteToken is a third-party platform token, if presented.
	RemoteToken *RemoteToken

	// BearerToken is a raw bearer token, if presented.
	BearerToken string

	// Subject is a client-presented subject. Only honored when
	// Config.UseClientSubjectLogin is set.
	Subject *Subject
}

// Manager is the authentication coordinator. It orchestrates session lookup,
// credential extraction, realm delegation, session materialization and cache
// registration.
type Manager struct {
	cfg    Config
	logger *slog.Logger

	store        SessionStore
	realms       map[CredentialKind]Realm
	invalidators []CacheInvalidator
	basic        *basicauth.BasicAuth

	metrics *metrics.Metrics
	auditor *audit.Logger

	sf singleflight.Group

	gcCancel context.CancelFunc
	gcDone   chan struct{}
}

// Option configures the Manager.
type Option func(*managerOptions)

type managerOptions struct {
	logger       *slog.Logger
	store        SessionStore
	realms       []Realm
	invalidators []CacheInvalidator
	metrics      *metrics.Metrics
	auditor      *audit.Logger
}

// WithLogger sets a structured logger for the manager.
func WithLogger(l *slog.Logger) Option {
	return func(o *managerOptions) { o.logger = l }
}

// WithSessionStore sets the session store implementation. Required.
func WithSessionStore(s SessionStore) Option {
	return func(o *managerOptions) { o.store = s }
}

// WithRealm registers an identity backend. May be given multiple times; no
// two realms may claim the same credential kind.
func WithRealm(r Realm) Option {
	return func(o *managerOptions) { o.realms = append(o.realms, r) }
}

// WithCacheInvalidator registers a cache to be evicted on logout and
// invalidation. May be given multiple times.
func WithCacheInvalidator(c CacheInvalidator) Option {
	return func(o *managerOptions) { o.invalidators = append(o.invalidators, c) }
}

// WithMetrics sets the metrics recorder.
func WithMetrics(m *metrics.Metrics) Option {
	return func(o *managerOptions) { o.metrics = m }
}

// WithAuditLogger sets the audit event logger.
func WithAuditLogger(a *audit.Logger) Option {
	return func(o *managerOptions) { o.auditor = a }
}

// NewManager validates the configuration, wires the components and, if
// enabled, starts the background session sweep. Wiring failures are
// *ConfigError values and fatal.
func NewManager(cfg Config, opts ...Option) (*Manager, error) {
	cfg.applyDefaults()

	o := &managerOptions{}
	for _, opt := range opts {
		opt(o)
	}

	if o.store == nil {
		return nil, &ConfigError{Reason: "session store is required"}
	}

	realms := make(map[CredentialKind]Realm, len(o.realms))
	for _, r := range o.realms {
		for _, kind := range r.Kinds() {
			if _, taken := realms[kind]; taken {
				return nil, &ConfigError{Reason: fmt.Sprintf("credential kind %q claimed by more than one realm", kind)}
			}
			realms[kind] = r
		}
	}

	m := &Manager{
		cfg:          cfg,
		logger:       o.logger,
		store:        o.store,
		realms:       realms,
		invalidators: o.invalidators,
		metrics:      o.metrics,
		auditor:      o.auditor,
	}
	if m.logger == nil {
		m.logger = slog.Default()
	}
	if m.metrics == nil {
		m.metrics = metrics.New(false)
	}

	if cfg.BasicAuthExpression != "" {
		ba, err := basicauth.Parse(cfg.BasicAuthExpression)
		if err != nil {
			return nil, &ConfigError{Reason: err.Error()}
		}
		m.basic = ba
	}

	if cfg.GCEnabled {
		ctx, cancel := context.WithCancel(context.Background())
		m.gcCancel = cancel
		m.gcDone = make(chan struct{})
		go m.gcLoop(ctx)
	}

	return m, nil
}

// Config returns the manager configuration.
func (m *Manager) Config() Config { return m.cfg }

// BasicAuth returns the configured Basic permission set, or nil if Basic
// authentication is disabled.
func (m *Manager) BasicAuth() *basicauth.BasicAuth { return m.basic }

// Resolve turns request identity hints into a Subject, short-circuiting on
// the first success: client subject (policy-gated), session fast path,
// credential re-authentication via the registered realms.
//
// An absent or rejected credential resolves to the anonymous subject, not an
// error. ErrRealmUnavailable is surfaced distinctly so callers can reject
// with a retryable status instead of an auth failure.
func (m *Manager) Resolve(ctx context.Context, h Hints) (*Subject, error) {
	if m.cfg.UseClientSubjectLogin && h.Subject != nil && h.Subject.Authenticated && h.Subject.Principal != nil {
		return h.Subject, nil
	}

	if h.SessionID != "" {
		// Collapse concurrent resolves for the same session id; last write
		// wins on the store either way.
		v, err, _ := m.sf.Do("resolve:"+h.SessionID, func() (interface{}, error) {
			return m.resolveSession(ctx, h)
		})
		if err != nil {
			return nil, err
		}
		return v.(*Subject), nil
	}

	return m.resolveCredential(ctx, h)
}

func (m *Manager) resolveSession(ctx context.Context, h Hints) (*Subject, error) {
	rec, err := m.store.Get(ctx, h.SessionID)
	switch {
	case err == nil:
		m.metrics.RecordSessionLookup("hit")
		return rec.Subject, nil
	case errors.Is(err, ErrSessionNotFound):
		m.metrics.RecordSessionLookup("miss")
	default:
		// Store I/O failure degrades to "no session": fail safe to
		// re-authentication rather than failing the request.
		m.metrics.RecordSessionLookup("error")
		m.logger.Warn("session store read failed", "session_id", h.SessionID, "error", err)
	}
	return m.resolveCredential(ctx, h)
}

func (m *Manager) resolveCredential(ctx context.Context, h Hints) (*Subject, error) {
	cred, ok := m.extractCredential(h)
	if !ok {
		return AnonymousSubject(), nil
	}

	subject, err := m.Login(ctx, cred)
	if err != nil {
		if errors.Is(err, ErrAuthenticationFailed) {
			return AnonymousSubject(), nil
		}
		return nil, err
	}
	return subject, nil
}

// extractCredential picks the first usable credential from the hints. A
// Basic payload outside the configured permission set is not usable.
func (m *Manager) extractCredential(h Hints) (Credential, bool) {
	if h.BasicAuthorization != "" && m.basic != nil && m.basic.Contains(h.BasicAuthorization) {
		return NewBasicCredential(h.BasicAuthorization), true
	}
	if h.RemoteToken != nil {
		return *h.RemoteToken, true
	}
	if h.BearerToken != "" {
		return NewBearerCredential(h.BearerToken), true
	}
	return nil, false
}

// Login authenticates an explicit credential against the realm registered
// for its kind and, on success, materializes a fresh session (write-through).
// Failures are reported as errors; Resolve converts the recoverable ones to
// the anonymous subject.
func (m *Manager) Login(ctx context.Context, cred Credential) (*Subject, error) {
	kind := cred.Kind()
	r, ok := m.realms[kind]
	if !ok {
		m.logger.Warn("no realm registered for credential kind", "kind", kind)
		m.metrics.RecordAuthFailure(string(kind), "unregistered")
		return nil, fmt.Errorf("websec: no realm for kind %q: %w", kind, ErrAuthenticationFailed)
	}

	info, err := r.Authenticate(ctx, cred)
	if err != nil {
		if errors.Is(err, ErrAuthenticationFailed) {
			m.metrics.RecordAuthFailure(string(kind), "rejected")
			m.auditEvent(ctx, audit.Event{Action: "login", Kind: string(kind), Result: "failure", Error: err.Error()})
			return nil, err
		}
		m.metrics.RecordAuthFailure(string(kind), "unavailable")
		m.auditEvent(ctx, audit.Event{Action: "login", Kind: string(kind), Result: "failure", Error: err.Error()})
		return nil, fmt.Errorf("websec: realm for kind %q: %w", kind, err)
	}

	sessionID := uuid.NewString()
	subject, err := NewSubject(info.Principal, info.Roles, sessionID)
	if err != nil {
		return nil, fmt.Errorf("websec: realm for kind %q returned no principal: %w", kind, err)
	}

	if err := m.store.Put(ctx, sessionID, subject, m.cfg.SessionTTL); err != nil {
		// The credential did authenticate; losing the session only costs a
		// re-authentication on the next request.
		m.logger.Warn("session write-through failed", "session_id", sessionID, "error", err)
	}

	m.metrics.RecordAuthSuccess(string(kind))
	m.auditEvent(ctx, audit.Event{
		Action:      "login",
		Kind:        string(kind),
		Result:      "success",
		PrincipalID: subject.Principal.ID,
		SessionID:   sessionID,
	})
	return subject, nil
}

// Invalidate deletes the session record and evicts any cached authorization
// state tied to its subject. The two deletions are not transactional: the
// session is removed first, and its absence is the authority. Idempotent.
func (m *Manager) Invalidate(ctx context.Context, sessionID string) error {
	if sessionID == "" {
		return nil
	}

	subject := &Subject{SessionID: sessionID}
	if rec, err := m.store.Get(ctx, sessionID); err == nil && rec.Subject != nil {
		subject = rec.Subject
	}

	if err := m.store.Delete(ctx, sessionID); err != nil {
		return fmt.Errorf("websec: delete session: %w", err)
	}

	m.invalidateCaches(ctx, subject)
	m.auditEvent(ctx, audit.Event{Action: "invalidate", SessionID: sessionID, Result: "success"})
	return nil
}

// Logout terminates the subject's session and evicts its cached state.
func (m *Manager) Logout(ctx context.Context, subject *Subject) error {
	if subject == nil {
		return nil
	}
	if subject.SessionID != "" {
		if err := m.Invalidate(ctx, subject.SessionID); err != nil {
			return err
		}
	} else {
		m.invalidateCaches(ctx, subject)
	}
	ev := audit.Event{Action: "logout", SessionID: subject.SessionID, Result: "success"}
	if subject.Principal != nil {
		ev.PrincipalID = subject.Principal.ID
	}
	m.auditEvent(ctx, ev)
	return nil
}

func (m *Manager) invalidateCaches(ctx context.Context, subject *Subject) {
	for _, inv := range m.invalidators {
		if err := inv.Invalidate(ctx, subject); err != nil {
			m.logger.Warn("cache invalidation failed", "session_id", subject.SessionID, "error", err)
		}
	}
}

func (m *Manager) auditEvent(ctx context.Context, ev audit.Event) {
	if m.auditor == nil {
		return
	}
	ev.RequestID = audit.RequestID(ctx)
	m.auditor.Log(ev)
}

func (m *Manager) gcLoop(ctx context.Context) {
	defer close(m.gcDone)

	ticker := time.NewTicker(m.cfg.GCInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			removed, err := m.store.Sweep(ctx, time.Now())
			if err != nil {
				m.logger.Warn("session sweep failed", "error", err)
				continue
			}
			m.metrics.RecordSweep(removed)
			if removed > 0 {
				m.logger.Debug("session sweep", "removed", removed)
			}
		}
	}
}

// Close stops the background session sweep, if one is running.
func (m *Manager) Close() error {
	if m.gcCancel != nil {
		m.gcCancel()
		<-m.gcDone
		m.gcCancel = nil
	}
	return nil
}
