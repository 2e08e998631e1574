// Package filter implements the security filter chain: an ordered, immutable
// sequence of access-control rule handlers built once at startup.
//
// The chain driver owns sequencing; handlers never hold a pointer to the
// next handler. The standard chain is Anonymous → Authenticated → Role, and
// the default is fail-closed: a request that reaches the end of the chain
// without an explicit Allow is denied.
package filter

import (
	"context"
	"errors"
	"log/slog"

	websec "github.com/halcyonsec/websec-go"
	"github.com/halcyonsec/websec-go/metrics"
)

// DenyReason classifies a Deny decision for status mapping at the transport.
type DenyReason int

const (
	// ReasonUnauthenticated maps to a 401-equivalent response.
	ReasonUnauthenticated DenyReason = iota
	// ReasonForbidden maps to a 403-equivalent response.
	ReasonForbidden
	// ReasonUnavailable maps to a 503-equivalent, retryable response.
	ReasonUnavailable
)

func (r DenyReason) String() string {
	switch r {
	case ReasonUnauthenticated:
		return "unauthenticated"
	case ReasonForbidden:
		return "forbidden"
	case ReasonUnavailable:
		return "unavailable"
	}
	return "unknown"
}

type verdict int

const (
	verdictDelegate verdict = iota
	verdictAllow
	verdictDeny
)

// Decision is the outcome of one handler: pass the request through, reject
// it, or delegate to the next handler in the chain.
type Decision struct {
	verdict verdict
	reason  DenyReason
}

// Allow terminates the chain and admits the request.
func Allow() Decision { return Decision{verdict: verdictAllow} }

// Deny terminates the chain and rejects the request.
func Deny(reason DenyReason) Decision {
	return Decision{verdict: verdictDeny, reason: reason}
}

// Delegate passes control to the next handler.
func Delegate() Decision { return Decision{} }

// Allowed reports whether the request was admitted.
func (d Decision) Allowed() bool { return d.verdict == verdictAllow }

// Denied reports whether the request was rejected.
func (d Decision) Denied() bool { return d.verdict == verdictDeny }

// Reason returns the deny reason. Meaningful only when Denied.
func (d Decision) Reason() DenyReason { return d.reason }

// Request is the chain's view of one inbound request. Handlers may attach
// the resolved subject; nothing else is mutated.
type Request struct {
	// Path is the request path (HTTP) or full method name (RPC).
	Path string

	// Hints is the identity material the adapter extracted.
	Hints websec.Hints

	// Subject is the resolved subject, set by the authenticated handler so
	// later handlers and the downstream application can use it.
	Subject *websec.Subject
}

// Handler is one access-control rule in the chain.
type Handler interface {
	Handle(ctx context.Context, req *Request) (Decision, error)
}

// SubjectResolver resolves identity hints to a subject. *websec.Manager
// satisfies it.
type SubjectResolver interface {
	Resolve(ctx context.Context, h websec.Hints) (*websec.Subject, error)
}

// Chain is an immutable, ordered handler sequence. Build it once at startup;
// only the pattern and role tables inside the handlers are data-driven.
type Chain struct {
	handlers []Handler
	logger   *slog.Logger
	metrics  *metrics.Metrics
}

// ChainOption configures a Chain.
type ChainOption func(*Chain)

// WithLogger sets a structured logger for the chain.
func WithLogger(l *slog.Logger) ChainOption {
	return func(c *Chain) { c.logger = l }
}

// WithMetrics sets the metrics recorder for chain decisions.
func WithMetrics(m *metrics.Metrics) ChainOption {
	return func(c *Chain) { c.metrics = m }
}

// NewChain builds a chain over the given handlers, in order.
func NewChain(handlers []Handler, opts ...ChainOption) *Chain {
	c := &Chain{handlers: append([]Handler(nil), handlers...)}
	for _, o := range opts {
		o(c)
	}
	if c.logger == nil {
		c.logger = slog.Default()
	}
	if c.metrics == nil {
		c.metrics = metrics.New(false)
	}
	return c
}

// NewStandardChain builds the fixed Anonymous → Authenticated → Role chain.
func NewStandardChain(anonPatterns []string, resolver SubjectResolver, routes []RouteRoles, opts ...ChainOption) *Chain {
	return NewChain([]Handler{
		NewAnonymousHandler(anonPatterns),
		NewAuthenticatedHandler(resolver),
		NewRoleHandler(routes),
	}, opts...)
}

// Apply drives the request through the chain and returns the terminal
// decision. Per-request errors never escape: a realm outage becomes
// Deny(ReasonUnavailable), anything else denies fail-closed.
func (c *Chain) Apply(ctx context.Context, req *Request) Decision {
	for _, h := range c.handlers {
		d, err := h.Handle(ctx, req)
		if err != nil {
			if errors.Is(err, websec.ErrRealmUnavailable) {
				c.metrics.RecordDecision("deny_unavailable")
				return Deny(ReasonUnavailable)
			}
			c.logger.Error("filter handler failed", "path", req.Path, "error", err)
			c.metrics.RecordDecision("deny_unavailable")
			return Deny(ReasonUnavailable)
		}
		if d.Allowed() {
			c.metrics.RecordDecision("allow")
			return d
		}
		if d.Denied() {
			c.metrics.RecordDecision("deny_" + d.Reason().String())
			return d
		}
	}
	// Chain exhausted without a terminal decision: fail closed.
	c.metrics.RecordDecision("deny_forbidden")
	return Deny(ReasonForbidden)
}

// matchPath matches a path against a pattern: exact match, or prefix match
// when the pattern ends in "*" (e.g. "/public/*"). "*" matches everything.
func matchPath(pattern, path string) bool {
	if pattern == "*" {
		return true
	}
	if n := len(pattern); n > 0 && pattern[n-1] == '*' {
		prefix := pattern[:n-1]
		return len(path) >= len(prefix) && path[:len(prefix)] == prefix
	}
	return pattern == path
}
