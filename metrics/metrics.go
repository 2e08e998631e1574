// Package metrics provides Prometheus metrics for authentication and
// session operations.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for the security layer.
type Metrics struct {
	enabled bool

	// Authentication metrics
	authRequestsTotal prometheus.Counter
	authFailuresTotal *prometheus.CounterVec

	// Session metrics
	sessionLookupsTotal *prometheus.CounterVec
	sessionsSweptTotal  prometheus.Counter

	// Filter chain metrics
	chainDecisionsTotal *prometheus.CounterVec

	// Cache metrics
	cacheHitsTotal *prometheus.CounterVec
	cacheMissTotal *prometheus.CounterVec
}

// New creates and registers Prometheus metrics.
// If enabled is false, returns a no-op Metrics instance.
func New(enabled bool) *Metrics {
	m := &Metrics{enabled: enabled}

	if !enabled {
		return m
	}

	m.authRequestsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "websec_auth_requests_total",
		Help: "Total authentication attempts",
	})

	m.authFailuresTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "websec_auth_failures_total",
		Help: "Total authentication failures",
	}, []string{"kind", "reason"})

	m.sessionLookupsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "websec_session_lookups_total",
		Help: "Total session store lookups",
	}, []string{"result"})

	m.sessionsSweptTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "websec_sessions_swept_total",
		Help: "Total expired sessions removed by the GC sweep",
	})

	m.chainDecisionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "websec_chain_decisions_total",
		Help: "Total filter chain decisions",
	}, []string{"decision"})

	m.cacheHitsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "websec_cache_hits_total",
		Help: "Total cache hits",
	}, []string{"cache_type"})

	m.cacheMissTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "websec_cache_misses_total",
		Help: "Total cache misses",
	}, []string{"cache_type"})

	return m
}

// RecordAuthSuccess records a successful authentication.
func (m *Metrics) RecordAuthSuccess(kind string) {
	if !m.enabled {
		return
	}
	m.authRequestsTotal.Inc()
}

// RecordAuthFailure records a failed authentication.
func (m *Metrics) RecordAuthFailure(kind, reason string) {
	if !m.enabled {
		return
	}
	m.authRequestsTotal.Inc()
	m.authFailuresTotal.WithLabelValues(kind, reason).Inc()
}

// RecordSessionLookup records a session store lookup outcome
// ("hit", "miss" or "error").
func (m *Metrics) RecordSessionLookup(result string) {
	if !m.enabled {
		return
	}
	m.sessionLookupsTotal.WithLabelValues(result).Inc()
}

// RecordSweep records the number of sessions removed by one GC pass.
func (m *Metrics) RecordSweep(removed int) {
	if !m.enabled {
		return
	}
	m.sessionsSweptTotal.Add(float64(removed))
}

// RecordDecision records a terminal filter chain decision
// ("allow", "deny_unauthenticated", "deny_forbidden", "deny_unavailable").
func (m *Metrics) RecordDecision(decision string) {
	if !m.enabled {
		return
	}
	m.chainDecisionsTotal.WithLabelValues(decision).Inc()
}

// RecordCacheHit records a cache hit.
func (m *Metrics) RecordCacheHit(cacheType string) {
	if !m.enabled {
		return
	}
	m.cacheHitsTotal.WithLabelValues(cacheType).Inc()
}

// RecordCacheMiss records a cache miss.
func (m *Metrics) RecordCacheMiss(cacheType string) {
	if !m.enabled {
		return
	}
	m.cacheMissTotal.WithLabelValues(cacheType).Inc()
}
