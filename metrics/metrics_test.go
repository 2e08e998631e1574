package metrics

import (
	"testing"
)

// Global metrics instance (reused across enabled tests to avoid Prometheus registry conflicts)
var globalMetrics *Metrics

func init() {
	globalMetrics = New(true)
}

func TestMetricsEnabled(t *testing.T) {
	if globalMetrics == nil {
		t.Fatal("metrics should not be nil")
	}
}

func TestMetricsDisabled(t *testing.T) {
	metrics := New(false)

	if metrics == nil {
		t.Fatal("metrics should not be nil (noop)")
	}

	// These should not panic even though they're noop
	metrics.RecordAuthSuccess("basic")
	metrics.RecordAuthFailure("remote", "rejected")
	metrics.RecordSessionLookup("hit")
	metrics.RecordSweep(3)
	metrics.RecordDecision("allow")
	metrics.RecordCacheHit("realm")
	metrics.RecordCacheMiss("realm")
}

func TestRecordAuthOutcomes(t *testing.T) {
	// Should not panic
	globalMetrics.RecordAuthSuccess("basic")
	globalMetrics.RecordAuthSuccess("bearer")
	globalMetrics.RecordAuthFailure("remote", "unavailable")
	globalMetrics.RecordAuthFailure("basic", "rejected")
}

func TestRecordSessionMetrics(t *testing.T) {
	// Should not panic
	globalMetrics.RecordSessionLookup("hit")
	globalMetrics.RecordSessionLookup("miss")
	globalMetrics.RecordSessionLookup("error")
	globalMetrics.RecordSweep(0)
	globalMetrics.RecordSweep(12)
}

func TestRecordDecisions(t *testing.T) {
	// Should not panic
	globalMetrics.RecordDecision("allow")
	globalMetrics.RecordDecision("deny_unauthenticated")
	globalMetrics.RecordDecision("deny_forbidden")
	globalMetrics.RecordDecision("deny_unavailable")
}

func TestRecordCacheMetrics(t *testing.T) {
	// Should not panic
	globalMetrics.RecordCacheHit("realm")
	globalMetrics.RecordCacheMiss("realm")
}
