package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

// TestObserveSave verifies save outcomes land in the phase counter and the
// duration histogram.
func TestObserveSave(t *testing.T) {
	m, reg := NewTestManagerAndRegistry()
	m.ObserveSave("idle", 0.02)
	m.ObserveSave("idle", 0.03)
	m.ObserveSave("error", 0.5)

	if got := testutil.ToFloat64(m.CounterSyncSaves.WithLabelValues("idle")); got != 2 {
		t.Errorf("idle saves = %v, want 2", got)
	}
	if got := testutil.ToFloat64(m.CounterSyncSaves.WithLabelValues("error")); got != 1 {
		t.Errorf("error saves = %v, want 1", got)
	}
	if n, err := testutil.GatherAndCount(reg, "nicofit_sync_duration_seconds"); err != nil || n != 1 {
		t.Errorf("duration histogram count = %d (err %v), want 1 series", n, err)
	}
}

// TestNilManager verifies a nil manager is a no-op.
func TestNilManager(t *testing.T) {
	var m *Manager
	m.ObserveSave("idle", 1)
	m.ObserveMerge("sessions", "local")
	m.ObserveSuggestion("hold")
	m.ObserveHistoryLookup(true)
	m.ObserveRequest("/", "GET", "200", 0.1)
}

// TestObserveRequest verifies request counters by method and status.
func TestObserveRequest(t *testing.T) {
	m := NewTestManager()
	m.ObserveRequest("/api/v1/mirror/{key}", "GET", "404", 0.001)
	if got := testutil.ToFloat64(m.CounterRequests.WithLabelValues("GET", "404")); got != 1 {
		t.Errorf("requests = %v, want 1", got)
	}
}
