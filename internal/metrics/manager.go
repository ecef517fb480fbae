// Package metrics defines the prometheus instruments shared by the sync
// client and the mirror server.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Manager holds every instrument. A nil *Manager is valid and records nothing.
type Manager struct {
	// counters
	CounterSyncSaves     *prometheus.CounterVec
	CounterMergeSides    *prometheus.CounterVec
	CounterRequests      *prometheus.CounterVec
	CounterSuggestions   *prometheus.CounterVec
	CounterHistoryLookup *prometheus.CounterVec

	// histograms
	HistSyncDuration         prometheus.Histogram
	HistogramRequestDuration *prometheus.HistogramVec
}

// NewTestManager returns a manager on a throwaway registry.
func NewTestManager() *Manager {
	return NewManager("nicofit", prometheus.NewRegistry())
}

// NewTestManagerAndRegistry returns a manager and the registry it writes to.
func NewTestManagerAndRegistry() (*Manager, *prometheus.Registry) {
	reg := prometheus.NewRegistry()
	return NewManager("nicofit", reg), reg
}

// NewManager registers every instrument on reg under namespace.
func NewManager(namespace string, reg prometheus.Registerer) *Manager {
	factory := promauto.With(reg)

	return &Manager{
		CounterSyncSaves: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "sync",
			Name:      "saves_total",
			Help:      "Completed saveState calls by resulting phase",
		}, []string{"phase"}),
		CounterMergeSides: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "sync",
			Name:      "merge_decisions_total",
			Help:      "Per-entity merge resolutions by entity and winning side",
		}, []string{"entity", "side"}),
		CounterRequests: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "The total number of incoming requests",
		}, []string{"method", "status"}),
		CounterSuggestions: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "progression",
			Name:      "suggestions_total",
			Help:      "Progression suggestions by ladder rule",
		}, []string{"rule"}),
		CounterHistoryLookup: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "history",
			Name:      "cache_lookups_total",
			Help:      "History cache lookups by result",
		}, []string{"result"}),
		HistSyncDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "sync",
			Name:      "duration_seconds",
			Help:      "Duration of a saveState round trip in seconds",
			Buckets:   []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
		}),
		HistogramRequestDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "Histogram of response time for requests in seconds",
			Buckets:   []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
		}, []string{"route", "method", "status_code"}),
	}
}

// ObserveSave records one saveState outcome.
func (m *Manager) ObserveSave(phase string, seconds float64) {
	if m == nil {
		return
	}
	m.CounterSyncSaves.WithLabelValues(phase).Inc()
	m.HistSyncDuration.Observe(seconds)
}

// ObserveMerge records which side won one tracked entity.
func (m *Manager) ObserveMerge(entity, side string) {
	if m == nil {
		return
	}
	m.CounterMergeSides.WithLabelValues(entity, side).Inc()
}

// ObserveSuggestion records the ladder rule of a suggestion.
func (m *Manager) ObserveSuggestion(rule string) {
	if m == nil {
		return
	}
	m.CounterSuggestions.WithLabelValues(rule).Inc()
}

// ObserveHistoryLookup records a history cache hit or miss.
func (m *Manager) ObserveHistoryLookup(hit bool) {
	if m == nil {
		return
	}
	result := "miss"
	if hit {
		result = "hit"
	}
	m.CounterHistoryLookup.WithLabelValues(result).Inc()
}

// ObserveRequest records one HTTP request.
func (m *Manager) ObserveRequest(route, method, status string, seconds float64) {
	if m == nil {
		return
	}
	m.CounterRequests.WithLabelValues(method, status).Inc()
	m.HistogramRequestDuration.WithLabelValues(route, method, status).Observe(seconds)
}
