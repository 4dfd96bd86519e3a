// Package metrics exposes prometheus collectors for progression activity.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "quest_engine"

// Metrics holds the collectors. Each instance owns its registry so tests and
// multiple workers in one process do not collide on the default registry.
type Metrics struct {
	registry *prometheus.Registry

	transitions      *prometheus.CounterVec
	transitionErrors *prometheus.CounterVec
	combats          *prometheus.CounterVec
	combatTurns      prometheus.Histogram
	levelUps         prometheus.Counter
	xpCredited       *prometheus.CounterVec
	requests         *prometheus.CounterVec
	requestDuration  *prometheus.HistogramVec
	lockContention   prometheus.Counter
}

// New registers every collector on a fresh registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	f := promauto.With(reg)

	return &Metrics{
		registry: reg,
		transitions: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "transitions_total",
			Help:      "Committed progression transitions, by operation.",
		}, []string{"operation"}),
		transitionErrors: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "transition_errors_total",
			Help:      "Rejected progression operations, by operation and error code.",
		}, []string{"operation", "code"}),
		combats: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "combats_total",
			Help:      "Resolved combats, by winner.",
		}, []string{"winner"}),
		combatTurns: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "combat_turns",
			Help:      "Rounds fought per resolved combat.",
			Buckets:   []float64{1, 2, 3, 5, 8, 13, 21, 34},
		}),
		levelUps: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "level_ups_total",
			Help:      "Levels gained by characters.",
		}),
		xpCredited: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "xp_credited_total",
			Help:      "Experience credited to characters, by source.",
		}, []string{"source"}),
		requests: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "worker_requests_total",
			Help:      "Queued requests handled by the worker, by type and status.",
		}, []string{"type", "status"}),
		requestDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "worker_request_duration_seconds",
			Help:      "Time spent processing a queued request.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"type"}),
		lockContention: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "worker_lock_contention_total",
			Help:      "Requests re-queued because their lock was held.",
		}),
	}
}

// Registry returns the registry backing m.
func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

// Handler serves m in the prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// The recording methods are no-ops on a nil receiver.

func (m *Metrics) Transition(operation string) {
	if m == nil {
		return
	}
	m.transitions.WithLabelValues(operation).Inc()
}

func (m *Metrics) TransitionError(operation, code string) {
	if m == nil {
		return
	}
	m.transitionErrors.WithLabelValues(operation, code).Inc()
}

func (m *Metrics) Combat(winner string, turns int) {
	if m == nil {
		return
	}
	m.combats.WithLabelValues(winner).Inc()
	m.combatTurns.Observe(float64(turns))
}

func (m *Metrics) LevelUps(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.levelUps.Add(float64(n))
}

func (m *Metrics) XP(source string, amount int) {
	if m == nil || amount <= 0 {
		return
	}
	m.xpCredited.WithLabelValues(source).Add(float64(amount))
}

func (m *Metrics) Request(requestType, status string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.requests.WithLabelValues(requestType, status).Inc()
	m.requestDuration.WithLabelValues(requestType).Observe(elapsed.Seconds())
}

func (m *Metrics) LockContended() {
	if m == nil {
		return
	}
	m.lockContention.Inc()
}
