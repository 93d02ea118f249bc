// Package metrics provides Prometheus metrics for session operations.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for session operations.
// If enabled is false every Record method is a no-op.
type Metrics struct {
	enabled bool

	// Login/restore metrics
	loginTotal    prometheus.Counter
	loginFailures *prometheus.CounterVec
	restoreTotal  *prometheus.CounterVec

	// Refresh protocol metrics
	refreshTotal    prometheus.Counter
	refreshFailures prometheus.Counter
	forcedLogouts   prometheus.Counter

	// Guard metrics
	guardDenials *prometheus.CounterVec

	// Transport metrics
	requestDuration *prometheus.HistogramVec
}

// New creates and registers Prometheus metrics.
// If enabled is false, returns a no-op Metrics instance.
func New(enabled bool) *Metrics {
	m := &Metrics{enabled: enabled}

	if !enabled {
		return m
	}

	m.loginTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "authkit_login_attempts_total",
		Help: "Total login attempts",
	})

	m.loginFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "authkit_login_failures_total",
		Help: "Total login failures",
	}, []string{"reason"})

	m.restoreTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "authkit_session_restores_total",
		Help: "Total silent session restore attempts",
	}, []string{"outcome"})

	m.refreshTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "authkit_token_refreshes_total",
		Help: "Total credential refresh attempts",
	})

	m.refreshFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "authkit_token_refresh_failures_total",
		Help: "Total failed credential refreshes",
	})

	m.forcedLogouts = promauto.NewCounter(prometheus.CounterOpts{
		Name: "authkit_forced_logouts_total",
		Help: "Sessions destroyed because refresh or verification failed",
	})

	m.guardDenials = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "authkit_guard_denials_total",
		Help: "Route guard denials",
	}, []string{"role"})

	m.requestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "authkit_request_duration_seconds",
		Help:    "Backend request duration in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"path"})

	return m
}

// RecordLogin records a login attempt.
func (m *Metrics) RecordLogin() {
	if !m.enabled {
		return
	}
	m.loginTotal.Inc()
}

// RecordLoginFailure records a failed login with its error kind.
func (m *Metrics) RecordLoginFailure(reason string) {
	if !m.enabled {
		return
	}
	m.loginFailures.WithLabelValues(reason).Inc()
}

// RecordRestore records a silent restore outcome ("ok" or "failed").
func (m *Metrics) RecordRestore(outcome string) {
	if !m.enabled {
		return
	}
	m.restoreTotal.WithLabelValues(outcome).Inc()
}

// RecordRefresh records a refresh attempt.
func (m *Metrics) RecordRefresh() {
	if !m.enabled {
		return
	}
	m.refreshTotal.Inc()
}

// RecordRefreshFailure records a failed refresh.
func (m *Metrics) RecordRefreshFailure() {
	if !m.enabled {
		return
	}
	m.refreshFailures.Inc()
}

// RecordForcedLogout records a session destroyed by the SDK itself.
func (m *Metrics) RecordForcedLogout() {
	if !m.enabled {
		return
	}
	m.forcedLogouts.Inc()
}

// RecordGuardDenial records a route guard denial for a role.
func (m *Metrics) RecordGuardDenial(role string) {
	if !m.enabled {
		return
	}
	m.guardDenials.WithLabelValues(role).Inc()
}

// RecordRequest records a backend request duration.
func (m *Metrics) RecordRequest(path string, seconds float64) {
	if !m.enabled {
		return
	}
	m.requestDuration.WithLabelValues(path).Observe(seconds)
}
