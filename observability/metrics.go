package observability

import (
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

type moduleMetrics struct {
	requests  *prometheus.CounterVec
	errors    *prometheus.CounterVec
	latency   *prometheus.HistogramVec
	throttles *prometheus.CounterVec
}

var (
	moduleMetricsOnce sync.Once
	moduleRegistry    *moduleMetrics

	loanMetricsOnce sync.Once
	loanRegistry    *LoanMetrics
)

// ModuleMetrics returns the lazily-initialised registry used to record
// gateway and gRPC request activity.
func ModuleMetrics() *moduleMetrics {
	moduleMetricsOnce.Do(func() {
		moduleRegistry = &moduleMetrics{
			requests: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "notelend",
				Subsystem: "api",
				Name:      "requests_total",
				Help:      "Total API requests segmented by surface, method and outcome.",
			}, []string{"surface", "method", "outcome"}),
			errors: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "notelend",
				Subsystem: "api",
				Name:      "errors_total",
				Help:      "Total API errors segmented by surface, method and status.",
			}, []string{"surface", "method", "status"}),
			latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
				Namespace: "notelend",
				Subsystem: "api",
				Name:      "request_duration_seconds",
				Help:      "Latency distribution for API handlers.",
				Buckets:   prometheus.DefBuckets,
			}, []string{"surface", "method"}),
			throttles: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "notelend",
				Subsystem: "api",
				Name:      "throttles_total",
				Help:      "Count of requests rejected due to throttling policies.",
			}, []string{"surface", "reason"}),
		}
		prometheus.MustRegister(
			moduleRegistry.requests,
			moduleRegistry.errors,
			moduleRegistry.latency,
			moduleRegistry.throttles,
		)
	})
	return moduleRegistry
}

// Observe records the outcome of a request. The status should be the HTTP
// status ultimately written to the client.
func (m *moduleMetrics) Observe(surface, method string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	if surface == "" {
		surface = "unknown"
	}
	if method == "" {
		method = "unknown"
	}
	outcome := "success"
	if status >= 400 {
		outcome = "error"
		m.errors.WithLabelValues(surface, method, strconv.Itoa(status)).Inc()
	}
	m.requests.WithLabelValues(surface, method, outcome).Inc()
	m.latency.WithLabelValues(surface, method).Observe(duration.Seconds())
}

// RecordThrottle increments the throttle counter. Reasons should be stable
// strings such as "rate_limit" so dashboards and alerts remain consistent.
func (m *moduleMetrics) RecordThrottle(surface, reason string) {
	if m == nil {
		return
	}
	if surface == "" {
		surface = "unknown"
	}
	if reason == "" {
		reason = "unspecified"
	}
	m.throttles.WithLabelValues(surface, reason).Inc()
}

// LoanMetrics captures loan engine activity.
type LoanMetrics struct {
	operations *prometheus.CounterVec
	latency    *prometheus.HistogramVec
	active     prometheus.Gauge
	commits    prometheus.Counter
	rollbacks  *prometheus.CounterVec
}

// Loans returns the lazily-initialised loan engine metrics registry.
func Loans() *LoanMetrics {
	loanMetricsOnce.Do(func() {
		loanRegistry = &LoanMetrics{
			operations: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "notelend",
				Subsystem: "loans",
				Name:      "operations_total",
				Help:      "Loan engine operations segmented by operation and error kind.",
			}, []string{"operation", "kind"}),
			latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
				Namespace: "notelend",
				Subsystem: "loans",
				Name:      "operation_duration_seconds",
				Help:      "Time spent executing and committing loan operations.",
				Buckets:   []float64{0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1},
			}, []string{"operation"}),
			active: prometheus.NewGauge(prometheus.GaugeOpts{
				Namespace: "notelend",
				Subsystem: "loans",
				Name:      "active",
				Help:      "Number of loans currently in the active state.",
			}),
			commits: prometheus.NewCounter(prometheus.CounterOpts{
				Namespace: "notelend",
				Subsystem: "loans",
				Name:      "commits_total",
				Help:      "State transactions committed by the loan executor.",
			}),
			rollbacks: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "notelend",
				Subsystem: "loans",
				Name:      "rollbacks_total",
				Help:      "State transactions discarded after a failed operation.",
			}, []string{"operation"}),
		}
		prometheus.MustRegister(
			loanRegistry.operations,
			loanRegistry.latency,
			loanRegistry.active,
			loanRegistry.commits,
			loanRegistry.rollbacks,
		)
	})
	return loanRegistry
}

// ObserveOperation records one executed operation. kind is the stable error
// code, or empty on success.
func (m *LoanMetrics) ObserveOperation(operation, kind string, duration time.Duration) {
	if m == nil {
		return
	}
	if kind == "" {
		kind = "ok"
	}
	m.operations.WithLabelValues(operation, kind).Inc()
	m.latency.WithLabelValues(operation).Observe(duration.Seconds())
}

// RecordCommit counts a committed transaction.
func (m *LoanMetrics) RecordCommit() {
	if m == nil {
		return
	}
	m.commits.Inc()
}

// RecordRollback counts a discarded transaction.
func (m *LoanMetrics) RecordRollback(operation string) {
	if m == nil {
		return
	}
	m.rollbacks.WithLabelValues(operation).Inc()
}

// AdjustActive moves the active-loan gauge by delta.
func (m *LoanMetrics) AdjustActive(delta int) {
	if m == nil || delta == 0 {
		return
	}
	m.active.Add(float64(delta))
}

// SetActive sets the active-loan gauge, typically after startup replay.
func (m *LoanMetrics) SetActive(n int) {
	if m == nil {
		return
	}
	m.active.Set(float64(n))
}
