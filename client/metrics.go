package client

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics defines observability hooks for lock handles.
// All methods must be safe for concurrent use.
type Metrics interface {
	// IncrAttempt counts one remote create request.
	IncrAttempt()

	// IncrConflict counts a create rejected because the resource was held.
	IncrConflict()

	// ObserveAcquired records a granted lock and the time Lock took to get it.
	ObserveAcquired(latency time.Duration)

	// IncrTimeout counts acquisitions that ran out of time.
	IncrTimeout()

	// IncrCanceled counts acquisitions stopped by Cancel or the caller's context.
	IncrCanceled()

	// IncrRenewal counts keep-alive renewals by outcome.
	IncrRenewal(success bool)

	// IncrFree counts delete requests by outcome.
	IncrFree(success bool)

	// IncrFailure counts remote failures that moved a handle to failed, by operation.
	IncrFailure(op string)
}

// NoOpMetrics provides a no-operation implementation of Metrics.
type NoOpMetrics struct{}

// NewNoOpMetrics creates a new no-operation metrics implementation.
func NewNoOpMetrics() Metrics {
	return &NoOpMetrics{}
}

func (n *NoOpMetrics) IncrAttempt()                          {}
func (n *NoOpMetrics) IncrConflict()                         {}
func (n *NoOpMetrics) ObserveAcquired(latency time.Duration) {}
func (n *NoOpMetrics) IncrTimeout()                          {}
func (n *NoOpMetrics) IncrCanceled()                         {}
func (n *NoOpMetrics) IncrRenewal(success bool)              {}
func (n *NoOpMetrics) IncrFree(success bool)                 {}
func (n *NoOpMetrics) IncrFailure(op string)                 {}

// PrometheusMetrics exports Metrics as Prometheus collectors.
type PrometheusMetrics struct {
	attempts  prometheus.Counter
	conflicts prometheus.Counter
	acquired  prometheus.Histogram
	timeouts  prometheus.Counter
	canceled  prometheus.Counter
	renewals  *prometheus.CounterVec
	frees     *prometheus.CounterVec
	failures  *prometheus.CounterVec
}

// NewPrometheusMetrics creates the collectors and registers them with reg.
// A nil reg uses prometheus.DefaultRegisterer.
func NewPrometheusMetrics(reg prometheus.Registerer) (*PrometheusMetrics, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	m := &PrometheusMetrics{
		attempts: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "locksmith",
			Subsystem: "client",
			Name:      "acquire_attempts_total",
			Help:      "Remote create requests issued by lock handles.",
		}),
		conflicts: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "locksmith",
			Subsystem: "client",
			Name:      "acquire_conflicts_total",
			Help:      "Create requests rejected because the resource was already locked.",
		}),
		acquired: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "locksmith",
			Subsystem: "client",
			Name:      "acquire_duration_seconds",
			Help:      "Time from Lock to a granted lock.",
			Buckets:   prometheus.ExponentialBuckets(0.001, 4, 10),
		}),
		timeouts: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "locksmith",
			Subsystem: "client",
			Name:      "acquire_timeouts_total",
			Help:      "Acquisitions that exhausted their timeout.",
		}),
		canceled: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "locksmith",
			Subsystem: "client",
			Name:      "acquire_canceled_total",
			Help:      "Acquisitions stopped before a lock was granted.",
		}),
		renewals: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "locksmith",
			Subsystem: "client",
			Name:      "renewals_total",
			Help:      "Keep-alive renewals by result.",
		}, []string{"result"}),
		frees: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "locksmith",
			Subsystem: "client",
			Name:      "frees_total",
			Help:      "Delete requests by result.",
		}, []string{"result"}),
		failures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "locksmith",
			Subsystem: "client",
			Name:      "failures_total",
			Help:      "Remote failures that moved a handle to failed, by operation.",
		}, []string{"op"}),
	}

	for _, c := range []prometheus.Collector{
		m.attempts, m.conflicts, m.acquired, m.timeouts, m.canceled, m.renewals, m.frees, m.failures,
	} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

func (m *PrometheusMetrics) IncrAttempt()  { m.attempts.Inc() }
func (m *PrometheusMetrics) IncrConflict() { m.conflicts.Inc() }
func (m *PrometheusMetrics) IncrTimeout()  { m.timeouts.Inc() }
func (m *PrometheusMetrics) IncrCanceled() { m.canceled.Inc() }

func (m *PrometheusMetrics) ObserveAcquired(latency time.Duration) {
	m.acquired.Observe(latency.Seconds())
}

func (m *PrometheusMetrics) IncrRenewal(success bool) {
	m.renewals.WithLabelValues(resultLabel(success)).Inc()
}

func (m *PrometheusMetrics) IncrFree(success bool) {
	m.frees.WithLabelValues(resultLabel(success)).Inc()
}

func (m *PrometheusMetrics) IncrFailure(op string) {
	m.failures.WithLabelValues(op).Inc()
}

func resultLabel(success bool) string {
	if success {
		return "ok"
	}
	return "error"
}
