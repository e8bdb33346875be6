package server

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// ServerMetrics defines observability hooks for lock service operations.
// All methods must be safe for concurrent use.
type ServerMetrics interface {
	// IncrRequest counts one API call. 'protocol' is "http" or "grpc",
	// 'op' one of create/renew/delete/exists, 'outcome' a short result label
	// such as "ok", "conflict", "not_found" or "invalid".
	IncrRequest(protocol, op, outcome string)

	// IncrRateLimited counts requests rejected by the rate limiter.
	IncrRateLimited(protocol string)

	// IncrLockExpiration increments a counter when a lock expires due to TTL.
	IncrLockExpiration()

	// SetActiveLocks sets the number of live locks held in the store.
	SetActiveLocks(count int)

	// ObserveRequestLatency records the handling latency of one API call.
	ObserveRequestLatency(protocol, op string, latency time.Duration)
}

// NoOpServerMetrics provides a no-operation implementation of ServerMetrics.
type NoOpServerMetrics struct{}

// NewNoOpServerMetrics creates a new no-operation metrics implementation.
func NewNoOpServerMetrics() ServerMetrics {
	return &NoOpServerMetrics{}
}

func (n *NoOpServerMetrics) IncrRequest(protocol, op, outcome string)                         {}
func (n *NoOpServerMetrics) IncrRateLimited(protocol string)                                  {}
func (n *NoOpServerMetrics) IncrLockExpiration()                                              {}
func (n *NoOpServerMetrics) SetActiveLocks(count int)                                         {}
func (n *NoOpServerMetrics) ObserveRequestLatency(protocol, op string, latency time.Duration) {}

// PrometheusServerMetrics exports ServerMetrics as Prometheus collectors.
type PrometheusServerMetrics struct {
	requests    *prometheus.CounterVec
	rateLimited *prometheus.CounterVec
	expirations prometheus.Counter
	activeLocks prometheus.Gauge
	latency     *prometheus.HistogramVec
}

// NewPrometheusServerMetrics creates the collectors and registers them with reg.
// A nil reg uses prometheus.DefaultRegisterer.
func NewPrometheusServerMetrics(reg prometheus.Registerer) (*PrometheusServerMetrics, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	m := &PrometheusServerMetrics{
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "locksmith",
			Subsystem: "server",
			Name:      "requests_total",
			Help:      "Lock service API calls by protocol, operation and outcome.",
		}, []string{"protocol", "op", "outcome"}),
		rateLimited: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "locksmith",
			Subsystem: "server",
			Name:      "rate_limited_total",
			Help:      "Requests rejected by the rate limiter.",
		}, []string{"protocol"}),
		expirations: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "locksmith",
			Subsystem: "server",
			Name:      "lock_expirations_total",
			Help:      "Locks removed because their TTL elapsed.",
		}),
		activeLocks: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "locksmith",
			Subsystem: "server",
			Name:      "active_locks",
			Help:      "Live locks currently held.",
		}),
		latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "locksmith",
			Subsystem: "server",
			Name:      "request_duration_seconds",
			Help:      "Lock service API call handling latency.",
			Buckets:   prometheus.ExponentialBuckets(0.0001, 4, 8),
		}, []string{"protocol", "op"}),
	}

	for _, c := range []prometheus.Collector{m.requests, m.rateLimited, m.expirations, m.activeLocks, m.latency} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

func (m *PrometheusServerMetrics) IncrRequest(protocol, op, outcome string) {
	m.requests.WithLabelValues(protocol, op, outcome).Inc()
}

func (m *PrometheusServerMetrics) IncrRateLimited(protocol string) {
	m.rateLimited.WithLabelValues(protocol).Inc()
}

func (m *PrometheusServerMetrics) IncrLockExpiration() {
	m.expirations.Inc()
}

func (m *PrometheusServerMetrics) SetActiveLocks(count int) {
	m.activeLocks.Set(float64(count))
}

func (m *PrometheusServerMetrics) ObserveRequestLatency(protocol, op string, latency time.Duration) {
	m.latency.WithLabelValues(protocol, op).Observe(latency.Seconds())
}
