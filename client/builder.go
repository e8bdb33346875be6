package client

import (
	"time"

	"github.com/jathurchan/locksmith/clock"
	"github.com/jathurchan/locksmith/logger"
	"github.com/jathurchan/locksmith/resolver"
	"github.com/jathurchan/locksmith/transport"
	"go.opentelemetry.io/otel/trace"
)

// FactoryBuilder provides a fluent API for constructing a Factory.
//
// Example:
//
//	f, err := client.NewFactoryBuilder(resolver.Fixed("http://localhost:8080")).
//	    WithRequestTimeout(2 * time.Second).
//	    WithLogger(log).
//	    Build()
type FactoryBuilder struct {
	resolver resolver.Resolver
	config   Config
}

// NewFactoryBuilder returns a builder initialized with DefaultConfig.
// A resolver is required to build a factory.
func NewFactoryBuilder(r resolver.Resolver) *FactoryBuilder {
	return &FactoryBuilder{
		resolver: r,
		config:   DefaultConfig(),
	}
}

// WithServiceName sets the logical service name handed to the resolver.
func (b *FactoryBuilder) WithServiceName(name string) *FactoryBuilder {
	if name != "" {
		b.config.ServiceName = name
	}
	return b
}

// WithTransport sets the transport used for remote calls.
func (b *FactoryBuilder) WithTransport(t transport.Service) *FactoryBuilder {
	b.config.Transport = t
	return b
}

// WithRequestTimeout sets the per-request timeout.
func (b *FactoryBuilder) WithRequestTimeout(timeout time.Duration) *FactoryBuilder {
	if timeout > 0 {
		b.config.RequestTimeout = timeout
	}
	return b
}

// WithBackoff sets the backoff policy applied after conflicts.
func (b *FactoryBuilder) WithBackoff(policy BackoffPolicy) *FactoryBuilder {
	b.config.Backoff = policy
	return b
}

// WithTracerProvider enables a span per remote call.
func (b *FactoryBuilder) WithTracerProvider(tp trace.TracerProvider) *FactoryBuilder {
	b.config.TracerProvider = tp
	return b
}

// WithLogger sets the logger.
func (b *FactoryBuilder) WithLogger(l logger.Logger) *FactoryBuilder {
	b.config.Logger = l
	return b
}

// WithMetrics sets the metrics sink.
func (b *FactoryBuilder) WithMetrics(m Metrics) *FactoryBuilder {
	b.config.Metrics = m
	return b
}

// WithClock sets the clock driving deadlines and delays.
func (b *FactoryBuilder) WithClock(c clock.Clock) *FactoryBuilder {
	b.config.Clock = c
	return b
}

// Build validates the configuration and returns the Factory.
func (b *FactoryBuilder) Build() (*Factory, error) {
	return NewFactory(b.resolver, b.config)
}
