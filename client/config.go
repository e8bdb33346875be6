package client

import (
	"time"

	"github.com/jathurchan/locksmith/clock"
	"github.com/jathurchan/locksmith/logger"
	"github.com/jathurchan/locksmith/transport"
	"go.opentelemetry.io/otel/trace"
)

const (
	// Default logical name of the lock service passed to the resolver.
	defaultServiceName = "locksmith"

	// Default timeout for each individual remote request, including resolution.
	defaultRequestTimeout = 10 * time.Second

	// Default lifetime of a lock without renewal.
	defaultTTL = 30 * time.Second

	// Default time spent retrying acquisition before giving up.
	defaultTimeout = 60 * time.Second

	// Whether handles renew their lock in the background by default.
	defaultKeepAlive = true

	// Default base of the exponential backoff between conflicting attempts.
	defaultBackoffFactor = 1.3

	// Default cap on the backoff exponent (1.3^15 is roughly 51s).
	defaultBackoffUpperBound = 15

	// Default unit the backoff is expressed in.
	defaultBackoffUnit = time.Second

	// Longest resource identifier accepted, matching the service limit.
	maxResourceIDLength = 256
)

// Config holds configuration shared by every handle a Factory produces.
type Config struct {
	// ServiceName is the logical name handed to the resolver before every
	// remote call. Defaults to "locksmith".
	ServiceName string

	// Transport performs the remote calls. Defaults to the HTTP transport.
	Transport transport.Service

	// RequestTimeout bounds each remote request, resolution included.
	// A context with a shorter deadline takes precedence. Defaults to 10 seconds.
	RequestTimeout time.Duration

	// Backoff controls the wait between acquisition attempts after a conflict.
	Backoff BackoffPolicy

	// TracerProvider, when set, wraps Transport so every remote call emits a span.
	TracerProvider trace.TracerProvider

	// Logger receives handle lifecycle events. Defaults to a no-op logger.
	Logger logger.Logger

	// Metrics receives handle counters. Defaults to a no-op implementation.
	Metrics Metrics

	// Clock drives deadlines and delays. Defaults to the system clock.
	Clock clock.Clock
}

// DefaultConfig returns a Config with sensible default values.
func DefaultConfig() Config {
	return Config{
		ServiceName:    defaultServiceName,
		RequestTimeout: defaultRequestTimeout,
		Backoff:        DefaultBackoffPolicy(),
	}
}

// Validate checks the user-settable fields. Zero values are accepted and
// replaced with defaults by withDefaults.
func (c Config) Validate() error {
	if c.RequestTimeout < 0 {
		return &ValidationError{Field: "RequestTimeout", Message: "must not be negative"}
	}
	return c.Backoff.Validate()
}

func (c Config) withDefaults() Config {
	if c.ServiceName == "" {
		c.ServiceName = defaultServiceName
	}
	if c.Transport == nil {
		c.Transport = transport.NewHTTPTransport()
	}
	if c.TracerProvider != nil {
		c.Transport = transport.NewTraced(c.Transport, c.TracerProvider)
	}
	if c.RequestTimeout == 0 {
		c.RequestTimeout = defaultRequestTimeout
	}
	if c.Backoff == (BackoffPolicy{}) {
		c.Backoff = DefaultBackoffPolicy()
	}
	if c.Logger == nil {
		c.Logger = logger.NewNoOpLogger()
	}
	if c.Metrics == nil {
		c.Metrics = NewNoOpMetrics()
	}
	if c.Clock == nil {
		c.Clock = clock.NewStandardClock()
	}
	return c
}
