package server

import (
	"time"

	"github.com/jathurchan/locksmith/clock"
	"github.com/jathurchan/locksmith/logger"
)

// Config holds the configuration settings for an in-memory lock service instance.
type Config struct {
	// HTTPAddress is the HTTP API's bind address (e.g., "0.0.0.0:8080").
	// Empty disables the HTTP listener in Start.
	HTTPAddress string

	// GRPCAddress is the gRPC API's bind address (e.g., "0.0.0.0:50051").
	// Empty disables the gRPC listener in Start.
	GRPCAddress string

	ShutdownTimeout time.Duration // Max time allowed for graceful shutdown
	MaxRequestSize  int64         // Maximum size of incoming HTTP bodies (in bytes)
	MaxLockTTL      time.Duration // Upper bound for a requested TTL
	ExpiryInterval  time.Duration // How often expired locks are swept

	EnableRateLimit bool          // Whether rate limiting is enforced
	RateLimit       int           // Requests allowed per RateLimitWindow
	RateLimitBurst  int           // Burst capacity
	RateLimitWindow time.Duration // Time window used for rate calculation

	Logger  logger.Logger
	Metrics ServerMetrics
	Clock   clock.Clock
}

// DefaultConfig returns a Config pre-populated with safe defaults.
func DefaultConfig() Config {
	return Config{
		HTTPAddress:     DefaultHTTPAddress,
		GRPCAddress:     DefaultGRPCAddress,
		ShutdownTimeout: DefaultShutdownTimeout,
		MaxRequestSize:  DefaultMaxRequestSize,
		MaxLockTTL:      DefaultMaxLockTTL,
		ExpiryInterval:  DefaultExpiryInterval,
		EnableRateLimit: false,
		RateLimit:       DefaultRateLimit,
		RateLimitBurst:  DefaultRateLimitBurst,
		RateLimitWindow: DefaultRateLimitWindow,
		Logger:          logger.NewNoOpLogger(),
		Metrics:         NewNoOpServerMetrics(),
		Clock:           clock.NewStandardClock(),
	}
}

// Validate checks if the server configuration is valid.
func (c *Config) Validate() error {
	checkPositiveDuration := func(val time.Duration, name string) error {
		if val <= 0 {
			return NewConfigError(name + " must be positive")
		}
		return nil
	}

	if err := checkPositiveDuration(c.ShutdownTimeout, "ShutdownTimeout"); err != nil {
		return err
	}
	if err := checkPositiveDuration(c.ExpiryInterval, "ExpiryInterval"); err != nil {
		return err
	}
	if c.MaxLockTTL < MinLockTTL {
		return NewConfigError("MaxLockTTL must be at least " + MinLockTTL.String())
	}
	if c.MaxRequestSize <= 0 {
		return NewConfigError("MaxRequestSize must be positive")
	}

	if c.EnableRateLimit {
		if c.RateLimit <= 0 {
			return NewConfigError("RateLimit must be positive")
		}
		if c.RateLimitBurst <= 0 {
			return NewConfigError("RateLimitBurst must be positive")
		}
		if err := checkPositiveDuration(c.RateLimitWindow, "RateLimitWindow"); err != nil {
			return err
		}
	}
	return nil
}

// withDefaults fills nil collaborators.
func (c Config) withDefaults() Config {
	if c.Logger == nil {
		c.Logger = logger.NewNoOpLogger()
	}
	if c.Metrics == nil {
		c.Metrics = NewNoOpServerMetrics()
	}
	if c.Clock == nil {
		c.Clock = clock.NewStandardClock()
	}
	return c
}
