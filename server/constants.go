package server

import "time"

const (
	// --- Default server configuration values ---

	// DefaultHTTPAddress is the default bind address of the HTTP API.
	DefaultHTTPAddress = "0.0.0.0:8080"

	// DefaultGRPCAddress is the default bind address of the gRPC API.
	DefaultGRPCAddress = "0.0.0.0:50051"

	// DefaultShutdownTimeout is the default timeout for graceful server shutdown.
	DefaultShutdownTimeout = 10 * time.Second

	// DefaultMaxRequestSize is the default maximum size of an incoming request body (64KB).
	DefaultMaxRequestSize = 64 * 1024

	// DefaultExpiryInterval is how often expired locks are swept from the store.
	DefaultExpiryInterval = time.Second

	// --- Rate limiting defaults ---

	// DefaultRateLimit is the default number of requests allowed per window.
	DefaultRateLimit = 100

	// DefaultRateLimitBurst is the default burst size for rate limiting.
	DefaultRateLimitBurst = 200

	// DefaultRateLimitWindow is the default time window for rate limiting calculations.
	DefaultRateLimitWindow = time.Second

	// --- Validation limits for client-provided data ---

	// MaxResourceIDLength is the longest resource identifier accepted.
	MaxResourceIDLength = 256

	// MinLockTTL is the shortest TTL accepted on create.
	MinLockTTL = time.Second

	// DefaultMaxLockTTL is the longest TTL accepted on create.
	DefaultMaxLockTTL = 24 * time.Hour
)

// Machine-readable failure reasons carried in error responses.
const (
	ReasonLockHeld       = "LOCK_HELD"
	ReasonLockNotFound   = "LOCK_NOT_FOUND"
	ReasonInvalidRequest = "INVALID_REQUEST"
	ReasonRateLimited    = "RATE_LIMITED"
	ReasonUnknownMethod  = "UNKNOWN_METHOD"

	// errorDomain is the ErrorInfo domain attached to gRPC failures.
	errorDomain = "locksmith"
)
