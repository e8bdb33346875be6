package server

import (
	"errors"
	"fmt"
)

var (
	// ErrServerAlreadyStarted indicates an attempt to start an already running server.
	ErrServerAlreadyStarted = errors.New("server: server already started")

	// ErrServerNotStarted indicates Stop was called on a server that never started.
	ErrServerNotStarted = errors.New("server: server not started")

	// ErrLockHeld indicates the resource is already locked by another holder.
	ErrLockHeld = errors.New("server: resource already locked")

	// ErrLockNotFound indicates no live lock exists for the given identifier.
	// Expired locks are reported the same way.
	ErrLockNotFound = errors.New("server: lock not found")

	// ErrRateLimited indicates the request was rejected due to rate limiting policies.
	ErrRateLimited = errors.New("server: request rate limited")
)

// ValidationError represents a request validation error with details about the specific field.
type ValidationError struct {
	Field   string // The name of the field that failed validation.
	Value   any    // The value of the field that caused the error.
	Message string // A descriptive message explaining the validation failure.
}

// NewValidationError creates a new ValidationError.
func NewValidationError(field string, value any, message string) *ValidationError {
	return &ValidationError{
		Field:   field,
		Value:   value,
		Message: message,
	}
}

// Error implements the error interface, providing a structured validation error message.
func (e *ValidationError) Error() string {
	return fmt.Sprintf("server: validation error for field '%s' (value: %v): %s", e.Field, e.Value, e.Message)
}

// ConfigError represents a validation error in Config.
type ConfigError struct {
	Message string
}

// NewConfigError returns a new ConfigError instance.
func NewConfigError(msg string) *ConfigError {
	return &ConfigError{Message: msg}
}

// Error implements the error interface.
func (e *ConfigError) Error() string {
	return "server config error: " + e.Message
}

// reasonFor maps a store or validation error to the reason string sent to clients.
func reasonFor(err error) string {
	var ve *ValidationError
	switch {
	case errors.Is(err, ErrLockHeld):
		return ReasonLockHeld
	case errors.Is(err, ErrLockNotFound):
		return ReasonLockNotFound
	case errors.Is(err, ErrRateLimited):
		return ReasonRateLimited
	case errors.As(err, &ve):
		return ReasonInvalidRequest
	default:
		return ""
	}
}
