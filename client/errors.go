package client

import (
	"errors"
	"fmt"

	"github.com/jathurchan/locksmith/transport"
)

// Common client errors
var (
	// ErrInvalidState is returned when an operation is invoked from a status
	// that does not permit it (double lock, free before acquire, ID before acquisition).
	ErrInvalidState = errors.New("operation not permitted in current lock status")

	// ErrInvalidTransition is returned when a status change would not move to a higher rank.
	ErrInvalidTransition = errors.New("invalid lock status transition")

	// ErrAcquireTimeout is returned when the acquisition deadline passes without a granted lock.
	ErrAcquireTimeout = errors.New("timed out acquiring lock")

	// ErrCanceled is returned by Lock when the attempt was canceled before a lock was granted.
	ErrCanceled = errors.New("lock acquisition canceled")

	// ErrProtocol is returned when a success response lacks data the protocol requires.
	ErrProtocol = transport.ErrProtocol

	// ErrNilResolver is returned when a factory is constructed without a resolver.
	ErrNilResolver = errors.New("resolver is required")
)

// StateError reports an operation rejected because of the handle's current status.
type StateError struct {
	Op     string
	Status Status
}

// Error implements the error interface.
func (e *StateError) Error() string {
	return fmt.Sprintf("client %s: not permitted in status %s", e.Op, e.Status)
}

// Is matches ErrInvalidState.
func (e *StateError) Is(target error) bool {
	return target == ErrInvalidState
}

// TransitionError reports a rejected status change.
type TransitionError struct {
	From Status
	To   Status
}

// Error implements the error interface.
func (e *TransitionError) Error() string {
	return fmt.Sprintf("client: invalid transition %s -> %s", e.From, e.To)
}

// Is matches ErrInvalidTransition.
func (e *TransitionError) Is(target error) bool {
	return target == ErrInvalidTransition
}

// ValidationError reports an invalid construction input.
type ValidationError struct {
	Field   string
	Message string
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	return fmt.Sprintf("client: invalid %s: %s", e.Field, e.Message)
}

// ClientError wraps an error with the operation and lock it concerns.
type ClientError struct {
	Op         string // Operation that failed
	ResourceID string // Resource the handle targets, empty for adopted locks
	LockID     string // Lock identifier, when one is known
	Err        error  // Underlying error
}

// Error implements the error interface.
func (e *ClientError) Error() string {
	switch {
	case e.LockID != "":
		return fmt.Sprintf("client %s lock %s failed: %v", e.Op, e.LockID, e.Err)
	case e.ResourceID != "":
		return fmt.Sprintf("client %s resource %q failed: %v", e.Op, e.ResourceID, e.Err)
	default:
		return fmt.Sprintf("client %s failed: %v", e.Op, e.Err)
	}
}

// Unwrap returns the underlying error.
func (e *ClientError) Unwrap() error {
	return e.Err
}

// Is checks if the error matches the target error.
func (e *ClientError) Is(target error) bool {
	return errors.Is(e.Err, target)
}
