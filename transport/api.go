// Package transport implements the wire side of the lock service: the four
// unary operations a lock handle needs (create, renew, delete, exists) over
// HTTP or gRPC, with status-coded outcomes normalized to a small error set.
package transport

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"
)

// Operation names, used in errors, metrics labels and span names.
const (
	OpCreate = "create"
	OpRenew  = "renew"
	OpDelete = "delete"
	OpExists = "exists"
)

var (
	// ErrConflict is returned by Create when the resource is already locked elsewhere.
	// It is the only outcome a caller should retry.
	ErrConflict = errors.New("transport: resource already locked")

	// ErrProtocol is returned when a success response is missing data the protocol requires.
	ErrProtocol = errors.New("transport: malformed response")
)

// Service is the remote lock service as seen by a client.
// The endpoint is resolved by the caller before every call and is never cached here.
type Service interface {
	// Create asks the service to lock resourceID for ttl.
	//
	// Returns:
	//   - the service-assigned lock identifier on success.
	//   - ErrConflict if the resource is already locked.
	//   - ErrProtocol if a success response carries no identifier.
	//   - *StatusError for any other non-success outcome.
	Create(ctx context.Context, endpoint, resourceID string, ttl time.Duration) (string, error)

	// Renew extends the TTL of a held lock. Any non-success outcome is an error.
	Renew(ctx context.Context, endpoint, lockID string) error

	// Delete frees a held lock. Any non-success outcome is an error.
	Delete(ctx context.Context, endpoint, lockID string) error

	// Exists reports whether a lock currently exists for resourceID.
	// The answer is advisory and may be stale by the time it is returned.
	Exists(ctx context.Context, endpoint, resourceID string) (bool, error)
}

// StatusError describes a non-success, non-conflict outcome of a remote call.
// Code is an HTTP-equivalent status code regardless of the wire protocol.
type StatusError struct {
	Op     string
	Code   int
	Reason string
}

// Error implements the error interface.
func (e *StatusError) Error() string {
	if e.Reason != "" {
		return fmt.Sprintf("transport: %s failed with status %d: %s", e.Op, e.Code, e.Reason)
	}
	return fmt.Sprintf("transport: %s failed with status %d", e.Op, e.Code)
}

// TTLSeconds converts a TTL to the whole seconds sent on the wire,
// rounding up and never going below one second.
func TTLSeconds(ttl time.Duration) int64 {
	secs := int64(math.Ceil(ttl.Seconds()))
	if secs < 1 {
		return 1
	}
	return secs
}
