// Package resolver maps a logical lock-service name to a reachable base
// endpoint. Clients call Resolve before every remote operation and never
// cache the answer, so a service may move between calls.
package resolver

import (
	"context"
	"errors"
)

var (
	// ErrUnknownService is returned when no endpoint is registered for a service name.
	ErrUnknownService = errors.New("resolver: unknown service")

	// ErrEmptyServiceName is returned when Resolve is called with an empty name.
	ErrEmptyServiceName = errors.New("resolver: empty service name")
)

// Resolver maps a logical service name to a base endpoint
// (an HTTP base URL or a gRPC target, depending on the transport in use).
type Resolver interface {
	Resolve(ctx context.Context, service string) (string, error)
}

// Func adapts an ordinary function to the Resolver interface.
type Func func(ctx context.Context, service string) (string, error)

// Resolve calls f(ctx, service).
func (f Func) Resolve(ctx context.Context, service string) (string, error) {
	return f(ctx, service)
}
