package client

import (
	"context"
	"fmt"
	"time"

	"github.com/jathurchan/locksmith/resolver"
	"github.com/jathurchan/locksmith/transport"
)

// remote pairs the resolver with the transport. Every call resolves the
// service afresh, so instances may change between attempts.
type remote struct {
	resolver  resolver.Resolver
	service   string
	transport transport.Service
	timeout   time.Duration
}

// do resolves the endpoint and runs fn under the per-request timeout.
func (r *remote) do(ctx context.Context, fn func(ctx context.Context, endpoint string) error) error {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	endpoint, err := r.resolver.Resolve(ctx, r.service)
	if err != nil {
		return fmt.Errorf("resolve %q: %w", r.service, err)
	}
	return fn(ctx, endpoint)
}

func (r *remote) create(ctx context.Context, resourceID string, ttl time.Duration) (string, error) {
	var id string
	err := r.do(ctx, func(ctx context.Context, endpoint string) error {
		var err error
		id, err = r.transport.Create(ctx, endpoint, resourceID, ttl)
		return err
	})
	return id, err
}

func (r *remote) renew(ctx context.Context, lockID string) error {
	return r.do(ctx, func(ctx context.Context, endpoint string) error {
		return r.transport.Renew(ctx, endpoint, lockID)
	})
}

func (r *remote) delete(ctx context.Context, lockID string) error {
	return r.do(ctx, func(ctx context.Context, endpoint string) error {
		return r.transport.Delete(ctx, endpoint, lockID)
	})
}

func (r *remote) exists(ctx context.Context, resourceID string) (bool, error) {
	var found bool
	err := r.do(ctx, func(ctx context.Context, endpoint string) error {
		var err error
		found, err = r.transport.Exists(ctx, endpoint, resourceID)
		return err
	})
	return found, err
}
