// Package client provides lock handles for a remote lock service.
//
// A Factory produces Handles. A handle either acquires a fresh lock on a
// resource, retrying with exponential backoff while the resource is held
// elsewhere, or adopts a lock identifier obtained earlier. While held, a
// handle can renew its lock in the background until it is freed.
//
// Example:
//
//	f, err := client.NewFactory(resolver.Fixed("http://localhost:8080"), client.DefaultConfig())
//	if err != nil {
//	    return err
//	}
//	h, err := f.CreateLock("orders/42", client.WithTTL(10*time.Second))
//	if err != nil {
//	    return err
//	}
//	if err := h.Lock(ctx); err != nil {
//	    return err
//	}
//	defer h.Free(context.Background())
package client

import (
	"context"
	"fmt"

	"github.com/jathurchan/locksmith/resolver"
)

// Factory validates construction inputs and produces lock handles.
// It is safe for concurrent use; handles it returns are independent.
type Factory struct {
	config Config
	remote *remote
}

// NewFactory returns a Factory that reaches the lock service through r.
// Zero-valued fields of cfg are replaced with defaults.
func NewFactory(r resolver.Resolver, cfg Config) (*Factory, error) {
	if r == nil {
		return nil, ErrNilResolver
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	cfg = cfg.withDefaults()

	return &Factory{
		config: cfg,
		remote: &remote{
			resolver:  r,
			service:   cfg.ServiceName,
			transport: cfg.Transport,
			timeout:   cfg.RequestTimeout,
		},
	}, nil
}

// CreateLock returns a handle in StatusInitialized for resourceID.
// No remote call is made until Lock.
func (f *Factory) CreateLock(resourceID string, opts ...Option) (*Handle, error) {
	if err := validateResourceID(resourceID); err != nil {
		return nil, err
	}
	o, err := buildOptions(opts)
	if err != nil {
		return nil, err
	}

	h := f.newHandle(resourceID, o)
	h.logger = f.config.Logger.WithComponent("handle").WithResource(resourceID)
	return h, nil
}

// AdoptLock returns a handle in StatusAcquired for a lock identifier
// obtained elsewhere. The identifier is trusted: nothing checks that the
// lock exists or is still held.
//
// With keep-alive enabled (the default) the handle starts its own renewal
// loop. If the handle that created the lock still renews it, the two loops
// race on the same lock; disable keep-alive on one side.
func (f *Factory) AdoptLock(lockID string, opts ...Option) (*Handle, error) {
	if lockID == "" {
		return nil, &ValidationError{Field: "lockID", Message: "must not be empty"}
	}
	o, err := buildOptions(opts)
	if err != nil {
		return nil, err
	}

	h := f.newHandle("", o)
	h.logger = f.config.Logger.WithComponent("handle").With("lock_id", lockID)
	h.lockID = lockID
	h.status = StatusAcquired

	h.mu.Lock()
	if o.keepAlive {
		h.startKeepAliveLocked()
	}
	h.mu.Unlock()

	h.logger.Debugw("lock adopted", "keep_alive", o.keepAlive)
	return h, nil
}

// Exists reports whether the service currently holds a lock on resourceID.
// The answer is advisory: it may be stale by the time it is returned and
// must never be used to decide whether it is safe to proceed without a lock.
func (f *Factory) Exists(ctx context.Context, resourceID string) (bool, error) {
	if err := validateResourceID(resourceID); err != nil {
		return false, err
	}
	found, err := f.remote.exists(ctx, resourceID)
	if err != nil {
		return false, &ClientError{Op: opExists, ResourceID: resourceID, Err: err}
	}
	return found, nil
}

// Config returns the effective configuration, defaults applied.
func (f *Factory) Config() Config {
	return f.config
}

func (f *Factory) newHandle(resourceID string, o lockOptions) *Handle {
	return &Handle{
		resourceID: resourceID,
		opts:       o,
		remote:     f.remote,
		backoff:    f.config.Backoff,
		clock:      f.config.Clock,
		metrics:    f.config.Metrics,
		status:     StatusInitialized,
	}
}

func buildOptions(opts []Option) (lockOptions, error) {
	o := defaultLockOptions()
	for _, opt := range opts {
		if opt != nil {
			opt(&o)
		}
	}
	return o, o.validate()
}

func validateResourceID(resourceID string) error {
	if resourceID == "" {
		return &ValidationError{Field: "resourceID", Message: "must not be empty"}
	}
	if len(resourceID) > maxResourceIDLength {
		return &ValidationError{
			Field:   "resourceID",
			Message: fmt.Sprintf("must be at most %d bytes, got %d", maxResourceIDLength, len(resourceID)),
		}
	}
	return nil
}
