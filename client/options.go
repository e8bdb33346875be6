package client

import "time"

// Option configures a single handle.
type Option func(*lockOptions)

type lockOptions struct {
	ttl              time.Duration
	timeout          time.Duration
	keepAlive        bool
	onKeepAliveError func(*Handle, error)
}

func defaultLockOptions() lockOptions {
	return lockOptions{
		ttl:       defaultTTL,
		timeout:   defaultTimeout,
		keepAlive: defaultKeepAlive,
	}
}

// WithTTL sets how long the lock survives without renewal. Defaults to 30s.
// The service receives whole seconds, rounded up.
func WithTTL(ttl time.Duration) Option {
	return func(o *lockOptions) { o.ttl = ttl }
}

// WithTimeout sets how long Lock keeps retrying before giving up. Defaults to 60s.
func WithTimeout(timeout time.Duration) Option {
	return func(o *lockOptions) { o.timeout = timeout }
}

// WithKeepAlive enables or disables background renewal while the lock is held.
// Defaults to true.
func WithKeepAlive(enabled bool) Option {
	return func(o *lockOptions) { o.keepAlive = enabled }
}

// WithKeepAliveErrorHandler registers fn to be called from the keep-alive
// goroutine when a renewal fails and the handle moves to StatusFailed.
func WithKeepAliveErrorHandler(fn func(*Handle, error)) Option {
	return func(o *lockOptions) { o.onKeepAliveError = fn }
}

func (o lockOptions) validate() error {
	if o.ttl <= 0 {
		return &ValidationError{Field: "ttl", Message: "must be positive"}
	}
	if o.timeout <= 0 {
		return &ValidationError{Field: "timeout", Message: "must be positive"}
	}
	return nil
}
