package client

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/jathurchan/locksmith/clock"
	"github.com/jathurchan/locksmith/logger"
	"github.com/jathurchan/locksmith/transport"
)

const (
	opLock   = "lock"
	opFree   = "free"
	opRenew  = "renew"
	opID     = "id"
	opExists = "exists"
)

// Handle is one attempt to lock one resource, or one adopted lock.
//
// A handle is never reused: once it reaches a terminal status a new one has
// to be created through the Factory. A single goroutine is expected to drive
// it; Cancel may be called from another.
type Handle struct {
	resourceID string
	opts       lockOptions

	remote  *remote
	backoff BackoffPolicy
	clock   clock.Clock
	logger  logger.Logger
	metrics Metrics

	mu               sync.Mutex
	status           Status
	lockID           string
	attempts         int
	lastErr          error
	pendingBackoff   *clock.Delay
	pendingKeepAlive *clock.Delay
	keepAliveStopped bool
	keepAliveDone    chan struct{}
}

// ResourceID returns the resource this handle targets, or "" for an adopted lock.
func (h *Handle) ResourceID() string {
	return h.resourceID
}

// Status returns the current lifecycle status.
func (h *Handle) Status() Status {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.status
}

// Attempts returns the number of conflicting acquisition attempts so far.
func (h *Handle) Attempts() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.attempts
}

// Err returns the error that moved the handle to StatusFailed, if any.
// It is the only way to learn why a keep-alive renewal stopped.
func (h *Handle) Err() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.lastErr
}

// ID returns the lock identifier assigned by the service or given at adoption.
// It fails with ErrInvalidState until one is known.
func (h *Handle) ID() (string, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.lockID == "" {
		return "", &StateError{Op: opID, Status: h.status}
	}
	return h.lockID, nil
}

// IsAcquired reports whether a lock identifier has been assigned. It stays
// true after the lock is freed; use Status to tell the two apart.
func (h *Handle) IsAcquired() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.lockID != ""
}

// KeepAliveDone returns a channel closed when the keep-alive loop exits.
// If no loop has been started the channel is already closed.
func (h *Handle) KeepAliveDone() <-chan struct{} {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.keepAliveDone == nil {
		done := make(chan struct{})
		close(done)
		return done
	}
	return h.keepAliveDone
}

// Lock acquires the lock, retrying with exponential backoff while the
// resource is held elsewhere, until the handle's timeout elapses.
//
// Lock may only be called once, on a handle in StatusInitialized.
// Returns:
//   - nil once the lock is granted; the handle is then StatusAcquired.
//   - an error matching ErrAcquireTimeout when the deadline passed.
//   - an error matching ErrCanceled when Cancel was called or ctx ended.
//   - an error matching ErrInvalidState on a second call.
//   - any other remote failure, after moving the handle to StatusFailed.
func (h *Handle) Lock(ctx context.Context) error {
	h.mu.Lock()
	if h.status != StatusInitialized {
		status := h.status
		h.mu.Unlock()
		return &StateError{Op: opLock, Status: status}
	}
	_ = h.transitionLocked(StatusAcquiring)
	h.mu.Unlock()

	start := h.clock.Now()
	deadline := start.Add(h.opts.timeout)
	h.logger.Debugw("acquiring lock", "ttl", h.opts.ttl, "timeout", h.opts.timeout)

	for h.clock.Now().Before(deadline) {
		if err := ctx.Err(); err != nil {
			return h.abort(err)
		}
		if h.Status() != StatusAcquiring {
			return h.abort(nil)
		}

		h.metrics.IncrAttempt()
		lockID, err := h.remote.create(ctx, h.resourceID, h.opts.ttl)
		switch {
		case err == nil:
			return h.granted(ctx, lockID, start)
		case errors.Is(err, transport.ErrConflict):
			h.metrics.IncrConflict()
		case ctx.Err() != nil:
			return h.abort(ctx.Err())
		default:
			return h.acquireFailed(err)
		}

		delay, attempts, ok := h.armBackoff()
		if !ok {
			return h.abort(nil)
		}
		h.logger.Debugw("resource held, backing off", "attempt", attempts, "wait", delay.Duration())

		err = delay.Wait(ctx)
		h.mu.Lock()
		h.pendingBackoff = nil
		h.mu.Unlock()

		switch {
		case errors.Is(err, clock.ErrDelayCanceled):
			return h.abort(nil)
		case err != nil:
			return h.abort(err)
		}
	}
	return h.expire()
}

// Free releases a held lock. It stops the keep-alive loop, waiting for any
// in-flight renewal, then deletes the lock on the service. The handle ends in
// StatusFreed, or in StatusFailed if the delete fails; it is never retried.
// Free fails with ErrInvalidState unless the handle is StatusAcquired.
func (h *Handle) Free(ctx context.Context) error {
	return h.free(ctx, false)
}

// Cancel stops the handle. A held lock is freed as by Free. An acquisition in
// progress is moved to StatusCanceled and its backoff wait is interrupted so
// Lock returns promptly; a create request already in flight still completes,
// and a lock it grants is released before Lock returns. Cancel on a handle
// that is already finished is a no-op.
func (h *Handle) Cancel(ctx context.Context) error {
	h.mu.Lock()
	switch h.status {
	case StatusAcquired:
		h.mu.Unlock()
		return h.Free(ctx)
	case StatusInitialized, StatusAcquiring:
		from := h.status
		_ = h.transitionLocked(StatusCanceled)
		if h.pendingBackoff != nil {
			h.pendingBackoff.Cancel()
		}
		h.mu.Unlock()
		h.metrics.IncrCanceled()
		h.logger.Infow("lock canceled", "from", from.String())
		return nil
	default:
		h.mu.Unlock()
		return nil
	}
}

// free deletes the held lock. With ignoreStatus it runs from any status and
// only moves the status forward where the rank order allows.
func (h *Handle) free(ctx context.Context, ignoreStatus bool) error {
	h.mu.Lock()
	if !ignoreStatus && h.status != StatusAcquired {
		status := h.status
		h.mu.Unlock()
		return &StateError{Op: opFree, Status: status}
	}
	lockID := h.lockID
	done := h.stopKeepAliveLocked()
	h.mu.Unlock()

	// An in-flight renewal is bounded by the request timeout. The delete
	// below must run even when ctx has ended, so the handle settles in
	// StatusFreed or StatusFailed instead of staying acquired unrenewed.
	if done != nil {
		<-done
	}

	h.mu.Lock()
	if !ignoreStatus && h.status != StatusAcquired {
		// The keep-alive loop lost the lock while we waited for it.
		status := h.status
		h.mu.Unlock()
		return &StateError{Op: opFree, Status: status}
	}
	_ = h.transitionLocked(StatusFreeing)
	h.mu.Unlock()

	h.logger.Debugw("freeing lock", "lock_id", lockID)
	if err := h.remote.delete(ctx, lockID); err != nil {
		cerr := h.clientError(opFree, lockID, err)
		h.mu.Lock()
		h.lastErr = cerr
		_ = h.transitionLocked(StatusFailed)
		h.mu.Unlock()

		h.metrics.IncrFree(false)
		h.metrics.IncrFailure(opFree)
		h.logger.Errorw("failed to free lock", "lock_id", lockID, "error", err)
		return cerr
	}

	h.mu.Lock()
	_ = h.transitionLocked(StatusFreed)
	h.mu.Unlock()
	h.metrics.IncrFree(true)
	h.logger.Infow("lock freed", "lock_id", lockID)
	return nil
}

// transitionLocked moves the handle to a strictly higher status.
// The caller must hold h.mu.
func (h *Handle) transitionLocked(to Status) error {
	if !to.IsValid() || to <= h.status {
		return &TransitionError{From: h.status, To: to}
	}
	h.status = to
	return nil
}

// granted records a lock id returned by create. If the acquisition was
// canceled while the request was in flight, the lock is released at once.
func (h *Handle) granted(ctx context.Context, lockID string, start time.Time) error {
	h.mu.Lock()
	h.lockID = lockID
	if h.status != StatusAcquiring {
		status := h.status
		h.mu.Unlock()

		h.logger.Warnw("lock granted after acquisition was canceled, releasing it",
			"lock_id", lockID, "status", status.String())
		if err := h.free(context.WithoutCancel(ctx), true); err != nil {
			h.logger.Errorw("failed to release lock granted after cancel", "lock_id", lockID, "error", err)
		}
		return h.clientError(opLock, lockID, ErrCanceled)
	}
	_ = h.transitionLocked(StatusAcquired)
	attempts := h.attempts
	if h.opts.keepAlive {
		h.startKeepAliveLocked()
	}
	h.mu.Unlock()

	latency := h.clock.Since(start)
	h.metrics.ObserveAcquired(latency)
	h.logger.Infow("lock acquired", "lock_id", lockID, "conflicts", attempts, "latency", latency)
	return nil
}

// armBackoff counts a conflict and arms the wait before the next attempt.
// It reports false if the acquisition has been canceled meanwhile.
func (h *Handle) armBackoff() (*clock.Delay, int, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.attempts++
	if h.status != StatusAcquiring {
		return nil, h.attempts, false
	}
	d := clock.NewDelay(h.clock, h.backoff.Duration(h.attempts))
	h.pendingBackoff = d
	return d, h.attempts, true
}

// abort ends an acquisition as canceled. cause, when set, is the context
// or transport error that interrupted it.
func (h *Handle) abort(cause error) error {
	h.mu.Lock()
	moved := h.status == StatusAcquiring && h.transitionLocked(StatusCanceled) == nil
	attempts := h.attempts
	h.mu.Unlock()

	if moved {
		h.metrics.IncrCanceled()
	}
	h.logger.Infow("lock acquisition canceled", "conflicts", attempts, "cause", cause)

	err := ErrCanceled
	if cause != nil {
		err = fmt.Errorf("%w: %w", ErrCanceled, cause)
	}
	return h.clientError(opLock, "", err)
}

func (h *Handle) acquireFailed(err error) error {
	cerr := h.clientError(opLock, "", err)
	h.mu.Lock()
	moved := h.status == StatusAcquiring && h.transitionLocked(StatusFailed) == nil
	if moved {
		h.lastErr = cerr
	}
	h.mu.Unlock()

	if !moved {
		return h.abort(err)
	}
	h.metrics.IncrFailure(opLock)
	h.logger.Errorw("lock acquisition failed", "error", err)
	return cerr
}

func (h *Handle) expire() error {
	h.mu.Lock()
	moved := h.status == StatusAcquiring && h.transitionLocked(StatusTimeout) == nil
	attempts := h.attempts
	h.mu.Unlock()

	if !moved {
		return h.abort(nil)
	}
	h.metrics.IncrTimeout()
	h.logger.Warnw("timed out acquiring lock", "conflicts", attempts, "timeout", h.opts.timeout)
	return h.clientError(opLock, "", ErrAcquireTimeout)
}

func (h *Handle) clientError(op, lockID string, err error) *ClientError {
	return &ClientError{Op: op, ResourceID: h.resourceID, LockID: lockID, Err: err}
}
