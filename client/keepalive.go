package client

import (
	"context"
	"time"

	"github.com/jathurchan/locksmith/clock"
	"github.com/jathurchan/locksmith/transport"
)

// renewInterval is two thirds of the TTL the service enforces, which is
// the requested TTL rounded up to whole seconds.
func renewInterval(ttl time.Duration) time.Duration {
	return time.Duration(transport.TTLSeconds(ttl)) * time.Second * 2 / 3
}

// startKeepAliveLocked launches the renewal goroutine. The caller must hold h.mu.
func (h *Handle) startKeepAliveLocked() {
	done := make(chan struct{})
	h.keepAliveDone = done
	go h.keepAlive(done)
}

// stopKeepAliveLocked asks the renewal goroutine to exit and interrupts its
// pending wait. It returns the loop's done channel, nil if none was started.
// The caller must hold h.mu.
func (h *Handle) stopKeepAliveLocked() <-chan struct{} {
	h.keepAliveStopped = true
	if h.pendingKeepAlive != nil {
		h.pendingKeepAlive.Cancel()
	}
	return h.keepAliveDone
}

// keepAlive renews the lock every renewInterval while the handle is
// acquired. A failed renewal means the lock is lost: the handle moves to
// StatusFailed and the loop exits without retrying.
func (h *Handle) keepAlive(done chan struct{}) {
	defer close(done)

	interval := renewInterval(h.opts.ttl)
	log := h.logger.WithComponent("keepalive")
	log.Debugw("keep-alive started", "interval", interval)

	for {
		h.mu.Lock()
		if h.keepAliveStopped || h.status != StatusAcquired {
			h.mu.Unlock()
			return
		}
		delay := clock.NewDelay(h.clock, interval)
		h.pendingKeepAlive = delay
		lockID := h.lockID
		h.mu.Unlock()

		err := delay.Wait(context.Background())

		h.mu.Lock()
		h.pendingKeepAlive = nil
		stopped := h.keepAliveStopped || h.status != StatusAcquired
		h.mu.Unlock()
		if err != nil || stopped {
			log.Debugw("keep-alive stopped", "lock_id", lockID)
			return
		}

		if err := h.remote.renew(context.Background(), lockID); err != nil {
			cerr := h.clientError(opRenew, lockID, err)
			h.mu.Lock()
			h.lastErr = cerr
			_ = h.transitionLocked(StatusFailed)
			onError := h.opts.onKeepAliveError
			h.mu.Unlock()

			h.metrics.IncrRenewal(false)
			h.metrics.IncrFailure(opRenew)
			log.Errorw("lock renewal failed, lock is considered lost", "lock_id", lockID, "error", err)
			if onError != nil {
				onError(h, cerr)
			}
			return
		}
		h.metrics.IncrRenewal(true)
		log.Debugw("lock renewed", "lock_id", lockID)
	}
}
