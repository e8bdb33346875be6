package clock

import (
	"context"
	"errors"
	"sync"
	"time"
)

// ErrDelayCanceled is returned by Delay.Wait when the delay was canceled before it fired.
var ErrDelayCanceled = errors.New("clock: delay canceled")

// Delay is a one-shot, cancelable wait. It is armed on creation and either
// fires once its duration elapses or is canceled early; after either outcome
// it has no further effect.
type Delay struct {
	timer    Timer
	duration time.Duration

	once     sync.Once
	canceled chan struct{}
}

// NewDelay arms a delay of duration d on the given clock.
// A non-positive duration fires immediately.
func NewDelay(c Clock, d time.Duration) *Delay {
	if d < 0 {
		d = 0
	}
	return &Delay{
		timer:    c.NewTimer(d),
		duration: d,
		canceled: make(chan struct{}),
	}
}

// Duration returns the duration the delay was armed with.
func (d *Delay) Duration() time.Duration {
	return d.duration
}

// Wait blocks until the delay fires, the delay is canceled, or ctx is done.
// It returns nil when the delay fired, ErrDelayCanceled when canceled,
// and ctx.Err() when the context ended first.
func (d *Delay) Wait(ctx context.Context) error {
	select {
	case <-d.timer.Chan():
		return nil
	case <-d.canceled:
		return ErrDelayCanceled
	case <-ctx.Done():
		d.timer.Stop()
		return ctx.Err()
	}
}

// Cancel aborts the delay. Any goroutine blocked in Wait returns ErrDelayCanceled.
// It returns true if this call canceled the delay; repeated calls are no-ops.
func (d *Delay) Cancel() bool {
	canceled := false
	d.once.Do(func() {
		d.timer.Stop()
		close(d.canceled)
		canceled = true
	})
	return canceled
}
