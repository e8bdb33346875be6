package client

import (
	"math"
	"time"
)

// BackoffPolicy computes the wait after a conflicting acquisition attempt:
// Unit * Factor^min(attempts, UpperBound).
type BackoffPolicy struct {
	Factor     float64
	UpperBound int
	Unit       time.Duration
}

// DefaultBackoffPolicy returns factor 1.3, upper bound 15, in seconds.
func DefaultBackoffPolicy() BackoffPolicy {
	return BackoffPolicy{
		Factor:     defaultBackoffFactor,
		UpperBound: defaultBackoffUpperBound,
		Unit:       defaultBackoffUnit,
	}
}

// Validate reports whether the policy yields non-decreasing waits.
func (p BackoffPolicy) Validate() error {
	if p == (BackoffPolicy{}) {
		return nil
	}
	if p.Factor < 1 {
		return &ValidationError{Field: "Backoff.Factor", Message: "must be at least 1"}
	}
	if p.UpperBound < 0 {
		return &ValidationError{Field: "Backoff.UpperBound", Message: "must not be negative"}
	}
	if p.Unit <= 0 {
		return &ValidationError{Field: "Backoff.Unit", Message: "must be positive"}
	}
	if p.ceiling() > math.MaxInt64 {
		return &ValidationError{Field: "Backoff", Message: "longest wait overflows time.Duration"}
	}
	return nil
}

func (p BackoffPolicy) ceiling() float64 {
	return float64(p.Unit) * math.Pow(p.Factor, float64(p.UpperBound))
}

// Duration returns the wait before the next attempt once attempts conflicts
// have been seen.
func (p BackoffPolicy) Duration(attempts int) time.Duration {
	exp := min(max(attempts, 0), p.UpperBound)
	d := float64(p.Unit) * math.Pow(p.Factor, float64(exp))
	if d >= math.MaxInt64 {
		return time.Duration(math.MaxInt64)
	}
	return time.Duration(d)
}

// Max returns the longest wait the policy can produce.
func (p BackoffPolicy) Max() time.Duration {
	return p.Duration(p.UpperBound)
}
