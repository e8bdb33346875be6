package server

import (
	"context"
	"testing"
	"time"

	"github.com/jathurchan/locksmith/logger"
	"github.com/jathurchan/locksmith/testutil"
)

func TestNewTokenBucketRateLimiter(t *testing.T) {
	tests := []struct {
		name        string
		maxRequests int
		burst       int
		window      time.Duration
		allowed     int
	}{
		{name: "burst bounds immediate requests", maxRequests: 1, burst: 3, window: time.Hour, allowed: 3},
		{name: "zero window disables limiting", maxRequests: 1, burst: 1, window: 0, allowed: 10},
		{name: "zero burst becomes one", maxRequests: 1, burst: 0, window: time.Hour, allowed: 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rl := NewTokenBucketRateLimiter(tt.maxRequests, tt.burst, tt.window, logger.NewNoOpLogger())
			allowed := 0
			for range 10 {
				if rl.Allow() {
					allowed++
				}
			}
			testutil.AssertEqual(t, tt.allowed, allowed)
		})
	}
}

func TestTokenBucketRateLimiter_WaitHonorsContext(t *testing.T) {
	rl := NewTokenBucketRateLimiter(1, 1, time.Hour, logger.NewNoOpLogger())
	testutil.AssertTrue(t, rl.Allow())

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	testutil.AssertError(t, rl.Wait(ctx))
}
