package server

import (
	"sync"
	"time"

	"github.com/jathurchan/locksmith/clock"
)

// mockClock is a Clock whose time only moves when the test advances it.
// Its timers never fire.
type mockClock struct {
	mu      sync.RWMutex
	current time.Time
}

func newMockClock() *mockClock {
	return &mockClock{
		current: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC),
	}
}

func (mc *mockClock) Now() time.Time {
	mc.mu.RLock()
	defer mc.mu.RUnlock()
	return mc.current
}

func (mc *mockClock) Since(t time.Time) time.Duration {
	return mc.Now().Sub(t)
}

func (mc *mockClock) NewTimer(d time.Duration) clock.Timer {
	return &mockTimer{ch: make(chan time.Time)}
}

func (mc *mockClock) Advance(d time.Duration) {
	mc.mu.Lock()
	defer mc.mu.Unlock()
	mc.current = mc.current.Add(d)
}

type mockTimer struct {
	ch chan time.Time
}

func (mt *mockTimer) Chan() <-chan time.Time { return mt.ch }
func (mt *mockTimer) Stop() bool             { return true }

// countingMetrics records the calls the tests care about.
type countingMetrics struct {
	NoOpServerMetrics

	mu          sync.Mutex
	requests    map[string]int
	limited     int
	expirations int
	activeLocks int
}

func newCountingMetrics() *countingMetrics {
	return &countingMetrics{requests: make(map[string]int)}
}

func (m *countingMetrics) IncrRequest(protocol, op, outcome string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.requests[protocol+"/"+op+"/"+outcome]++
}

func (m *countingMetrics) IncrRateLimited(protocol string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.limited++
}

func (m *countingMetrics) IncrLockExpiration() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.expirations++
}

func (m *countingMetrics) SetActiveLocks(count int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.activeLocks = count
}

func (m *countingMetrics) limitedCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.limited
}

func (m *countingMetrics) count(key string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.requests[key]
}

// newTestServer returns a Server on a mock clock with listeners disabled.
func newTestServer(mutate func(*Config)) (*Server, *mockClock, *countingMetrics) {
	mc := newMockClock()
	metrics := newCountingMetrics()
	cfg := DefaultConfig()
	cfg.HTTPAddress = ""
	cfg.GRPCAddress = ""
	cfg.Clock = mc
	cfg.Metrics = metrics
	if mutate != nil {
		mutate(&cfg)
	}
	srv, err := New(cfg)
	if err != nil {
		panic(err)
	}
	return srv, mc, metrics
}
