package client

import (
	"context"
	"fmt"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/jathurchan/locksmith/resolver"
	"github.com/jathurchan/locksmith/server"
	"github.com/jathurchan/locksmith/transport"
)

// testBackoff keeps the production shape (1.3^min(n,15)) in milliseconds.
var testBackoff = BackoffPolicy{Factor: defaultBackoffFactor, UpperBound: defaultBackoffUpperBound, Unit: 10 * time.Millisecond}

const mockEndpoint = "mock://locksmith"

// mockService is a scriptable transport.Service that counts its calls.
type mockService struct {
	mu       sync.Mutex
	calls    map[string]int
	lockIDs  map[string][]string
	ttls     []time.Duration
	createFn func(ctx context.Context, resourceID string, ttl time.Duration) (string, error)
	renewFn  func(ctx context.Context, lockID string) error
	deleteFn func(ctx context.Context, lockID string) error
	existsFn func(ctx context.Context, resourceID string) (bool, error)
}

func newMockService() *mockService {
	return &mockService{
		calls:   make(map[string]int),
		lockIDs: make(map[string][]string),
	}
}

func (m *mockService) record(op, lockID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls[op]++
	if lockID != "" {
		m.lockIDs[op] = append(m.lockIDs[op], lockID)
	}
}

func (m *mockService) count(op string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls[op]
}

func (m *mockService) total() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, c := range m.calls {
		n += c
	}
	return n
}

func (m *mockService) idsFor(op string) []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.lockIDs[op]...)
}

func (m *mockService) Create(ctx context.Context, endpoint, resourceID string, ttl time.Duration) (string, error) {
	m.record(transport.OpCreate, "")
	m.mu.Lock()
	m.ttls = append(m.ttls, ttl)
	fn := m.createFn
	n := m.calls[transport.OpCreate]
	m.mu.Unlock()
	if fn != nil {
		return fn(ctx, resourceID, ttl)
	}
	return fmt.Sprintf("lock-%d", n), nil
}

func (m *mockService) Renew(ctx context.Context, endpoint, lockID string) error {
	m.record(transport.OpRenew, lockID)
	if m.renewFn != nil {
		return m.renewFn(ctx, lockID)
	}
	return nil
}

func (m *mockService) Delete(ctx context.Context, endpoint, lockID string) error {
	m.record(transport.OpDelete, lockID)
	if m.deleteFn != nil {
		return m.deleteFn(ctx, lockID)
	}
	return nil
}

func (m *mockService) Exists(ctx context.Context, endpoint, resourceID string) (bool, error) {
	m.record(transport.OpExists, "")
	if m.existsFn != nil {
		return m.existsFn(ctx, resourceID)
	}
	return false, nil
}

// alwaysConflict makes every create report the resource as held.
func alwaysConflict(context.Context, string, time.Duration) (string, error) {
	return "", transport.ErrConflict
}

// countingMetrics records handle events.
type countingMetrics struct {
	NoOpMetrics

	mu     sync.Mutex
	counts map[string]int
}

func newCountingMetrics() *countingMetrics {
	return &countingMetrics{counts: make(map[string]int)}
}

func (m *countingMetrics) incr(key string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.counts[key]++
}

func (m *countingMetrics) count(key string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.counts[key]
}

func (m *countingMetrics) IncrAttempt()                  { m.incr("attempt") }
func (m *countingMetrics) IncrConflict()                 { m.incr("conflict") }
func (m *countingMetrics) ObserveAcquired(time.Duration) { m.incr("acquired") }
func (m *countingMetrics) IncrTimeout()                  { m.incr("timeout") }
func (m *countingMetrics) IncrCanceled()                 { m.incr("canceled") }
func (m *countingMetrics) IncrRenewal(ok bool)           { m.incr("renewal/" + resultLabel(ok)) }
func (m *countingMetrics) IncrFree(ok bool)              { m.incr("free/" + resultLabel(ok)) }
func (m *countingMetrics) IncrFailure(op string)         { m.incr("failure/" + op) }

// newMockFactory returns a Factory talking to svc with millisecond backoff.
func newMockFactory(t *testing.T, svc transport.Service, mutate func(*Config)) *Factory {
	t.Helper()
	cfg := DefaultConfig()
	cfg.Transport = svc
	cfg.Backoff = testBackoff
	cfg.RequestTimeout = time.Second
	if mutate != nil {
		mutate(&cfg)
	}
	f, err := NewFactory(resolver.Fixed(mockEndpoint), cfg)
	if err != nil {
		t.Fatalf("NewFactory: %v", err)
	}
	return f
}

// newLockService starts the in-memory lock service behind an httptest server.
func newLockService(t *testing.T) (*server.Server, string) {
	t.Helper()
	cfg := server.DefaultConfig()
	cfg.HTTPAddress = ""
	cfg.GRPCAddress = ""
	srv, err := server.New(cfg)
	if err != nil {
		t.Fatalf("server.New: %v", err)
	}
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)
	return srv, ts.URL
}

// newHTTPFactory returns a Factory using the HTTP transport against baseURL.
func newHTTPFactory(t *testing.T, baseURL string) *Factory {
	t.Helper()
	f, err := NewFactoryBuilder(resolver.Fixed(baseURL)).
		WithBackoff(testBackoff).
		WithRequestTimeout(2 * time.Second).
		Build()
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	return f
}

// lockAsync runs Lock in a goroutine and delivers its result.
func lockAsync(ctx context.Context, h *Handle) <-chan error {
	ch := make(chan error, 1)
	go func() { ch <- h.Lock(ctx) }()
	return ch
}

func waitErr(t *testing.T, ch <-chan error, within time.Duration) error {
	t.Helper()
	select {
	case err := <-ch:
		return err
	case <-time.After(within):
		t.Fatalf("Lock did not return within %v", within)
		return nil
	}
}
