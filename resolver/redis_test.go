package resolver

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/jathurchan/locksmith/clock"
	"github.com/jathurchan/locksmith/testutil"
	redis "github.com/redis/go-redis/v9"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (f *fakeClock) Now() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.now
}

func (f *fakeClock) Since(t time.Time) time.Duration { return f.Now().Sub(t) }

func (f *fakeClock) NewTimer(d time.Duration) clock.Timer {
	return clock.NewStandardClock().NewTimer(d)
}

func (f *fakeClock) Advance(d time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.now = f.now.Add(d)
}

func newRedisRegistry(t *testing.T, opts ...RedisOption) (*Redis, *miniredis.Miniredis, *fakeClock) {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis run: %v", err)
	}
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() {
		_ = client.Close()
		mr.Close()
	})
	fc := &fakeClock{now: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)}
	opts = append([]RedisOption{WithRedisClock(fc)}, opts...)
	return NewRedis(client, opts...), mr, fc
}

func TestRedis_RegisterResolve(t *testing.T) {
	r, _, _ := newRedisRegistry(t)
	ctx := context.Background()

	_, err := r.Resolve(ctx, "locks")
	testutil.AssertErrorIs(t, err, ErrUnknownService)

	testutil.RequireNoError(t, r.Register(ctx, "locks", "http://a:8080", time.Minute))
	ep, err := r.Resolve(ctx, "locks")
	testutil.RequireNoError(t, err)
	testutil.AssertEqual(t, "http://a:8080", ep)

	testutil.RequireNoError(t, r.Register(ctx, "locks", "http://b:8080", time.Minute))
	seen := map[string]bool{}
	for range 50 {
		ep, err := r.Resolve(ctx, "locks")
		testutil.RequireNoError(t, err)
		seen[ep] = true
	}
	testutil.AssertEqual(t, map[string]bool{"http://a:8080": true, "http://b:8080": true}, seen)

	testutil.RequireNoError(t, r.Deregister(ctx, "locks", "http://a:8080"))
	eps, err := r.Endpoints(ctx, "locks")
	testutil.RequireNoError(t, err)
	testutil.AssertEqual(t, []string{"http://b:8080"}, eps)
}

func TestRedis_LapsedRegistrationsArePruned(t *testing.T) {
	r, mr, fc := newRedisRegistry(t, WithKeyPrefix("test:"))
	ctx := context.Background()

	testutil.RequireNoError(t, r.Register(ctx, "locks", "http://a", 10*time.Second))
	testutil.RequireNoError(t, r.Register(ctx, "locks", "http://b", 30*time.Second))

	fc.Advance(10 * time.Second)
	eps, err := r.Endpoints(ctx, "locks")
	testutil.RequireNoError(t, err)
	testutil.AssertEqual(t, []string{"http://b"}, eps)

	members, err := mr.ZMembers("test:locks")
	testutil.RequireNoError(t, err)
	testutil.AssertEqual(t, []string{"http://b"}, members, "lapsed member must be removed from the set")

	fc.Advance(time.Minute)
	_, err = r.Resolve(ctx, "locks")
	testutil.AssertErrorIs(t, err, ErrUnknownService)
}

func TestRedis_EmptyServiceName(t *testing.T) {
	r, _, _ := newRedisRegistry(t)
	_, err := r.Resolve(context.Background(), "")
	testutil.AssertErrorIs(t, err, ErrEmptyServiceName)
	testutil.AssertErrorIs(t, r.Register(context.Background(), "", "x", time.Second), ErrEmptyServiceName)
}

func TestRedis_BackendDown(t *testing.T) {
	r, mr, _ := newRedisRegistry(t)
	mr.Close()

	_, err := r.Resolve(context.Background(), "locks")
	testutil.AssertError(t, err)
}

func TestRedis_HeartbeatRegistersAndDeregisters(t *testing.T) {
	r, _, _ := newRedisRegistry(t)
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan struct{})
	go func() {
		defer close(done)
		r.Heartbeat(ctx, "locks", "http://a", 10*time.Millisecond)
	}()

	testutil.Eventually(t, func() bool {
		ep, err := r.Resolve(context.Background(), "locks")
		return err == nil && ep == "http://a"
	}, time.Second, 5*time.Millisecond)

	cancel()
	<-done

	_, err := r.Resolve(context.Background(), "locks")
	testutil.AssertErrorIs(t, err, ErrUnknownService)
}
