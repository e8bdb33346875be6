package server

import (
	"fmt"
	"testing"
	"time"

	"github.com/jathurchan/locksmith/testutil"
)

func newTestStore() (*Store, *mockClock, *countingMetrics) {
	mc := newMockClock()
	metrics := newCountingMetrics()
	return NewStore(mc, nil, metrics), mc, metrics
}

func TestStore_CreateAndConflict(t *testing.T) {
	s, mc, metrics := newTestStore()

	lock, err := s.Create("orders", 30*time.Second)
	testutil.RequireNoError(t, err)
	testutil.AssertNotEqual(t, "", lock.ID)
	testutil.AssertEqual(t, "orders", lock.Resource)
	testutil.AssertEqual(t, mc.Now().Add(30*time.Second), lock.ExpiresAt)
	testutil.AssertEqual(t, 1, metrics.activeLocks)

	_, err = s.Create("orders", 30*time.Second)
	testutil.AssertErrorIs(t, err, ErrLockHeld)

	other, err := s.Create("payments", 30*time.Second)
	testutil.RequireNoError(t, err)
	testutil.AssertNotEqual(t, lock.ID, other.ID)
	testutil.AssertEqual(t, 2, s.Len())
}

func TestStore_ExpiredLockIsAbsent(t *testing.T) {
	s, mc, metrics := newTestStore()

	lock, err := s.Create("orders", 10*time.Second)
	testutil.RequireNoError(t, err)

	mc.Advance(9 * time.Second)
	testutil.AssertTrue(t, s.Exists("orders"))

	mc.Advance(time.Second)
	testutil.AssertFalse(t, s.Exists("orders"))
	testutil.AssertEqual(t, 1, metrics.expirations)

	_, err = s.Renew(lock.ID)
	testutil.AssertErrorIs(t, err, ErrLockNotFound)

	_, err = s.Create("orders", 10*time.Second)
	testutil.AssertNoError(t, err, "an expired lock must not block a new one")
}

func TestStore_CreateReplacesExpiredLock(t *testing.T) {
	s, mc, _ := newTestStore()

	old, err := s.Create("orders", 5*time.Second)
	testutil.RequireNoError(t, err)
	mc.Advance(6 * time.Second)

	fresh, err := s.Create("orders", 5*time.Second)
	testutil.RequireNoError(t, err)
	testutil.AssertNotEqual(t, old.ID, fresh.ID)

	testutil.AssertErrorIs(t, s.Delete(old.ID), ErrLockNotFound)
	testutil.AssertNoError(t, s.Delete(fresh.ID))
	testutil.AssertEqual(t, 0, s.Len())
}

func TestStore_RenewExtendsFromNow(t *testing.T) {
	s, mc, _ := newTestStore()

	lock, err := s.Create("orders", 10*time.Second)
	testutil.RequireNoError(t, err)

	mc.Advance(8 * time.Second)
	renewed, err := s.Renew(lock.ID)
	testutil.RequireNoError(t, err)
	testutil.AssertEqual(t, mc.Now().Add(10*time.Second), renewed.ExpiresAt)

	mc.Advance(8 * time.Second)
	testutil.AssertTrue(t, s.Exists("orders"), "renewed lock expired early")

	got, err := s.Get(lock.ID)
	testutil.RequireNoError(t, err)
	testutil.AssertEqual(t, renewed.ExpiresAt, got.ExpiresAt)
}

func TestStore_DeleteUnknown(t *testing.T) {
	s, _, _ := newTestStore()
	testutil.AssertErrorIs(t, s.Delete("missing"), ErrLockNotFound)
	_, err := s.Renew("missing")
	testutil.AssertErrorIs(t, err, ErrLockNotFound)
	_, err = s.Get("missing")
	testutil.AssertErrorIs(t, err, ErrLockNotFound)
}

func TestStore_TickRemovesOnlyExpired(t *testing.T) {
	s, mc, metrics := newTestStore()

	for i, ttl := range []time.Duration{5 * time.Second, 10 * time.Second, 15 * time.Second} {
		_, err := s.Create(fmt.Sprintf("r%d", i), ttl)
		testutil.RequireNoError(t, err)
	}

	testutil.AssertEqual(t, 0, s.Tick())

	mc.Advance(10 * time.Second)
	testutil.AssertEqual(t, 2, s.Tick())
	testutil.AssertEqual(t, 1, s.Len())
	testutil.AssertEqual(t, 2, metrics.expirations)
	testutil.AssertTrue(t, s.Exists("r2"))

	mc.Advance(time.Hour)
	testutil.AssertEqual(t, 1, s.Tick())
	testutil.AssertEqual(t, 0, s.Len())
	testutil.AssertEqual(t, 0, metrics.activeLocks)
}

func TestStore_TickAfterRenewKeepsHeapOrder(t *testing.T) {
	s, mc, _ := newTestStore()

	a, err := s.Create("a", 5*time.Second)
	testutil.RequireNoError(t, err)
	_, err = s.Create("b", 10*time.Second)
	testutil.RequireNoError(t, err)

	mc.Advance(4 * time.Second)
	_, err = s.Renew(a.ID)
	testutil.RequireNoError(t, err)

	mc.Advance(6 * time.Second)
	testutil.AssertEqual(t, 1, s.Tick())
	testutil.AssertTrue(t, s.Exists("a"))
	testutil.AssertFalse(t, s.Exists("b"))
}
