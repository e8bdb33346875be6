package server

import (
	"container/heap"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jathurchan/locksmith/clock"
	"github.com/jathurchan/locksmith/logger"
)

// Lock is a snapshot of one live lock held in the Store.
type Lock struct {
	ID         string        `json:"id"`
	Resource   string        `json:"resource"`
	TTL        time.Duration `json:"-"`
	AcquiredAt time.Time     `json:"acquired_at"`
	ExpiresAt  time.Time     `json:"expires_at"`
}

type lockEntry struct {
	Lock
	expiry *expirationItem
}

// Store is an in-memory, TTL-enforcing lock table. At most one live lock exists
// per resource. A lock whose TTL has elapsed is treated as absent by every
// operation, whether or not the sweeper has removed it yet.
type Store struct {
	mu         sync.Mutex
	byID       map[string]*lockEntry
	byResource map[string]*lockEntry
	expiries   expirationHeap

	clock   clock.Clock
	logger  logger.Logger
	metrics ServerMetrics
	newID   func() string
}

// NewStore returns an empty Store.
func NewStore(c clock.Clock, log logger.Logger, metrics ServerMetrics) *Store {
	if c == nil {
		c = clock.NewStandardClock()
	}
	if log == nil {
		log = logger.NewNoOpLogger()
	}
	if metrics == nil {
		metrics = NewNoOpServerMetrics()
	}
	return &Store{
		byID:       make(map[string]*lockEntry),
		byResource: make(map[string]*lockEntry),
		clock:      c,
		logger:     log.WithComponent("store"),
		metrics:    metrics,
		newID:      uuid.NewString,
	}
}

// Create locks resource for ttl and returns the new lock.
// Returns ErrLockHeld if a live lock already exists for resource.
func (s *Store) Create(resource string, ttl time.Duration) (Lock, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.clock.Now()
	if e, ok := s.byResource[resource]; ok {
		if now.Before(e.ExpiresAt) {
			return Lock{}, ErrLockHeld
		}
		s.expireLocked(e)
	}

	e := &lockEntry{Lock: Lock{
		ID:         s.newID(),
		Resource:   resource,
		TTL:        ttl,
		AcquiredAt: now,
		ExpiresAt:  now.Add(ttl),
	}}
	e.expiry = &expirationItem{lockID: e.ID, expiresAt: e.ExpiresAt}
	heap.Push(&s.expiries, e.expiry)
	s.byID[e.ID] = e
	s.byResource[resource] = e
	s.metrics.SetActiveLocks(len(s.byID))

	s.logger.Debugw("lock created", "resource", resource, "lock_id", e.ID, "ttl", ttl)
	return e.Lock, nil
}

// Renew extends a live lock by its original TTL, measured from now.
// Returns ErrLockNotFound for unknown or expired locks.
func (s *Store) Renew(lockID string) (Lock, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, err := s.liveLocked(lockID)
	if err != nil {
		return Lock{}, err
	}
	e.ExpiresAt = s.clock.Now().Add(e.TTL)
	e.expiry.expiresAt = e.ExpiresAt
	heap.Fix(&s.expiries, e.expiry.index)

	s.logger.Debugw("lock renewed", "resource", e.Resource, "lock_id", lockID)
	return e.Lock, nil
}

// Delete removes a live lock. Returns ErrLockNotFound for unknown or expired locks.
func (s *Store) Delete(lockID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, err := s.liveLocked(lockID)
	if err != nil {
		return err
	}
	s.removeLocked(e)
	s.logger.Debugw("lock deleted", "resource", e.Resource, "lock_id", lockID)
	return nil
}

// Exists reports whether a live lock is held on resource.
func (s *Store) Exists(resource string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.byResource[resource]
	if !ok {
		return false
	}
	if !s.clock.Now().Before(e.ExpiresAt) {
		s.expireLocked(e)
		return false
	}
	return true
}

// Get returns the live lock with the given id.
func (s *Store) Get(lockID string) (Lock, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, err := s.liveLocked(lockID)
	if err != nil {
		return Lock{}, err
	}
	return e.Lock, nil
}

// Len returns the number of tracked locks, including expired ones not yet swept.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.byID)
}

// Tick removes every lock whose TTL has elapsed and returns how many were removed.
func (s *Store) Tick() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.clock.Now()
	removed := 0
	for {
		item := s.expiries.peek()
		if item == nil || now.Before(item.expiresAt) {
			break
		}
		e, ok := s.byID[item.lockID]
		if !ok {
			heap.Pop(&s.expiries)
			continue
		}
		s.expireLocked(e)
		removed++
	}
	return removed
}

func (s *Store) liveLocked(lockID string) (*lockEntry, error) {
	e, ok := s.byID[lockID]
	if !ok {
		return nil, ErrLockNotFound
	}
	if !s.clock.Now().Before(e.ExpiresAt) {
		s.expireLocked(e)
		return nil, ErrLockNotFound
	}
	return e, nil
}

func (s *Store) expireLocked(e *lockEntry) {
	s.removeLocked(e)
	s.metrics.IncrLockExpiration()
	s.logger.Infow("lock expired", "resource", e.Resource, "lock_id", e.ID)
}

func (s *Store) removeLocked(e *lockEntry) {
	if e.expiry.index >= 0 {
		heap.Remove(&s.expiries, e.expiry.index)
	}
	delete(s.byID, e.ID)
	if cur, ok := s.byResource[e.Resource]; ok && cur == e {
		delete(s.byResource, e.Resource)
	}
	s.metrics.SetActiveLocks(len(s.byID))
}
