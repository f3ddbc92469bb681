package lock

import (
	"context"
	"sync"
	"time"
)

type lease struct {
	holder  string
	expires time.Time
}

// MemoryStore holds leases for in-process lockers. It stands in for the shared
// store in tests and in single-instance deployments where no redis is
// configured.
type MemoryStore struct {
	mu     sync.Mutex
	leases map[string]lease
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{leases: make(map[string]lease)}
}

// Locker returns a Locker bound to this store with the given holder marker.
func (s *MemoryStore) Locker(marker string) *MemoryLocker {
	return &MemoryLocker{store: s, marker: marker}
}

// MemoryLocker implements the same contract as RedisLocker against a
// MemoryStore: acquire-if-absent, ownership-checked renew, unconditional
// release.
type MemoryLocker struct {
	store  *MemoryStore
	marker string
}

func (l *MemoryLocker) Acquire(_ context.Context, key string, ttl time.Duration) (bool, error) {
	s := l.store
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now()
	if cur, ok := s.leases[key]; ok && cur.expires.After(now) {
		return false, nil
	}
	s.leases[key] = lease{holder: l.marker, expires: now.Add(ttl)}
	return true, nil
}

func (l *MemoryLocker) Renew(_ context.Context, key string, ttl time.Duration) (bool, error) {
	s := l.store
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now()
	cur, ok := s.leases[key]
	if !ok || !cur.expires.After(now) || cur.holder != l.marker {
		return false, nil
	}
	s.leases[key] = lease{holder: l.marker, expires: now.Add(ttl)}
	return true, nil
}

func (l *MemoryLocker) Release(_ context.Context, key string) error {
	s := l.store
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.leases, key)
	return nil
}
