package cache

import (
	"context"
	"sync"
	"time"

	"github.com/tbourn/go-flight-scraper/internal/domain"
)

// purgeEvery is how many writes pass between sweeps of expired entries.
const purgeEvery = 64

type memItem struct {
	entry   domain.CacheEntry
	expires time.Time
}

// MemoryStore keeps both tiers in process memory. It is the default backend
// and does not survive restarts.
type MemoryStore struct {
	ttl time.Duration
	now Clock

	mu     sync.RWMutex
	fresh  map[string]memItem
	stale  map[string]memItem
	mark   domain.WriteMark
	marked bool
	writes int
}

// NewMemoryStore returns an empty store. A nil clock means wall time.
func NewMemoryStore(ttl time.Duration, now Clock) *MemoryStore {
	if now == nil {
		now = utcNow
	}
	return &MemoryStore{
		ttl:   ttl,
		now:   now,
		fresh: make(map[string]memItem),
		stale: make(map[string]memItem),
	}
}

func (m *MemoryStore) get(stale bool, key string) (domain.CacheEntry, bool) {
	m.mu.RLock()
	tier := m.fresh
	if stale {
		tier = m.stale
	}
	it, ok := tier[key]
	m.mu.RUnlock()
	if !ok || !m.now().Before(it.expires) {
		return domain.CacheEntry{}, false
	}
	return it.entry, true
}

// GetFresh returns the fresh entry for key if it has not expired.
func (m *MemoryStore) GetFresh(_ context.Context, key string) (domain.CacheEntry, bool, error) {
	e, ok := m.get(false, key)
	return e, ok, nil
}

// GetStale returns the stale-shadow entry for key if it has not expired.
func (m *MemoryStore) GetStale(_ context.Context, key string) (domain.CacheEntry, bool, error) {
	e, ok := m.get(true, key)
	return e, ok, nil
}

// PutFresh stores e in the fresh tier and records it as the last write.
func (m *MemoryStore) PutFresh(_ context.Context, e domain.CacheEntry) error {
	if e.Key == "" {
		return ErrEmptyKey
	}
	now := m.now()
	m.mu.Lock()
	defer m.mu.Unlock()
	m.fresh[e.Key] = memItem{entry: e, expires: now.Add(m.ttl)}
	m.mark = domain.WriteMark{Key: e.Key, At: now}
	m.marked = true
	m.sweepLocked(now)
	return nil
}

// PutStale stores e in the stale tier.
func (m *MemoryStore) PutStale(_ context.Context, e domain.CacheEntry) error {
	if e.Key == "" {
		return ErrEmptyKey
	}
	now := m.now()
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stale[e.Key] = memItem{entry: e, expires: now.Add(staleTTL(m.ttl))}
	m.sweepLocked(now)
	return nil
}

// sweepLocked drops expired items every purgeEvery writes.
func (m *MemoryStore) sweepLocked(now time.Time) {
	m.writes++
	if m.writes%purgeEvery != 0 {
		return
	}
	for _, tier := range []map[string]memItem{m.fresh, m.stale} {
		for k, it := range tier {
			if !now.Before(it.expires) {
				delete(tier, k)
			}
		}
	}
}

// LastWrite reports the most recent fresh write.
func (m *MemoryStore) LastWrite(context.Context) (domain.WriteMark, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.mark, m.marked, nil
}

// TTL is the fresh-tier lifetime.
func (m *MemoryStore) TTL() time.Duration { return m.ttl }

// Flush empties both tiers and clears the WriteMark.
func (m *MemoryStore) Flush(context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	clear(m.fresh)
	clear(m.stale)
	m.mark = domain.WriteMark{}
	m.marked = false
	return nil
}

// Close is a no-op.
func (m *MemoryStore) Close() error { return nil }

// Len reports how many items each tier holds, expired ones included.
func (m *MemoryStore) Len() (fresh, stale int) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.fresh), len(m.stale)
}
