// Package cache implements the two-tier result cache used by the flight
// service.
//
// Every successful extraction is written twice: to the fresh tier, which
// lives for the configured TTL and answers normal lookups, and to the stale
// tier, which lives for twice the TTL and is only consulted when a live fetch
// fails. A fresh write also records the process-wide WriteMark.
//
// Four interchangeable backends are provided: in-memory, SQLite (GORM),
// LevelDB and Valkey. All of them never return expired entries.
package cache

import (
	"context"
	"errors"
	"time"

	"github.com/tbourn/go-flight-scraper/internal/domain"
)

// Store is the cache contract consumed by the service layer. Implementations
// are safe for concurrent use and linearizable per key.
type Store interface {
	GetFresh(ctx context.Context, key string) (domain.CacheEntry, bool, error)
	// PutFresh writes the fresh tier and updates the WriteMark.
	PutFresh(ctx context.Context, e domain.CacheEntry) error
	GetStale(ctx context.Context, key string) (domain.CacheEntry, bool, error)
	PutStale(ctx context.Context, e domain.CacheEntry) error
	LastWrite(ctx context.Context) (domain.WriteMark, bool, error)
	TTL() time.Duration
	// Flush drops every entry and the WriteMark.
	Flush(ctx context.Context) error
	Close() error
}

// ErrEmptyKey is returned by writes of an entry without a key.
var ErrEmptyKey = errors.New("cache: empty key")

// staleFactor is how much longer the stale tier outlives the fresh tier.
const staleFactor = 2

func staleTTL(ttl time.Duration) time.Duration { return staleFactor * ttl }

// Clock returns the current time. Backends take one so tests can move time.
type Clock func() time.Time

func utcNow() time.Time { return time.Now().UTC() }

var (
	_ Store = (*MemoryStore)(nil)
	_ Store = (*SQLiteStore)(nil)
	_ Store = (*LevelDBStore)(nil)
	_ Store = (*ValkeyStore)(nil)
)
