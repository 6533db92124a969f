package cache

import (
	"bytes"
	"context"
	"encoding/gob"
	"errors"
	"sync"
	"time"

	"github.com/syndtr/goleveldb/leveldb"
	"github.com/syndtr/goleveldb/leveldb/storage"
	"github.com/syndtr/goleveldb/leveldb/util"

	"github.com/tbourn/go-flight-scraper/internal/domain"
)

// LevelDB key layout.
const (
	ldbFreshPrefix = "f:"
	ldbStalePrefix = "s:"
	ldbLastWrite   = "m:last_write"
)

// ldbRecord is the gob value stored under a tier key.
type ldbRecord struct {
	Entry     domain.CacheEntry
	ExpiresAt int64 // unix nanoseconds
}

// LevelDBStore keeps both tiers in an embedded LevelDB. Expired records are
// deleted lazily when read.
type LevelDBStore struct {
	db  *leveldb.DB
	ttl time.Duration
	now Clock

	// mu serializes writers so a fresh put and its WriteMark land together.
	mu sync.Mutex
}

// OpenLevelDBStore opens (or creates) the database directory at path.
func OpenLevelDBStore(path string, ttl time.Duration) (*LevelDBStore, error) {
	db, err := leveldb.OpenFile(path, nil)
	if err != nil {
		return nil, err
	}
	return &LevelDBStore{db: db, ttl: ttl, now: utcNow}, nil
}

// NewLevelDBStore opens a store over an arbitrary storage, such as
// storage.NewMemStorage(). A nil clock means wall time.
func NewLevelDBStore(stor storage.Storage, ttl time.Duration, now Clock) (*LevelDBStore, error) {
	db, err := leveldb.Open(stor, nil)
	if err != nil {
		return nil, err
	}
	if now == nil {
		now = utcNow
	}
	return &LevelDBStore{db: db, ttl: ttl, now: now}, nil
}

func (l *LevelDBStore) get(prefix, key string) (domain.CacheEntry, bool, error) {
	k := []byte(prefix + key)
	b, err := l.db.Get(k, nil)
	if errors.Is(err, leveldb.ErrNotFound) {
		return domain.CacheEntry{}, false, nil
	}
	if err != nil {
		return domain.CacheEntry{}, false, err
	}
	var rec ldbRecord
	if err := decodeGob(b, &rec); err != nil {
		return domain.CacheEntry{}, false, err
	}
	if l.now().UnixNano() >= rec.ExpiresAt {
		l.mu.Lock()
		// Re-read under the lock so a concurrent rewrite is not lost.
		if cur, err := l.db.Get(k, nil); err == nil && bytes.Equal(cur, b) {
			_ = l.db.Delete(k, nil)
		}
		l.mu.Unlock()
		return domain.CacheEntry{}, false, nil
	}
	return rec.Entry, true, nil
}

func (l *LevelDBStore) encode(e domain.CacheEntry, ttl time.Duration, now time.Time) ([]byte, error) {
	if e.Key == "" {
		return nil, ErrEmptyKey
	}
	return encodeGob(ldbRecord{Entry: e, ExpiresAt: now.Add(ttl).UnixNano()})
}

// GetFresh returns the fresh record for key if it has not expired.
func (l *LevelDBStore) GetFresh(_ context.Context, key string) (domain.CacheEntry, bool, error) {
	return l.get(ldbFreshPrefix, key)
}

// GetStale returns the stale-shadow record for key if it has not expired.
func (l *LevelDBStore) GetStale(_ context.Context, key string) (domain.CacheEntry, bool, error) {
	return l.get(ldbStalePrefix, key)
}

// PutFresh writes the fresh record and the WriteMark in one batch.
func (l *LevelDBStore) PutFresh(_ context.Context, e domain.CacheEntry) error {
	now := l.now()
	b, err := l.encode(e, l.ttl, now)
	if err != nil {
		return err
	}
	mb, err := encodeGob(domain.WriteMark{Key: e.Key, At: now})
	if err != nil {
		return err
	}
	batch := new(leveldb.Batch)
	batch.Put([]byte(ldbFreshPrefix+e.Key), b)
	batch.Put([]byte(ldbLastWrite), mb)

	l.mu.Lock()
	defer l.mu.Unlock()
	return l.db.Write(batch, nil)
}

// PutStale writes the stale-shadow record.
func (l *LevelDBStore) PutStale(_ context.Context, e domain.CacheEntry) error {
	b, err := l.encode(e, staleTTL(l.ttl), l.now())
	if err != nil {
		return err
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.db.Put([]byte(ldbStalePrefix+e.Key), b, nil)
}

// LastWrite reads the WriteMark.
func (l *LevelDBStore) LastWrite(context.Context) (domain.WriteMark, bool, error) {
	b, err := l.db.Get([]byte(ldbLastWrite), nil)
	if errors.Is(err, leveldb.ErrNotFound) {
		return domain.WriteMark{}, false, nil
	}
	if err != nil {
		return domain.WriteMark{}, false, err
	}
	var mark domain.WriteMark
	if err := decodeGob(b, &mark); err != nil {
		return domain.WriteMark{}, false, err
	}
	return mark, true, nil
}

// TTL is the fresh-tier lifetime.
func (l *LevelDBStore) TTL() time.Duration { return l.ttl }

// Flush deletes every key owned by the store.
func (l *LevelDBStore) Flush(context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	batch := new(leveldb.Batch)
	for _, prefix := range []string{ldbFreshPrefix, ldbStalePrefix, "m:"} {
		it := l.db.NewIterator(util.BytesPrefix([]byte(prefix)), nil)
		for it.Next() {
			batch.Delete(append([]byte(nil), it.Key()...))
		}
		it.Release()
		if err := it.Error(); err != nil {
			return err
		}
	}
	return l.db.Write(batch, nil)
}

// Close closes the database.
func (l *LevelDBStore) Close() error { return l.db.Close() }

func encodeGob(v any) ([]byte, error) {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(v); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func decodeGob(b []byte, v any) error {
	return gob.NewDecoder(bytes.NewReader(b)).Decode(v)
}
