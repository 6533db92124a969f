package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/tbourn/go-flight-scraper/internal/domain"
	"github.com/tbourn/go-flight-scraper/internal/repo"
)

const (
	metaLastWriteKey = "last_write_key"
	metaLastWriteAt  = "last_write_at"
)

// SQLiteStore persists both tiers in the cache_entries table through GORM.
// Expired rows are filtered on read and purged on fresh writes.
type SQLiteStore struct {
	db  *gorm.DB
	ttl time.Duration
	now Clock
}

// OpenSQLiteStore opens the database at path and migrates the cache schema.
func OpenSQLiteStore(path string, ttl time.Duration) (*SQLiteStore, error) {
	db, err := repo.OpenSQLite(path)
	if err != nil {
		return nil, err
	}
	if err := repo.AutoMigrate(db); err != nil {
		if sqlDB, derr := db.DB(); derr == nil {
			_ = sqlDB.Close()
		}
		return nil, err
	}
	return NewSQLiteStore(db, ttl, nil), nil
}

// NewSQLiteStore wraps an already migrated database.
func NewSQLiteStore(db *gorm.DB, ttl time.Duration, now Clock) *SQLiteStore {
	if now == nil {
		now = utcNow
	}
	return &SQLiteStore{db: db, ttl: ttl, now: now}
}

func (s *SQLiteStore) get(ctx context.Context, key, tier string) (domain.CacheEntry, bool, error) {
	rec, err := repo.GetCacheRecord(ctx, s.db, key, tier, s.now())
	if errors.Is(err, repo.ErrNotFound) {
		return domain.CacheEntry{}, false, nil
	}
	if err != nil {
		return domain.CacheEntry{}, false, err
	}
	var offers []domain.FlightOffer
	if err := json.Unmarshal([]byte(rec.Payload), &offers); err != nil {
		return domain.CacheEntry{}, false, fmt.Errorf("decode %s entry %s: %w", tier, key, err)
	}
	return domain.CacheEntry{
		Key:       rec.Key,
		Offers:    offers,
		Strategy:  domain.Strategy(rec.Strategy),
		WrittenAt: rec.WrittenAt,
	}, true, nil
}

func (s *SQLiteStore) record(e domain.CacheEntry, tier string, ttl time.Duration, now time.Time) (*domain.CacheRecord, error) {
	if e.Key == "" {
		return nil, ErrEmptyKey
	}
	payload, err := json.Marshal(e.Offers)
	if err != nil {
		return nil, err
	}
	return &domain.CacheRecord{
		Key:       e.Key,
		Tier:      tier,
		Payload:   string(payload),
		Strategy:  string(e.Strategy),
		WrittenAt: e.WrittenAt.UTC(),
		ExpiresAt: now.Add(ttl),
	}, nil
}

// GetFresh returns the live fresh row for key.
func (s *SQLiteStore) GetFresh(ctx context.Context, key string) (domain.CacheEntry, bool, error) {
	return s.get(ctx, key, domain.TierFresh)
}

// GetStale returns the live stale-shadow row for key.
func (s *SQLiteStore) GetStale(ctx context.Context, key string) (domain.CacheEntry, bool, error) {
	return s.get(ctx, key, domain.TierStale)
}

// PutFresh upserts the fresh row and the WriteMark in one transaction, then
// purges expired rows.
func (s *SQLiteStore) PutFresh(ctx context.Context, e domain.CacheEntry) error {
	now := s.now()
	rec, err := s.record(e, domain.TierFresh, s.ttl, now)
	if err != nil {
		return err
	}
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := repo.UpsertCacheRecord(ctx, tx, rec); err != nil {
			return err
		}
		if err := repo.SetMeta(ctx, tx, metaLastWriteKey, e.Key, now); err != nil {
			return err
		}
		return repo.SetMeta(ctx, tx, metaLastWriteAt, now.Format(time.RFC3339Nano), now)
	})
	if err != nil {
		return err
	}
	_, err = repo.PurgeExpired(ctx, s.db, now)
	return err
}

// PutStale upserts the stale-shadow row.
func (s *SQLiteStore) PutStale(ctx context.Context, e domain.CacheEntry) error {
	rec, err := s.record(e, domain.TierStale, staleTTL(s.ttl), s.now())
	if err != nil {
		return err
	}
	return repo.UpsertCacheRecord(ctx, s.db, rec)
}

// LastWrite reads the WriteMark scalars.
func (s *SQLiteStore) LastWrite(ctx context.Context) (domain.WriteMark, bool, error) {
	key, err := repo.GetMeta(ctx, s.db, metaLastWriteKey)
	if errors.Is(err, repo.ErrNotFound) {
		return domain.WriteMark{}, false, nil
	}
	if err != nil {
		return domain.WriteMark{}, false, err
	}
	at, err := repo.GetMeta(ctx, s.db, metaLastWriteAt)
	if err != nil {
		return domain.WriteMark{}, false, err
	}
	ts, err := time.Parse(time.RFC3339Nano, at.Value)
	if err != nil {
		return domain.WriteMark{}, false, fmt.Errorf("decode %s: %w", metaLastWriteAt, err)
	}
	return domain.WriteMark{Key: key.Value, At: ts}, true, nil
}

// TTL is the fresh-tier lifetime.
func (s *SQLiteStore) TTL() time.Duration { return s.ttl }

// Flush deletes every cache row and scalar.
func (s *SQLiteStore) Flush(ctx context.Context) error { return repo.Truncate(ctx, s.db) }

// Close closes the underlying connection pool.
func (s *SQLiteStore) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
