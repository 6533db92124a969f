package repo

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	sqlite "github.com/glebarez/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/tbourn/go-flight-scraper/internal/domain"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := AutoMigrate(db); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}

func record(key, tier, payload string, at time.Time, ttl time.Duration) *domain.CacheRecord {
	return &domain.CacheRecord{
		Key: key, Tier: tier, Payload: payload, Strategy: string(domain.StrategyPattern),
		WrittenAt: at, ExpiresAt: at.Add(ttl),
	}
}

func TestCacheRecord_UpsertAndGet(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	now := time.Now().UTC()

	if err := UpsertCacheRecord(ctx, db, record("k", domain.TierFresh, `[1]`, now, time.Minute)); err != nil {
		t.Fatalf("first upsert: %v", err)
	}
	if err := UpsertCacheRecord(ctx, db, record("k", domain.TierFresh, `[2]`, now, time.Minute)); err != nil {
		t.Fatalf("second upsert: %v", err)
	}

	got, err := GetCacheRecord(ctx, db, "k", domain.TierFresh, now)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Payload != `[2]` {
		t.Fatalf("upsert should replace payload, got %q", got.Payload)
	}

	var cnt int64
	db.Model(&domain.CacheRecord{}).Count(&cnt)
	if cnt != 1 {
		t.Fatalf("expected a single row after upsert, got %d", cnt)
	}

	if _, err := GetCacheRecord(ctx, db, "k", domain.TierStale, now); !errors.Is(err, ErrNotFound) {
		t.Fatalf("other tier should be missing, got %v", err)
	}
}

func TestCacheRecord_ExpiredFilteredAndPurged(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	now := time.Now().UTC()

	_ = UpsertCacheRecord(ctx, db, record("old", domain.TierFresh, `[]`, now.Add(-2*time.Minute), time.Minute))
	_ = UpsertCacheRecord(ctx, db, record("new", domain.TierFresh, `[]`, now, time.Minute))

	if _, err := GetCacheRecord(ctx, db, "old", domain.TierFresh, now); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expired row must not be returned, got %v", err)
	}

	n, err := PurgeExpired(ctx, db, now)
	if err != nil || n != 1 {
		t.Fatalf("purge: n=%d err=%v", n, err)
	}
	if _, err := GetCacheRecord(ctx, db, "new", domain.TierFresh, now); err != nil {
		t.Fatalf("live row should survive purge: %v", err)
	}
}

func TestMeta_SetGetTruncate(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	now := time.Now().UTC()

	if _, err := GetMeta(ctx, db, "last_write_key"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if err := SetMeta(ctx, db, "last_write_key", "a", now); err != nil {
		t.Fatalf("set: %v", err)
	}
	if err := SetMeta(ctx, db, "last_write_key", "b", now); err != nil {
		t.Fatalf("overwrite: %v", err)
	}
	row, err := GetMeta(ctx, db, "last_write_key")
	if err != nil || row.Value != "b" {
		t.Fatalf("get: row=%+v err=%v", row, err)
	}

	_ = UpsertCacheRecord(ctx, db, record("k", domain.TierStale, `[]`, now, time.Hour))
	if err := Truncate(ctx, db); err != nil {
		t.Fatalf("truncate: %v", err)
	}
	if _, err := GetMeta(ctx, db, "last_write_key"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("meta should be gone after truncate, got %v", err)
	}
	if _, err := GetCacheRecord(ctx, db, "k", domain.TierStale, now); !errors.Is(err, ErrNotFound) {
		t.Fatalf("records should be gone after truncate, got %v", err)
	}
}
