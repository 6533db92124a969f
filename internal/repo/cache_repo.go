package repo

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/tbourn/go-flight-scraper/internal/domain"
)

// ErrNotFound is returned when no live row matches.
var ErrNotFound = gorm.ErrRecordNotFound

// GetCacheRecord returns the non-expired row for (key, tier) or ErrNotFound.
func GetCacheRecord(ctx context.Context, db *gorm.DB, key, tier string, now time.Time) (*domain.CacheRecord, error) {
	var rec domain.CacheRecord
	err := db.WithContext(ctx).
		Where("key = ? AND tier = ? AND expires_at > ?", key, tier, now).
		First(&rec).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

// UpsertCacheRecord inserts rec or replaces the existing row for its
// (key, tier).
func UpsertCacheRecord(ctx context.Context, db *gorm.DB, rec *domain.CacheRecord) error {
	return db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "key"}, {Name: "tier"}},
			DoUpdates: clause.AssignmentColumns([]string{"payload", "strategy", "written_at", "expires_at"}),
		}).
		Create(rec).Error
}

// PurgeExpired deletes every row whose expiry is at or before now and
// returns how many were removed.
func PurgeExpired(ctx context.Context, db *gorm.DB, now time.Time) (int64, error) {
	res := db.WithContext(ctx).Where("expires_at <= ?", now).Delete(&domain.CacheRecord{})
	return res.RowsAffected, res.Error
}

// SetMeta stores a named scalar.
func SetMeta(ctx context.Context, db *gorm.DB, name, value string, now time.Time) error {
	row := &domain.CacheMeta{Name: name, Value: value, UpdatedAt: now}
	return db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "name"}},
			DoUpdates: clause.AssignmentColumns([]string{"value", "updated_at"}),
		}).
		Create(row).Error
}

// GetMeta returns a named scalar or ErrNotFound.
func GetMeta(ctx context.Context, db *gorm.DB, name string) (*domain.CacheMeta, error) {
	var row domain.CacheMeta
	err := db.WithContext(ctx).Where("name = ?", name).First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &row, nil
}

// Truncate removes all cache rows and scalars in one transaction.
func Truncate(ctx context.Context, db *gorm.DB) error {
	return db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Session(&gorm.Session{AllowGlobalUpdate: true}).Delete(&domain.CacheRecord{}).Error; err != nil {
			return err
		}
		return tx.Session(&gorm.Session{AllowGlobalUpdate: true}).Delete(&domain.CacheMeta{}).Error
	})
}
