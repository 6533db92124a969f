package domain

import "time"

// Cache tiers as stored in CacheRecord.Tier.
const (
	TierFresh = "fresh"
	TierStale = "stale"
)

// CacheRecord is the persisted row backing one cache tier of one route key
// in the SQLite cache backend. Offers are stored as a JSON document.
//
// Fields:
//   - Key: route cache key (sha256 hex).
//   - Tier: "fresh" or "stale"; (Key, Tier) is the primary key.
//   - Payload: JSON-encoded []FlightOffer.
//   - Strategy: extractor strategy that produced the offers.
//   - WrittenAt: when the result was extracted.
//   - ExpiresAt: rows at or past this instant are never returned.
type CacheRecord struct {
	Key       string    `gorm:"type:char(64);primaryKey"`
	Tier      string    `gorm:"type:varchar(8);primaryKey;check:tier IN ('fresh','stale')"`
	Payload   string    `gorm:"type:text;not null"`
	Strategy  string    `gorm:"type:varchar(16);not null"`
	WrittenAt time.Time `gorm:"type:DATETIME NOT NULL"`
	ExpiresAt time.Time `gorm:"type:DATETIME NOT NULL;index"`
}

// TableName implements the GORM tabler interface.
func (CacheRecord) TableName() string { return "cache_entries" }

// CacheMeta is a named scalar of cache bookkeeping, such as the last write
// key and timestamp.
type CacheMeta struct {
	Name      string    `gorm:"type:varchar(64);primaryKey"`
	Value     string    `gorm:"type:text;not null"`
	UpdatedAt time.Time `gorm:"type:DATETIME NOT NULL"`
}

// TableName implements the GORM tabler interface.
func (CacheMeta) TableName() string { return "cache_meta" }
