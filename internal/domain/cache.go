package domain

import "time"

// CacheEntry is the stored form of an extraction result for one route key.
// The same value is written to the fresh tier and to the stale-shadow tier.
type CacheEntry struct {
	Key       string        `json:"key"`
	Offers    []FlightOffer `json:"offers"`
	Strategy  Strategy      `json:"strategy"`
	WrittenAt time.Time     `json:"written_at"`
}

// WriteMark records the most recent successful fresh write across all keys.
type WriteMark struct {
	Key string    `json:"key"`
	At  time.Time `json:"at"`
}
