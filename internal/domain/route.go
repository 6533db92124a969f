// Package domain defines the core value types shared by the extractor, the
// cache store, the orchestrator, and the HTTP layer: route queries, flight
// offers, cache entries, and the error taxonomy surfaced to callers.
package domain

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"time"
)

// DateLayout is the calendar-date layout used for query dates, cache keys,
// and the date portion of offer timestamps.
const DateLayout = "2006-01-02"

// RouteQuery identifies a round-trip search. It is immutable once built and
// fully determines the cache key.
//
// Fields:
//   - Origin / Destination: three-letter uppercase airport codes.
//   - DepartureDate / ReturnDate: calendar dates (UTC midnight), with
//     ReturnDate never before DepartureDate.
type RouteQuery struct {
	Origin        string
	Destination   string
	DepartureDate time.Time
	ReturnDate    time.Time
}

// NewRouteQuery validates and normalizes raw request values into a RouteQuery.
// Codes are trimmed and upper-cased; dates must use the YYYY-MM-DD layout.
func NewRouteQuery(origin, destination, departure, ret string) (RouteQuery, error) {
	o := strings.ToUpper(strings.TrimSpace(origin))
	d := strings.ToUpper(strings.TrimSpace(destination))
	if !isAirportCode(o) || !isAirportCode(d) {
		return RouteQuery{}, ErrInvalidAirportCode
	}

	dep, err := time.Parse(DateLayout, strings.TrimSpace(departure))
	if err != nil {
		return RouteQuery{}, ErrInvalidDate
	}
	back, err := time.Parse(DateLayout, strings.TrimSpace(ret))
	if err != nil {
		return RouteQuery{}, ErrInvalidDate
	}
	if back.Before(dep) {
		return RouteQuery{}, ErrReturnBeforeDeparture
	}

	return RouteQuery{Origin: o, Destination: d, DepartureDate: dep, ReturnDate: back}, nil
}

// CacheKey returns the lowercase hex SHA-256 of
// "{origin}_{destination}_{departureDate}_{returnDate}".
func (q RouteQuery) CacheKey() string {
	raw := q.Origin + "_" + q.Destination + "_" +
		q.DepartureDate.Format(DateLayout) + "_" + q.ReturnDate.Format(DateLayout)
	sum := sha256.Sum256([]byte(raw))
	return hex.EncodeToString(sum[:])
}

// String renders the query for logs, e.g. "JFK-LAX 2025-03-01/2025-03-08".
func (q RouteQuery) String() string {
	return q.Origin + "-" + q.Destination + " " +
		q.DepartureDate.Format(DateLayout) + "/" + q.ReturnDate.Format(DateLayout)
}

func isAirportCode(s string) bool {
	if len(s) != 3 {
		return false
	}
	for i := 0; i < len(s); i++ {
		if s[i] < 'A' || s[i] > 'Z' {
			return false
		}
	}
	return true
}
