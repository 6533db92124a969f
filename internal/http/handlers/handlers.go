package handlers

import (
	"context"
	"time"

	"github.com/tbourn/go-flight-scraper/internal/domain"
)

// FlightService is the application service behind the flights and status
// endpoints. Implementations must be safe for concurrent use and honor ctx.
type FlightService interface {
	// GetFlights returns offers for q, live or cached.
	GetFlights(ctx context.Context, q domain.RouteQuery) (domain.Result, error)
	// LastWriteTimestamp reports the most recent successful fresh write.
	LastWriteTimestamp(ctx context.Context) (domain.WriteMark, bool, error)
	// ConfiguredTTL is the lifetime of a fresh cache entry.
	ConfiguredTTL() time.Duration
}

// Handlers groups the HTTP endpoints of the API.
type Handlers struct {
	flights      FlightService
	cacheBackend string
	now          func() time.Time
}

// New returns Handlers bound to svc. cacheBackend is reported by the status
// endpoint.
func New(svc FlightService, cacheBackend string) *Handlers {
	return &Handlers{flights: svc, cacheBackend: cacheBackend, now: time.Now}
}
