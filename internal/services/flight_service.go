// Package services – FlightService
//
// This file implements FlightService, the orchestrator behind the flights
// endpoint. A request is answered from the fresh cache tier when possible;
// otherwise one live fetch per route key is started and every concurrent
// caller for the same key waits on it. A failed fetch, or a caller that runs
// out of time, falls back to the stale-shadow tier.
//
// The live fetch runs detached from the caller that started it and is bounded
// only by FetchTimeout, so a slow page that finishes after its first caller
// gave up still populates the cache for the next one.
//
// Observability: GetFlights is OpenTelemetry-instrumented and every decision
// (cache hit, coalesced wait, fetch outcome, stale fallback) is counted in
// Prometheus.

package services

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"

	"github.com/tbourn/go-flight-scraper/internal/cache"
	"github.com/tbourn/go-flight-scraper/internal/domain"

	// OpenTelemetry
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// DefaultFetchTimeout bounds a live fetch when FetchTimeout is unset.
const DefaultFetchTimeout = 90 * time.Second

// PageFetcher retrieves the rendered search page for a route.
type PageFetcher interface {
	Fetch(ctx context.Context, q domain.RouteQuery) (string, error)
}

// OfferExtractor turns page markup into offers. It never fails.
type OfferExtractor interface {
	Extract(markup string, q domain.RouteQuery) ([]domain.FlightOffer, domain.Strategy)
}

// FlightService coordinates cache lookups, live fetches and extraction.
// It must not be copied after first use.
type FlightService struct {
	Fetcher   PageFetcher
	Extractor OfferExtractor
	Store     cache.Store

	// FetchTimeout bounds one live fetch, independent of any caller.
	FetchTimeout time.Duration

	Log zerolog.Logger

	// Now stamps new cache entries; defaults to time.Now in UTC.
	Now func() time.Time

	flights singleflight.Group
}

// GetFlights returns offers for q. The Source of the result tells whether it
// was served from the fresh tier, a live fetch or the stale tier. When no
// data can be produced the error is a *domain.FetchError.
func (s *FlightService) GetFlights(ctx context.Context, q domain.RouteQuery) (domain.Result, error) {
	if s.Fetcher == nil || s.Extractor == nil || s.Store == nil {
		return domain.Result{}, ErrNotConfigured
	}

	tr := otel.Tracer("services/FlightService")
	ctx, span := tr.Start(ctx, "GetFlights",
		trace.WithAttributes(
			attribute.String("route", q.String()),
		),
	)
	defer span.End()

	key := q.CacheKey()
	log := s.Log.With().Str("route", q.String()).Logger()

	if res, ok := s.lookup(ctx, key, tierFresh); ok {
		span.SetAttributes(attribute.String("result.source", string(res.Source)))
		log.Debug().Msg("served from cache")
		return res, nil
	}

	leader := false
	ch := s.flights.DoChan(key, func() (any, error) {
		leader = true
		return s.refresh(ctx, q, key)
	})

	var fetchErr error
	select {
	case r := <-ch:
		if !leader {
			coalesced.Inc()
		}
		if r.Err == nil {
			res := r.Val.(domain.Result)
			span.SetAttributes(
				attribute.String("result.source", string(res.Source)),
				attribute.String("result.strategy", string(res.Strategy)),
			)
			return res, nil
		}
		fetchErr = r.Err
	case <-ctx.Done():
		fetchErr = callerTimeout(ctx.Err())
		log.Warn().Err(ctx.Err()).Msg("gave up waiting for live fetch")
	}

	// The caller's context may already be done here; the stale read must
	// still happen.
	if res, ok := s.lookup(context.WithoutCancel(ctx), key, tierStale); ok {
		staleServed.Inc()
		span.SetAttributes(attribute.String("result.source", string(res.Source)))
		log.Warn().Err(fetchErr).Time("cached_at", res.CachedAt).Msg("serving stale flights")
		return res, nil
	}

	span.RecordError(fetchErr)
	span.SetStatus(codes.Error, fetchErr.Error())
	log.Error().Err(fetchErr).Msg("no flight data available")
	return domain.Result{}, asFetchError(fetchErr)
}

// refresh is the body of a single flight. It runs on a context detached from
// the caller that started it.
func (s *FlightService) refresh(parent context.Context, q domain.RouteQuery, key string) (domain.Result, error) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(parent), s.fetchTimeout())
	defer cancel()

	// Another flight for this key may have finished between our fresh
	// lookup and joining the group.
	if res, ok := s.lookup(ctx, key, tierFresh); ok {
		return res, nil
	}

	start := time.Now()
	body, err := s.Fetcher.Fetch(ctx, q)
	fetchLatency.Observe(time.Since(start).Seconds())
	if err != nil {
		fe := asFetchError(err)
		fetches.WithLabelValues(strconv.Itoa(fe.StatusCode)).Inc()
		return domain.Result{}, fe
	}
	fetches.WithLabelValues("ok").Inc()

	offers, strategy := s.Extractor.Extract(body, q)
	extractions.WithLabelValues(string(strategy)).Inc()

	entry := domain.CacheEntry{
		Key:       key,
		Offers:    offers,
		Strategy:  strategy,
		WrittenAt: s.now(),
	}
	log := s.Log.With().Str("route", q.String()).Logger()
	if err := s.Store.PutFresh(ctx, entry); err != nil {
		log.Error().Err(err).Msg("cache write failed (fresh)")
	}
	if err := s.Store.PutStale(ctx, entry); err != nil {
		log.Error().Err(err).Msg("cache write failed (stale)")
	}

	log.Debug().
		Str("strategy", string(strategy)).
		Int("offers", len(offers)).
		Dur("elapsed", time.Since(start)).
		Msg("flights extracted")

	return domain.Result{
		Key:      key,
		Offers:   offers,
		Strategy: strategy,
		Source:   domain.SourceLive,
		CachedAt: entry.WrittenAt,
	}, nil
}

// lookup reads one cache tier. Store errors count as a miss.
func (s *FlightService) lookup(ctx context.Context, key, tier string) (domain.Result, bool) {
	get, source := s.Store.GetFresh, domain.SourceCache
	if tier == tierStale {
		get, source = s.Store.GetStale, domain.SourceStale
	}

	e, ok, err := get(ctx, key)
	switch {
	case err != nil:
		cacheLookups.WithLabelValues(tier, resultError).Inc()
		s.Log.Warn().Err(err).Str("tier", tier).Msg("cache read failed")
		return domain.Result{}, false
	case !ok:
		cacheLookups.WithLabelValues(tier, resultMiss).Inc()
		return domain.Result{}, false
	}
	cacheLookups.WithLabelValues(tier, resultHit).Inc()
	return domain.Result{
		Key:      e.Key,
		Offers:   e.Offers,
		Strategy: e.Strategy,
		Source:   source,
		CachedAt: e.WrittenAt,
	}, true
}

// LastWriteTimestamp reports the most recent successful fresh write.
func (s *FlightService) LastWriteTimestamp(ctx context.Context) (domain.WriteMark, bool, error) {
	if s.Store == nil {
		return domain.WriteMark{}, false, ErrNotConfigured
	}
	return s.Store.LastWrite(ctx)
}

// ConfiguredTTL is the lifetime of the fresh tier.
func (s *FlightService) ConfiguredTTL() time.Duration {
	if s.Store == nil {
		return 0
	}
	return s.Store.TTL()
}

func (s *FlightService) fetchTimeout() time.Duration {
	if s.FetchTimeout > 0 {
		return s.FetchTimeout
	}
	return DefaultFetchTimeout
}

func (s *FlightService) now() time.Time {
	if s.Now != nil {
		return s.Now().UTC()
	}
	return time.Now().UTC()
}

func callerTimeout(err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return domain.NewFetchError(http.StatusGatewayTimeout, err)
	}
	return domain.NewFetchError(http.StatusBadGateway, err)
}

func asFetchError(err error) *domain.FetchError {
	var fe *domain.FetchError
	if errors.As(err, &fe) {
		return fe
	}
	return domain.NewFetchError(http.StatusBadGateway, err)
}
