package services

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/tbourn/go-flight-scraper/internal/cache"
	"github.com/tbourn/go-flight-scraper/internal/domain"
	"github.com/tbourn/go-flight-scraper/internal/extract"
)

// ---------- test helpers ----------

const testTTL = time.Minute

type fakeFetcher struct {
	calls atomic.Int32
	body  string
	err   error

	// gate, when set, blocks Fetch until it is closed or ctx ends.
	gate chan struct{}
}

func (f *fakeFetcher) Fetch(ctx context.Context, _ domain.RouteQuery) (string, error) {
	f.calls.Add(1)
	if f.gate != nil {
		select {
		case <-f.gate:
		case <-ctx.Done():
			return "", domain.NewFetchError(http.StatusGatewayTimeout, ctx.Err())
		}
	}
	if f.err != nil {
		return "", f.err
	}
	return f.body, nil
}

type fakeExtractor struct {
	offers   []domain.FlightOffer
	strategy domain.Strategy
}

func (f fakeExtractor) Extract(string, domain.RouteQuery) ([]domain.FlightOffer, domain.Strategy) {
	return f.offers, f.strategy
}

// failingStore accepts reads but rejects every write.
type failingStore struct{ cache.Store }

func (failingStore) PutFresh(context.Context, domain.CacheEntry) error {
	return errors.New("disk full")
}

func (failingStore) PutStale(context.Context, domain.CacheEntry) error {
	return errors.New("disk full")
}

type clock struct {
	mu sync.Mutex
	t  time.Time
}

func newClock() *clock { return &clock{t: time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)} }

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

func offers(prices ...int) []domain.FlightOffer {
	out := make([]domain.FlightOffer, len(prices))
	for i, p := range prices {
		out[i] = domain.FlightOffer{
			Price:       p,
			Currency:    domain.CurrencyUSD,
			Origin:      domain.Place{Code: "JFK", City: "New York"},
			Destination: domain.Place{Code: "LAX", City: "Los Angeles"},
		}
	}
	return out
}

func route(t *testing.T) domain.RouteQuery {
	t.Helper()
	q, err := domain.NewRouteQuery("JFK", "LAX", "2025-03-01", "2025-03-08")
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	return q
}

func newSvc(f *fakeFetcher, clk *clock) (*FlightService, *cache.MemoryStore) {
	store := cache.NewMemoryStore(testTTL, clk.Now)
	return &FlightService{
		Fetcher:      f,
		Extractor:    fakeExtractor{offers: offers(129, 149), strategy: domain.StrategyPattern},
		Store:        store,
		FetchTimeout: 5 * time.Second,
		Now:          clk.Now,
	}, store
}

func fetchStatus(t *testing.T, err error) int {
	t.Helper()
	var fe *domain.FetchError
	if !errors.As(err, &fe) {
		t.Fatalf("expected *domain.FetchError, got %T: %v", err, err)
	}
	return fe.StatusCode
}

// ---------- tests ----------

func TestGetFlights_LiveThenCached(t *testing.T) {
	f := &fakeFetcher{body: "<html></html>"}
	svc, _ := newSvc(f, newClock())
	q := route(t)

	first, err := svc.GetFlights(context.Background(), q)
	if err != nil {
		t.Fatalf("first: %v", err)
	}
	if first.Source != domain.SourceLive || first.Strategy != domain.StrategyPattern || len(first.Offers) != 2 {
		t.Fatalf("unexpected first result: %+v", first)
	}
	if first.Key != q.CacheKey() {
		t.Fatalf("key = %q; want %q", first.Key, q.CacheKey())
	}

	second, err := svc.GetFlights(context.Background(), q)
	if err != nil {
		t.Fatalf("second: %v", err)
	}
	if second.Source != domain.SourceCache {
		t.Fatalf("source = %q; want cache", second.Source)
	}
	if !second.CachedAt.Equal(first.CachedAt) || second.Offers[0].Price != 129 {
		t.Fatalf("cached result differs: %+v vs %+v", second, first)
	}
	if n := f.calls.Load(); n != 1 {
		t.Fatalf("fetch calls = %d; want 1", n)
	}
}

func TestGetFlights_RecordsWriteMark(t *testing.T) {
	clk := newClock()
	svc, _ := newSvc(&fakeFetcher{}, clk)
	q := route(t)

	if _, ok, _ := svc.LastWriteTimestamp(context.Background()); ok {
		t.Fatalf("expected no write mark before the first fetch")
	}
	if _, err := svc.GetFlights(context.Background(), q); err != nil {
		t.Fatalf("GetFlights: %v", err)
	}
	mark, ok, err := svc.LastWriteTimestamp(context.Background())
	if err != nil || !ok {
		t.Fatalf("LastWriteTimestamp: ok=%v err=%v", ok, err)
	}
	if mark.Key != q.CacheKey() || !mark.At.Equal(clk.Now()) {
		t.Fatalf("unexpected mark %+v", mark)
	}
	if svc.ConfiguredTTL() != testTTL {
		t.Fatalf("ConfiguredTTL = %v", svc.ConfiguredTTL())
	}
}

func TestGetFlights_RefetchesAfterTTL(t *testing.T) {
	clk := newClock()
	f := &fakeFetcher{}
	svc, _ := newSvc(f, clk)
	q := route(t)

	if _, err := svc.GetFlights(context.Background(), q); err != nil {
		t.Fatalf("first: %v", err)
	}
	clk.Advance(testTTL + time.Second)

	res, err := svc.GetFlights(context.Background(), q)
	if err != nil {
		t.Fatalf("second: %v", err)
	}
	if res.Source != domain.SourceLive || f.calls.Load() != 2 {
		t.Fatalf("expected a second live fetch; source=%q calls=%d", res.Source, f.calls.Load())
	}
}

func TestGetFlights_FallsBackToStale(t *testing.T) {
	clk := newClock()
	f := &fakeFetcher{}
	svc, _ := newSvc(f, clk)
	q := route(t)

	live, err := svc.GetFlights(context.Background(), q)
	if err != nil {
		t.Fatalf("prime: %v", err)
	}

	// fresh has expired, stale has not
	clk.Advance(testTTL + time.Second)
	f.err = domain.NewFetchError(http.StatusServiceUnavailable, nil)

	before := testutil.ToFloat64(staleServed)
	res, err := svc.GetFlights(context.Background(), q)
	if err != nil {
		t.Fatalf("expected stale fallback, got %v", err)
	}
	if res.Source != domain.SourceStale {
		t.Fatalf("source = %q; want stale", res.Source)
	}
	if !res.CachedAt.Equal(live.CachedAt) {
		t.Fatalf("stale entry should keep its original timestamp")
	}
	if got := testutil.ToFloat64(staleServed) - before; got != 1 {
		t.Fatalf("stale fallbacks delta = %v; want 1", got)
	}
}

func TestGetFlights_NoDataReturnsFetchError(t *testing.T) {
	clk := newClock()
	f := &fakeFetcher{err: domain.NewFetchError(http.StatusForbidden, nil)}
	svc, _ := newSvc(f, clk)

	before := testutil.ToFloat64(fetches.WithLabelValues("403"))
	_, err := svc.GetFlights(context.Background(), route(t))
	if got := fetchStatus(t, err); got != http.StatusForbidden {
		t.Fatalf("status = %d; want 403", got)
	}
	if got := testutil.ToFloat64(fetches.WithLabelValues("403")) - before; got != 1 {
		t.Fatalf("fetch outcome delta = %v; want 1", got)
	}
}

func TestGetFlights_StaleExpiresToo(t *testing.T) {
	clk := newClock()
	f := &fakeFetcher{}
	svc, _ := newSvc(f, clk)
	q := route(t)

	if _, err := svc.GetFlights(context.Background(), q); err != nil {
		t.Fatalf("prime: %v", err)
	}
	clk.Advance(2*testTTL + time.Second)
	f.err = errors.New("connection reset")

	_, err := svc.GetFlights(context.Background(), q)
	if got := fetchStatus(t, err); got != http.StatusBadGateway {
		t.Fatalf("status = %d; want 502 for a plain error", got)
	}
}

func TestGetFlights_CoalescesConcurrentCallers(t *testing.T) {
	f := &fakeFetcher{gate: make(chan struct{})}
	svc, _ := newSvc(f, newClock())
	q := route(t)

	const callers = 8
	before := testutil.ToFloat64(coalesced)

	var wg sync.WaitGroup
	results := make([]domain.Result, callers)
	errs := make([]error, callers)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], errs[i] = svc.GetFlights(context.Background(), q)
		}(i)
	}

	deadline := time.Now().Add(2 * time.Second)
	for f.calls.Load() == 0 && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}
	time.Sleep(20 * time.Millisecond)
	close(f.gate)
	wg.Wait()

	if n := f.calls.Load(); n != 1 {
		t.Fatalf("fetch calls = %d; want 1", n)
	}
	for i := range results {
		if errs[i] != nil {
			t.Fatalf("caller %d: %v", i, errs[i])
		}
		if !results[i].CachedAt.Equal(results[0].CachedAt) || len(results[i].Offers) != 2 {
			t.Fatalf("caller %d saw a different result: %+v", i, results[i])
		}
	}
	if got := testutil.ToFloat64(coalesced) - before; got < 1 {
		t.Fatalf("expected coalesced waiters, delta = %v", got)
	}
}

func TestGetFlights_CallerTimeoutServesStaleAndFlightCompletes(t *testing.T) {
	clk := newClock()
	f := &fakeFetcher{gate: make(chan struct{})}
	svc, store := newSvc(f, clk)
	q := route(t)

	old := domain.CacheEntry{Key: q.CacheKey(), Offers: offers(99), Strategy: domain.StrategyRegex, WrittenAt: clk.Now()}
	if err := store.PutStale(context.Background(), old); err != nil {
		t.Fatalf("seed stale: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()

	res, err := svc.GetFlights(ctx, q)
	if err != nil {
		t.Fatalf("expected stale answer, got %v", err)
	}
	if res.Source != domain.SourceStale || res.Offers[0].Price != 99 {
		t.Fatalf("unexpected result %+v", res)
	}

	// The abandoned flight keeps running and fills the fresh tier.
	close(f.gate)
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if e, ok, _ := store.GetFresh(context.Background(), q.CacheKey()); ok {
			if e.Strategy != domain.StrategyPattern {
				t.Fatalf("fresh strategy = %q", e.Strategy)
			}
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("detached fetch never wrote the fresh tier")
}

func TestGetFlights_CallerTimeoutWithoutStaleIs504(t *testing.T) {
	f := &fakeFetcher{gate: make(chan struct{})}
	defer close(f.gate)
	svc, _ := newSvc(f, newClock())

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := svc.GetFlights(ctx, route(t))
	if got := fetchStatus(t, err); got != http.StatusGatewayTimeout {
		t.Fatalf("status = %d; want 504", got)
	}
}

func TestGetFlights_FetchTimeoutBoundsFlight(t *testing.T) {
	f := &fakeFetcher{gate: make(chan struct{})}
	defer close(f.gate)
	svc, _ := newSvc(f, newClock())
	svc.FetchTimeout = 20 * time.Millisecond

	_, err := svc.GetFlights(context.Background(), route(t))
	if got := fetchStatus(t, err); got != http.StatusGatewayTimeout {
		t.Fatalf("status = %d; want 504", got)
	}
}

func TestGetFlights_WriteErrorsDoNotFailRequest(t *testing.T) {
	clk := newClock()
	svc, store := newSvc(&fakeFetcher{}, clk)
	svc.Store = failingStore{Store: store}

	res, err := svc.GetFlights(context.Background(), route(t))
	if err != nil {
		t.Fatalf("GetFlights: %v", err)
	}
	if res.Source != domain.SourceLive {
		t.Fatalf("source = %q; want live", res.Source)
	}
	if fresh, stale := store.Len(); fresh != 0 || stale != 0 {
		t.Fatalf("nothing should be stored, got fresh=%d stale=%d", fresh, stale)
	}
}

func TestGetFlights_RealExtractorSyntheticOnEmptyPage(t *testing.T) {
	clk := newClock()
	svc, _ := newSvc(&fakeFetcher{body: "<html><body>no results</body></html>"}, clk)
	svc.Extractor = extract.New(nil)

	before := testutil.ToFloat64(extractions.WithLabelValues(string(domain.StrategySynthetic)))
	res, err := svc.GetFlights(context.Background(), route(t))
	if err != nil {
		t.Fatalf("GetFlights: %v", err)
	}
	if !res.Synthetic() || len(res.Offers) != 10 {
		t.Fatalf("expected 10 synthetic offers, got %d (%s)", len(res.Offers), res.Strategy)
	}
	if got := testutil.ToFloat64(extractions.WithLabelValues(string(domain.StrategySynthetic))) - before; got != 1 {
		t.Fatalf("synthetic extraction delta = %v; want 1", got)
	}
}

func TestGetFlights_NotConfigured(t *testing.T) {
	var svc FlightService
	if _, err := svc.GetFlights(context.Background(), route(t)); !errors.Is(err, ErrNotConfigured) {
		t.Fatalf("expected ErrNotConfigured, got %v", err)
	}
	if _, _, err := svc.LastWriteTimestamp(context.Background()); !errors.Is(err, ErrNotConfigured) {
		t.Fatalf("expected ErrNotConfigured, got %v", err)
	}
}
