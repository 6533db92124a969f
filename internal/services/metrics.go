package services

import "github.com/prometheus/client_golang/prometheus"

// Label values for cacheLookups.
const (
	tierFresh = "fresh"
	tierStale = "stale"

	resultHit   = "hit"
	resultMiss  = "miss"
	resultError = "error"
)

var (
	// cacheLookups counts store reads by tier and result.
	cacheLookups = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "flights_cache_lookups_total",
			Help: "Cache store lookups by tier (fresh|stale) and result (hit|miss|error).",
		},
		[]string{"tier", "result"},
	)

	// fetches counts upstream page fetches by outcome: "ok" or the upstream
	// status code reported by the FetchError.
	fetches = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "flights_fetch_total",
			Help: "Upstream page fetches by outcome.",
		},
		[]string{"outcome"},
	)

	// fetchLatency records how long fetches take. Rendering services are slow,
	// so buckets reach past a minute.
	fetchLatency = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "flights_fetch_duration_seconds",
			Help:    "Duration of upstream page fetches in seconds.",
			Buckets: []float64{0.5, 1, 2, 5, 10, 20, 30, 45, 60, 90},
		},
	)

	// extractions counts which cascade strategy produced each live result.
	extractions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "flights_extractions_total",
			Help: "Live extractions by winning strategy.",
		},
		[]string{"strategy"},
	)

	// coalesced counts callers that joined an in-flight fetch instead of
	// starting their own.
	coalesced = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "flights_coalesced_requests_total",
			Help: "Requests that shared another request's in-flight fetch.",
		},
	)

	// staleServed counts failures answered from the stale-shadow tier.
	staleServed = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "flights_stale_fallbacks_total",
			Help: "Responses served from the stale tier after a failed fetch.",
		},
	)
)

func init() {
	prometheus.MustRegister(cacheLookups, fetches, fetchLatency, extractions, coalesced, staleServed)
}
