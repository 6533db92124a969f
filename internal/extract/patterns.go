package extract

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/tbourn/go-flight-scraper/internal/domain"
)

var (
	// "$129", "$ 1,249", "USD 310"; cents are ignored.
	priceRE = regexp.MustCompile(`(?:\$|\bUSD\s?)\s?(\d{1,3}(?:,\d{3})+|\d+)(?:\.\d{2})?`)
	timeRE  = regexp.MustCompile(`\b(\d{1,2}):(\d{2})\b`)
	// "2h 15m", "11h5m".
	durationRE = regexp.MustCompile(`\b(\d{1,2})h\s?(\d{1,2})m\b`)
	stopsRE    = regexp.MustCompile(`(?i)\b(?:non-?stop|(\d)\s+stops?)\b`)
)

// signals are the tokens recovered from raw page text.
type signals struct {
	prices    []int
	times     []clock
	durations []int
	airlines  []Airline
	stops     []int
}

func scanPrices(text string) []int {
	var out []int
	seen := map[int]struct{}{}
	for _, sm := range priceRE.FindAllStringSubmatch(text, -1) {
		p, err := strconv.Atoi(strings.ReplaceAll(sm[1], ",", ""))
		if err != nil || !inPriceBand(p) {
			continue
		}
		if _, dup := seen[p]; dup {
			continue
		}
		seen[p] = struct{}{}
		out = append(out, p)
	}
	return out
}

func scanTimes(text string) []clock {
	var out []clock
	seen := map[clock]struct{}{}
	for _, sm := range timeRE.FindAllStringSubmatch(text, -1) {
		h, _ := strconv.Atoi(sm[1])
		m, _ := strconv.Atoi(sm[2])
		c, ok := newClock(h, m)
		if !ok {
			continue
		}
		if _, dup := seen[c]; dup {
			continue
		}
		seen[c] = struct{}{}
		out = append(out, c)
	}
	return out
}

func scanDurations(text string) []int {
	var out []int
	for _, sm := range durationRE.FindAllStringSubmatch(text, -1) {
		h, _ := strconv.Atoi(sm[1])
		m, _ := strconv.Atoi(sm[2])
		if d := h*60 + m; plausibleDuration(d) {
			out = append(out, d)
		}
	}
	return out
}

func scanStops(text string) []int {
	var out []int
	for _, sm := range stopsRE.FindAllStringSubmatch(text, -1) {
		if sm[1] == "" {
			out = append(out, 0)
			continue
		}
		n, _ := strconv.Atoi(sm[1])
		out = append(out, n)
	}
	return out
}

func (e *Extractor) scan(text string) signals {
	return signals{
		prices:    scanPrices(text),
		times:     scanTimes(text),
		durations: scanDurations(text),
		airlines:  e.tables.ScanAirlines(text),
		stops:     scanStops(text),
	}
}

// pattern pairs the i-th price with the (2i, 2i+1)-th time tokens, the i-th
// duration and stop tokens, and airline i mod n. It needs at least one price
// and some schedule signal (a time or a duration); pages that only show
// prices are left to the regex strategy.
func (e *Extractor) pattern(p *page, q domain.RouteQuery) []domain.FlightOffer {
	sig := e.scan(p.raw)
	if len(sig.prices) == 0 || (len(sig.times) == 0 && len(sig.durations) == 0) {
		return nil
	}

	n := len(sig.prices)
	if n > maxPatternOffers {
		n = maxPatternOffers
	}
	offers := make([]domain.FlightOffer, 0, n)
	for i := 0; i < n; i++ {
		var dep, arr clock
		switch {
		case 2*i+1 < len(sig.times):
			dep, arr = sig.times[2*i], sig.times[2*i+1]
		case 2*i < len(sig.times):
			dep = sig.times[2*i]
			arr = arrivalFrom(dep, i)
		default:
			dep = syntheticDeparture(i)
			arr = arrivalFrom(dep, i)
		}

		duration := pairDuration(dep, arr)
		if i < len(sig.durations) && sig.durations[i] < maxPairDuration {
			duration = sig.durations[i]
		}

		carrier := carrierOf(DefaultCarrier)
		if len(sig.airlines) > 0 {
			carrier = carrierOf(sig.airlines[i%len(sig.airlines)])
		}

		stops := 0
		if i < len(sig.stops) {
			stops = sig.stops[i]
		}

		offers = append(offers, e.tables.offer(q, legSpec{
			price:    sig.prices[i],
			dep:      dep,
			arr:      arr,
			duration: intPtr(duration),
			stops:    stops,
			carrier:  carrier,
		}))
	}
	return offers
}

// regex is the minimal fallback: prices only, synthetic schedule, default
// carrier, nonstop.
func (e *Extractor) regex(p *page, q domain.RouteQuery) []domain.FlightOffer {
	prices := scanPrices(p.raw)
	if len(prices) > maxRegexOffers {
		prices = prices[:maxRegexOffers]
	}
	offers := make([]domain.FlightOffer, 0, len(prices))
	for i, price := range prices {
		dep := syntheticDeparture(i)
		arr := arrivalFrom(dep, i)
		offers = append(offers, e.tables.offer(q, legSpec{
			price:    price,
			dep:      dep,
			arr:      arr,
			duration: intPtr(pairDuration(dep, arr)),
			carrier:  carrierOf(DefaultCarrier),
		}))
	}
	return offers
}
