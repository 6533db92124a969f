package extract

import (
	"fmt"
	"hash/fnv"
	"time"

	"github.com/tbourn/go-flight-scraper/internal/domain"
)

const (
	minutesPerDay = 24 * 60

	minPrice = 30
	maxPrice = 2000

	// Durations outside (minDuration, maxDuration) are discarded as noise.
	minDuration = 30
	maxDuration = 2000

	// Durations derived from a departure/arrival pair are trusted only
	// inside (minDuration, maxPairDuration); otherwise defaultDuration.
	maxPairDuration = 300
	defaultDuration = 75

	maxPatternOffers = 10
	maxRegexOffers   = 5
)

// syntheticDepartures is the deterministic departure schedule used whenever an
// offer has no recoverable departure time. Offer i uses entry i mod len.
var syntheticDepartures = []clock{
	6 * 60, 7*60 + 30, 9*60 + 15, 10*60 + 45, 12*60 + 30,
	14 * 60, 15*60 + 45, 17*60 + 30, 19*60 + 15, 21 * 60,
}

// clock is a time of day in minutes after midnight.
type clock int

func newClock(h, m int) (clock, bool) {
	if h < 0 || h > 23 || m < 0 || m > 59 {
		return 0, false
	}
	return clock(h*60 + m), true
}

func (c clock) String() string {
	return fmt.Sprintf("%02d:%02d", int(c)/60, int(c)%60)
}

func syntheticDeparture(i int) clock {
	return syntheticDepartures[i%len(syntheticDepartures)]
}

// arrivalFrom adds a flight length in [70, 80] minutes to dep, wrapping past
// midnight. The length is derived from dep and the offer index so the same
// input always yields the same arrival.
func arrivalFrom(dep clock, i int) clock {
	h := fnv.New32a()
	fmt.Fprintf(h, "%s#%d", dep, i)
	length := 70 + int(h.Sum32()%11)
	return clock((int(dep) + length) % minutesPerDay)
}

// pairDuration returns arr-dep in minutes, treating a negative span as an
// overnight flight. Spans outside (30, 300) fall back to 75.
func pairDuration(dep, arr clock) int {
	d := int(arr) - int(dep)
	if d < 0 {
		d += minutesPerDay
	}
	if d <= minDuration || d >= maxPairDuration {
		return defaultDuration
	}
	return d
}

// timestamp renders an ISO-8601 local datetime for t on day. When t is
// earlier in the day than ref, the date rolls over to the next day.
func timestamp(day time.Time, t, ref clock) string {
	if t < ref {
		day = day.AddDate(0, 0, 1)
	}
	return day.Format(domain.DateLayout) + "T" + t.String() + ":00"
}

func inPriceBand(p int) bool { return p >= minPrice && p <= maxPrice }

func plausibleDuration(d int) bool { return d > minDuration && d < maxDuration }

// legSpec carries the per-offer values each strategy recovers before the
// shared offer construction.
type legSpec struct {
	price    int
	dep      clock
	arr      clock
	duration *int
	stops    int
	carrier  domain.Carrier
}

func (t *Tables) place(code string) domain.Place {
	return domain.Place{Code: code, City: t.City(code)}
}

func carrierOf(a Airline) domain.Carrier {
	code, name := a.Code, a.Name
	return domain.Carrier{Code: &code, Name: &name}
}

// offer builds the normalized value object for one leg of q.
func (t *Tables) offer(q domain.RouteQuery, l legSpec) domain.FlightOffer {
	dep := timestamp(q.DepartureDate, l.dep, l.dep)
	arr := timestamp(q.DepartureDate, l.arr, l.dep)

	dur := l.duration
	if dur != nil && !plausibleDuration(*dur) {
		dur = nil
	}
	stops := l.stops
	if stops < 0 {
		stops = 0
	}

	return domain.FlightOffer{
		Price:            l.price,
		Currency:         domain.CurrencyUSD,
		Origin:           t.place(q.Origin),
		Destination:      t.place(q.Destination),
		DepartureTime:    &dep,
		ArrivalTime:      &arr,
		DurationMinutes:  dur,
		Stops:            stops,
		FlightNumber:     nil,
		MarketingCarrier: l.carrier,
		OperatingCarrier: l.carrier,
	}
}

func intPtr(v int) *int { return &v }
