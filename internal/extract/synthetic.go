package extract

import "github.com/tbourn/go-flight-scraper/internal/domain"

const (
	syntheticOffers    = 10
	syntheticBasePrice = 99
	syntheticPriceStep = 20
)

var (
	syntheticStops    = []int{0, 0, 0, 0, 0, 1, 1, 1, 2, 2}
	syntheticCarriers = []string{"AA", "DL", "UA", "WN", "B6"}
)

// synthetic produces a fixed ladder of placeholder offers so the cascade
// always has an answer. Results carry StrategySynthetic and are flagged as
// such in API metadata.
func (e *Extractor) synthetic(_ *page, q domain.RouteQuery) []domain.FlightOffer {
	offers := make([]domain.FlightOffer, 0, syntheticOffers)
	for i := 0; i < syntheticOffers; i++ {
		dep := syntheticDeparture(i)
		arr := arrivalFrom(dep, i)

		code := syntheticCarriers[i%len(syntheticCarriers)]
		a, ok := e.tables.AirlineByCode(code)
		if !ok {
			a = Airline{Code: code, Name: code}
		}

		offers = append(offers, e.tables.offer(q, legSpec{
			price:    syntheticBasePrice + syntheticPriceStep*i,
			dep:      dep,
			arr:      arr,
			duration: intPtr(pairDuration(dep, arr)),
			stops:    syntheticStops[i%len(syntheticStops)],
			carrier:  carrierOf(a),
		}))
	}
	return offers
}
