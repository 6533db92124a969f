// Flights HTTP handler.
//
// GET /flights validates the route parameters, asks the FlightService for
// offers and wraps them with provenance metadata. Answers built from a live
// fetch or the fresh cache are publicly cacheable until the entry expires;
// stale answers are not cacheable.
package handlers

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/go-flight-scraper/internal/domain"
	"github.com/tbourn/go-flight-scraper/internal/http/middleware"
)

//
// DTOs
//

// FlightsQuery holds the raw query parameters of GET /flights.
type FlightsQuery struct {
	Origin        string `form:"origin" binding:"required"`
	Destination   string `form:"destination" binding:"required"`
	DepartureDate string `form:"departure_date" binding:"required"`
	ReturnDate    string `form:"return_date" binding:"required"`
}

// FlightsMetadata describes the route and where the offers came from.
type FlightsMetadata struct {
	Origin        string    `json:"origin" example:"JFK"`
	Destination   string    `json:"destination" example:"LAX"`
	DepartureDate string    `json:"departure_date" example:"2025-03-01"`
	ReturnDate    string    `json:"return_date" example:"2025-03-08"`
	TotalResults  int       `json:"total_results" example:"10"`
	Source        string    `json:"source" enums:"live,cache,stale" example:"live"`
	Strategy      string    `json:"strategy" enums:"embedded,pattern,regex,synthetic" example:"pattern"`
	Synthetic     bool      `json:"synthetic" example:"false"`
	CachedAt      time.Time `json:"cached_at" example:"2025-02-20T10:15:00Z"`
}

// FlightsResponse is the body of a successful GET /flights.
type FlightsResponse struct {
	Flights  []domain.FlightOffer `json:"flights"`
	Metadata FlightsMetadata      `json:"metadata"`
}

// GetFlights godoc
// @ID          getFlights
// @Summary     Search round-trip flight offers
// @Description Returns offers for a route, from the cache when fresh, otherwise from a live page fetch.
// @Description When the live fetch fails a previous result may be served; metadata.source is then "stale".
// @Description metadata.synthetic is true when no real offers could be extracted and placeholders were returned.
// @Tags        Flights
// @Produce     json
//
// @Param       origin          query  string  true  "Origin airport code"       example(JFK)
// @Param       destination     query  string  true  "Destination airport code"  example(LAX)
// @Param       departure_date  query  string  true  "Departure date (YYYY-MM-DD)"  format(date)
// @Param       return_date     query  string  true  "Return date (YYYY-MM-DD)"     format(date)
//
// @Success     200  {object}  handlers.FlightsResponse
// @Header      200  {string}  X-Flights-Source  "live, cache or stale"
// @Failure     400  {object}  handlers.ErrorResponse  "Invalid route query"
// @Failure     429  {object}  handlers.ErrorResponse  "Rate limited"
// @Failure     502  {object}  handlers.ErrorResponse  "No live or cached data"
// @Failure     500  {object}  handlers.ErrorResponse  "Internal error"
// @Router      /flights [get]
func (h *Handlers) GetFlights(c *gin.Context) {
	var in FlightsQuery
	if err := c.ShouldBindQuery(&in); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest,
			"origin, destination, departure_date and return_date are required")
		return
	}

	q, err := domain.NewRouteQuery(in.Origin, in.Destination, in.DepartureDate, in.ReturnDate)
	if err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, err.Error())
		return
	}

	res, err := h.flights.GetFlights(c.Request.Context(), q)
	if err != nil {
		var fe *domain.FetchError
		if errors.As(err, &fe) {
			fail(c, http.StatusBadGateway, ErrCodeFetchFailed,
				fmt.Sprintf("flight data unavailable: upstream status %d", fe.StatusCode))
			return
		}
		fail(c, http.StatusInternalServerError, ErrCodeInternal, err.Error())
		return
	}

	offers := res.Offers
	if offers == nil {
		offers = []domain.FlightOffer{}
	}

	c.Header(middleware.HeaderFlightsSource, string(res.Source))
	c.Header("Cache-Control", h.cacheControl(res))
	ok(c, http.StatusOK, FlightsResponse{
		Flights: offers,
		Metadata: FlightsMetadata{
			Origin:        q.Origin,
			Destination:   q.Destination,
			DepartureDate: q.DepartureDate.Format(domain.DateLayout),
			ReturnDate:    q.ReturnDate.Format(domain.DateLayout),
			TotalResults:  len(offers),
			Source:        string(res.Source),
			Strategy:      string(res.Strategy),
			Synthetic:     res.Synthetic(),
			CachedAt:      res.CachedAt.UTC(),
		},
	})
}

// cacheControl lets HTTP caches keep a fresh answer for the rest of its cache
// lifetime.
func (h *Handlers) cacheControl(res domain.Result) string {
	if res.Source == domain.SourceStale {
		return "no-cache"
	}
	left := res.CachedAt.Add(h.flights.ConfiguredTTL()).Sub(h.now())
	if left < time.Second {
		return "no-cache"
	}
	return "public, max-age=" + strconv.Itoa(int(left/time.Second))
}
