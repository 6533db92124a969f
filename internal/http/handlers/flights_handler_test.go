package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/go-flight-scraper/internal/domain"
	"github.com/tbourn/go-flight-scraper/internal/http/middleware"
)

// ---------- fakes ----------

type fakeFlightSvc struct {
	res  domain.Result
	err  error
	got  domain.RouteQuery
	call int

	mark    domain.WriteMark
	marked  bool
	markErr error
	ttl     time.Duration
}

func (f *fakeFlightSvc) GetFlights(_ context.Context, q domain.RouteQuery) (domain.Result, error) {
	f.call++
	f.got = q
	return f.res, f.err
}

func (f *fakeFlightSvc) LastWriteTimestamp(context.Context) (domain.WriteMark, bool, error) {
	return f.mark, f.marked, f.markErr
}

func (f *fakeFlightSvc) ConfiguredTTL() time.Duration { return f.ttl }

var testNow = time.Date(2025, 2, 20, 10, 20, 0, 0, time.UTC)

func newTestRouter(svc FlightService) *gin.Engine {
	gin.SetMode(gin.TestMode)
	h := New(svc, "memory")
	h.now = func() time.Time { return testNow }

	r := gin.New()
	r.Use(middleware.RequestID())
	r.GET("/flights", h.GetFlights)
	r.GET("/status", h.Status)
	return r
}

func get(r *gin.Engine, target string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, target, nil))
	return w
}

func decodeErr(t *testing.T, w *httptest.ResponseRecorder) ErrorResponse {
	t.Helper()
	var er ErrorResponse
	if err := json.Unmarshal(w.Body.Bytes(), &er); err != nil {
		t.Fatalf("decode error body: %v (%s)", err, w.Body.String())
	}
	return er
}

func sampleOffer(price int) domain.FlightOffer {
	return domain.FlightOffer{
		Price:       price,
		Currency:    domain.CurrencyUSD,
		Origin:      domain.Place{Code: "JFK", City: "New York"},
		Destination: domain.Place{Code: "LAX", City: "Los Angeles"},
	}
}

const validQuery = "/flights?origin=jfk&destination=LAX&departure_date=2025-03-01&return_date=2025-03-08"

// ---------- tests ----------

func TestGetFlights_OK(t *testing.T) {
	cachedAt := testNow.Add(-4 * time.Minute)
	svc := &fakeFlightSvc{
		ttl: 10 * time.Minute,
		res: domain.Result{
			Offers:   []domain.FlightOffer{sampleOffer(129), sampleOffer(149)},
			Strategy: domain.StrategyEmbedded,
			Source:   domain.SourceCache,
			CachedAt: cachedAt,
		},
	}
	w := get(newTestRouter(svc), validQuery)

	if w.Code != http.StatusOK {
		t.Fatalf("status=%d body=%s", w.Code, w.Body.String())
	}
	if svc.got.Origin != "JFK" || svc.got.Destination != "LAX" {
		t.Fatalf("service got %+v", svc.got)
	}

	var body FlightsResponse
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("json: %v", err)
	}
	md := body.Metadata
	if len(body.Flights) != 2 || md.TotalResults != 2 || body.Flights[1].Price != 149 {
		t.Fatalf("unexpected flights: %+v", body)
	}
	if md.Origin != "JFK" || md.DepartureDate != "2025-03-01" || md.ReturnDate != "2025-03-08" {
		t.Fatalf("unexpected route metadata: %+v", md)
	}
	if md.Source != "cache" || md.Strategy != "embedded" || md.Synthetic || !md.CachedAt.Equal(cachedAt) {
		t.Fatalf("unexpected provenance: %+v", md)
	}
	if got := w.Header().Get(middleware.HeaderFlightsSource); got != "cache" {
		t.Fatalf("source header = %q", got)
	}
	if got := w.Header().Get("Cache-Control"); got != "public, max-age=360" {
		t.Fatalf("Cache-Control = %q", got)
	}
}

func TestGetFlights_SyntheticAndStaleFlags(t *testing.T) {
	svc := &fakeFlightSvc{
		ttl: time.Minute,
		res: domain.Result{
			Offers:   []domain.FlightOffer{sampleOffer(99)},
			Strategy: domain.StrategySynthetic,
			Source:   domain.SourceStale,
			CachedAt: testNow.Add(-90 * time.Second),
		},
	}
	w := get(newTestRouter(svc), validQuery)
	if w.Code != http.StatusOK {
		t.Fatalf("status=%d", w.Code)
	}
	if !strings.Contains(w.Body.String(), `"synthetic":true`) || !strings.Contains(w.Body.String(), `"source":"stale"`) {
		t.Fatalf("unexpected body %s", w.Body.String())
	}
	if got := w.Header().Get("Cache-Control"); got != "no-cache" {
		t.Fatalf("stale answers must not be cached, got %q", got)
	}
}

func TestGetFlights_EmptyOffersEncodeAsArray(t *testing.T) {
	svc := &fakeFlightSvc{ttl: time.Minute, res: domain.Result{Source: domain.SourceLive, CachedAt: testNow}}
	w := get(newTestRouter(svc), validQuery)
	if !strings.Contains(w.Body.String(), `"flights":[]`) {
		t.Fatalf("expected empty array, got %s", w.Body.String())
	}
}

func TestGetFlights_ValidationErrors(t *testing.T) {
	cases := []struct {
		name, target, msg string
	}{
		{"missing params", "/flights?origin=JFK", "required"},
		{"bad code", "/flights?origin=JFKX&destination=LAX&departure_date=2025-03-01&return_date=2025-03-08", "three letters"},
		{"bad date", "/flights?origin=JFK&destination=LAX&departure_date=03/01/2025&return_date=2025-03-08", "YYYY-MM-DD"},
		{"return before departure", "/flights?origin=JFK&destination=LAX&departure_date=2025-03-08&return_date=2025-03-01", "before departure"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			svc := &fakeFlightSvc{}
			w := get(newTestRouter(svc), tc.target)
			if w.Code != http.StatusBadRequest {
				t.Fatalf("status=%d", w.Code)
			}
			er := decodeErr(t, w)
			if er.Code != ErrCodeBadRequest || !strings.Contains(er.Message, tc.msg) || er.RequestID == "" {
				t.Fatalf("unexpected error %+v", er)
			}
			if svc.call != 0 {
				t.Fatalf("service must not be called on invalid input")
			}
		})
	}
}

func TestGetFlights_FetchFailureIs502(t *testing.T) {
	svc := &fakeFlightSvc{err: domain.NewFetchError(http.StatusForbidden, nil)}
	w := get(newTestRouter(svc), validQuery)

	if w.Code != http.StatusBadGateway {
		t.Fatalf("status=%d", w.Code)
	}
	er := decodeErr(t, w)
	if er.Code != ErrCodeFetchFailed || !strings.Contains(er.Message, "403") {
		t.Fatalf("unexpected error %+v", er)
	}
}

func TestGetFlights_UnexpectedErrorIs500(t *testing.T) {
	svc := &fakeFlightSvc{err: errors.New("not wired")}
	w := get(newTestRouter(svc), validQuery)
	if w.Code != http.StatusInternalServerError || decodeErr(t, w).Code != ErrCodeInternal {
		t.Fatalf("status=%d body=%s", w.Code, w.Body.String())
	}
}
