package domain

import (
	"errors"
	"net/http"
	"testing"
)

func mustQuery(t *testing.T, o, d, dep, ret string) RouteQuery {
	t.Helper()
	q, err := NewRouteQuery(o, d, dep, ret)
	if err != nil {
		t.Fatalf("NewRouteQuery(%q,%q,%q,%q): %v", o, d, dep, ret, err)
	}
	return q
}

func TestNewRouteQuery_NormalizesCodes(t *testing.T) {
	q := mustQuery(t, " jfk", "lax ", "2025-03-01", "2025-03-08")
	if q.Origin != "JFK" || q.Destination != "LAX" {
		t.Fatalf("codes not normalized: %q %q", q.Origin, q.Destination)
	}
	if got := q.String(); got != "JFK-LAX 2025-03-01/2025-03-08" {
		t.Fatalf("String() = %q", got)
	}
}

func TestNewRouteQuery_SameDayReturnAllowed(t *testing.T) {
	mustQuery(t, "JFK", "BOS", "2025-03-01", "2025-03-01")
}

func TestNewRouteQuery_Rejects(t *testing.T) {
	cases := []struct {
		name           string
		o, d, dep, ret string
		want           error
	}{
		{"short code", "JF", "LAX", "2025-03-01", "2025-03-08", ErrInvalidAirportCode},
		{"long code", "JFKX", "LAX", "2025-03-01", "2025-03-08", ErrInvalidAirportCode},
		{"digits", "JF1", "LAX", "2025-03-01", "2025-03-08", ErrInvalidAirportCode},
		{"bad departure", "JFK", "LAX", "03/01/2025", "2025-03-08", ErrInvalidDate},
		{"bad return", "JFK", "LAX", "2025-03-01", "", ErrInvalidDate},
		{"return before departure", "JFK", "LAX", "2025-03-08", "2025-03-01", ErrReturnBeforeDeparture},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := NewRouteQuery(tc.o, tc.d, tc.dep, tc.ret)
			if !errors.Is(err, tc.want) {
				t.Fatalf("err = %v; want %v", err, tc.want)
			}
			if !errors.Is(err, ErrInvalidQuery) {
				t.Fatalf("err %v should wrap ErrInvalidQuery", err)
			}
		})
	}
}

func TestCacheKey_Deterministic(t *testing.T) {
	a := mustQuery(t, "JFK", "LAX", "2025-03-01", "2025-03-08")
	b := mustQuery(t, "jfk", "lax", "2025-03-01", "2025-03-08")
	if a.CacheKey() != b.CacheKey() {
		t.Fatalf("equal queries hash differently")
	}
	if len(a.CacheKey()) != 64 {
		t.Fatalf("expected hex sha256, got %q", a.CacheKey())
	}
}

func TestCacheKey_AnyFieldChangesKey(t *testing.T) {
	base := mustQuery(t, "JFK", "LAX", "2025-03-01", "2025-03-08")
	variants := []RouteQuery{
		mustQuery(t, "EWR", "LAX", "2025-03-01", "2025-03-08"),
		mustQuery(t, "JFK", "SFO", "2025-03-01", "2025-03-08"),
		mustQuery(t, "JFK", "LAX", "2025-03-02", "2025-03-08"),
		mustQuery(t, "JFK", "LAX", "2025-03-01", "2025-03-09"),
	}
	seen := map[string]bool{base.CacheKey(): true}
	for _, v := range variants {
		k := v.CacheKey()
		if seen[k] {
			t.Fatalf("key collision for %s", v)
		}
		seen[k] = true
	}
}

func TestFetchError(t *testing.T) {
	cause := errors.New("boom")
	fe := NewFetchError(0, cause)
	if fe.StatusCode != http.StatusBadGateway {
		t.Fatalf("default status = %d", fe.StatusCode)
	}
	if !errors.Is(fe, cause) {
		t.Fatalf("FetchError should unwrap to cause")
	}
	var target *FetchError
	var err error = NewFetchError(503, nil)
	if !errors.As(err, &target) || target.StatusCode != 503 {
		t.Fatalf("errors.As failed: %v", err)
	}
	if err.Error() != "fetch failed: upstream status 503" {
		t.Fatalf("Error() = %q", err.Error())
	}
}

func TestResult_Synthetic(t *testing.T) {
	if !(Result{Strategy: StrategySynthetic}).Synthetic() {
		t.Fatalf("synthetic result not flagged")
	}
	if (Result{Strategy: StrategyEmbedded}).Synthetic() {
		t.Fatalf("embedded result flagged synthetic")
	}
}
