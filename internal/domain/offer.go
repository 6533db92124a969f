package domain

import "time"

// CurrencyUSD is the only currency the source page is scraped in.
const CurrencyUSD = "USD"

// Place is an airport endpoint of an offer.
type Place struct {
	Code string `json:"code" example:"JFK"`
	City string `json:"city" example:"New York"`
}

// Carrier identifies an airline. Either field may be null when the page does
// not expose it.
type Carrier struct {
	Code *string `json:"code" example:"DL"`
	Name *string `json:"name" example:"Delta"`
}

// FlightOffer is a single priced itinerary recovered from a search page.
// Offers are created by the extractor and never mutated afterwards.
//
// FlightNumber is always nil (the page never exposes it) and
// OperatingCarrier always mirrors MarketingCarrier.
type FlightOffer struct {
	Price            int     `json:"price" example:"129"`
	Currency         string  `json:"currency" example:"USD"`
	Origin           Place   `json:"origin"`
	Destination      Place   `json:"destination"`
	DepartureTime    *string `json:"departure_time" example:"2025-03-01T07:30:00"`
	ArrivalTime      *string `json:"arrival_time" example:"2025-03-01T08:45:00"`
	DurationMinutes  *int    `json:"duration_minutes" example:"75"`
	Stops            int     `json:"stops" example:"0"`
	FlightNumber     *string `json:"flight_number"`
	MarketingCarrier Carrier `json:"marketing_carrier"`
	OperatingCarrier Carrier `json:"operating_carrier"`
}

// Strategy names the extraction strategy that produced a set of offers.
type Strategy string

const (
	StrategyEmbedded  Strategy = "embedded"
	StrategyPattern   Strategy = "pattern"
	StrategyRegex     Strategy = "regex"
	StrategySynthetic Strategy = "synthetic"
)

// Source tells callers where a GetFlights answer came from.
type Source string

const (
	SourceLive  Source = "live"
	SourceCache Source = "cache"
	SourceStale Source = "stale"
)

// Result is the orchestrator's answer for one RouteQuery.
type Result struct {
	Key      string
	Offers   []FlightOffer
	Strategy Strategy
	Source   Source
	CachedAt time.Time
}

// Synthetic reports whether the offers are fabricated placeholder data.
func (r Result) Synthetic() bool { return r.Strategy == StrategySynthetic }
