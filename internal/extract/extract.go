// Package extract turns raw search-result markup into normalized flight
// offers.
//
// Extraction is a cascade of independent strategies tried in a fixed order;
// the first strategy returning at least one offer wins:
//
//  1. embedded  – structured data injected into the page (state globals,
//     hydration script blocks, data-* attributes)
//  2. pattern   – prices, times, durations, airlines and stops recovered
//     from the raw text
//  3. regex     – prices only, with synthetic schedule data
//  4. synthetic – a fixed ladder of ten placeholder offers
//
// The last strategy never returns empty, so Extract never fails. The package
// performs no I/O and does no logging; callers decide what to record about
// the chosen strategy.
package extract

import (
	"strings"
	"sync"

	"github.com/PuerkitoBio/goquery"

	"github.com/tbourn/go-flight-scraper/internal/domain"
)

// page is the input shared by all strategies. The parsed document is built
// lazily because only the embedded strategy needs it.
type page struct {
	raw string

	once sync.Once
	doc  *goquery.Document
}

func newPage(markup string) *page { return &page{raw: markup} }

func (p *page) document() *goquery.Document {
	p.once.Do(func() {
		doc, err := goquery.NewDocumentFromReader(strings.NewReader(p.raw))
		if err == nil {
			p.doc = doc
		}
	})
	return p.doc
}

// strategyFunc is the common signature of every cascade step. An empty
// result means "try the next strategy".
type strategyFunc func(p *page, q domain.RouteQuery) []domain.FlightOffer

type step struct {
	name domain.Strategy
	run  strategyFunc
}

// Extractor runs the strategy cascade against a set of reference tables.
// It is safe for concurrent use.
type Extractor struct {
	tables *Tables
	steps  []step
}

// New returns an Extractor using t, or the default tables when t is nil.
func New(t *Tables) *Extractor {
	if t == nil {
		t = DefaultTables()
	}
	e := &Extractor{tables: t}
	e.steps = []step{
		{domain.StrategyEmbedded, e.embedded},
		{domain.StrategyPattern, e.pattern},
		{domain.StrategyRegex, e.regex},
		{domain.StrategySynthetic, e.synthetic},
	}
	return e
}

// Extract returns the offers recovered from markup for q together with the
// strategy that produced them. The result is never empty.
func (e *Extractor) Extract(markup string, q domain.RouteQuery) ([]domain.FlightOffer, domain.Strategy) {
	p := newPage(markup)
	for _, s := range e.steps {
		if offers := s.run(p, q); len(offers) > 0 {
			return offers, s.name
		}
	}
	// Unreachable: synthetic always yields offers.
	return e.synthetic(p, q), domain.StrategySynthetic
}
