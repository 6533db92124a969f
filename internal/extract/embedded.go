package extract

import (
	"encoding/json"
	"math"
	"regexp"
	"strconv"
	"strings"
	"unicode"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/tbourn/go-flight-scraper/internal/domain"
)

// stateAssignRE finds a global state object assignment inside a script body.
var stateAssignRE = regexp.MustCompile(`window\.__(?:INITIAL_STATE|PRELOADED_STATE|APOLLO_STATE)__\s*=\s*`)

// offerPaths lists the known locations of the offers array across releases
// of the upstream page. The empty path means the payload itself is the array.
var offerPaths = []string{
	"",
	"flights",
	"results",
	"offers",
	"itineraries",
	"data.flights",
	"data.results",
	"searchResults.results",
	"searchResults.flights",
	"props.pageProps.flights",
	"props.pageProps.results",
	"props.pageProps.searchResults.results",
	"resultsState.results",
}

// Alternate field names per logical attribute, probed in order.
var (
	priceFields     = []string{"price", "displayPrice", "totalPrice", "amount"}
	durationFields  = []string{"duration", "totalDuration", "flightDuration"}
	stopFields      = []string{"stops", "stopCount", "numberOfStops"}
	carrierFields   = []string{"airline", "carrier", "marketingCarrier"}
	departureFields = []string{"departureTime", "departure", "departTime"}
	arrivalFields   = []string{"arrivalTime", "arrival", "arriveTime"}
)

// payloadMarker yields the raw JSON payloads found by one marker pattern.
type payloadMarker func(doc *goquery.Document) []string

var payloadMarkers = []payloadMarker{
	stateAssignments,
	hydrationBlocks,
	dataAttributes,
}

func stateAssignments(doc *goquery.Document) []string {
	var out []string
	doc.Find("script").Each(func(_ int, s *goquery.Selection) {
		body := s.Text()
		for _, loc := range stateAssignRE.FindAllStringIndex(body, -1) {
			out = append(out, body[loc[1]:])
		}
	})
	return out
}

func hydrationBlocks(doc *goquery.Document) []string {
	var out []string
	doc.Find(`script#__NEXT_DATA__, script[type="application/json"]`).Each(func(_ int, s *goquery.Selection) {
		out = append(out, s.Text())
	})
	return out
}

func dataAttributes(doc *goquery.Document) []string {
	var out []string
	doc.Find("[data-state], [data-results], [data-flights]").Each(func(_ int, s *goquery.Selection) {
		for _, attr := range []string{"data-state", "data-results", "data-flights"} {
			if v, ok := s.Attr(attr); ok {
				out = append(out, v)
			}
		}
	})
	return out
}

// decodePayload decodes the first JSON value in raw. Trailing script text
// after the value (";", further statements) is ignored.
func decodePayload(raw string) (any, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" || (raw[0] != '{' && raw[0] != '[') {
		return nil, false
	}
	var v any
	if err := json.NewDecoder(strings.NewReader(raw)).Decode(&v); err != nil {
		return nil, false
	}
	return v, true
}

// locateOffers walks offerPaths and returns the first non-empty array found.
func locateOffers(root any) []any {
	for _, path := range offerPaths {
		cur := root
		if path != "" {
			for _, part := range strings.Split(path, ".") {
				m, ok := cur.(map[string]any)
				if !ok {
					cur = nil
					break
				}
				cur = m[part]
			}
		}
		if arr, ok := cur.([]any); ok && len(arr) > 0 {
			return arr
		}
	}
	return nil
}

func (e *Extractor) embedded(p *page, q domain.RouteQuery) []domain.FlightOffer {
	doc := p.document()
	if doc == nil {
		return nil
	}
	for _, marker := range payloadMarkers {
		for _, raw := range marker(doc) {
			v, ok := decodePayload(raw)
			if !ok {
				continue
			}
			items := locateOffers(v)
			if len(items) == 0 {
				continue
			}
			var offers []domain.FlightOffer
			for _, item := range items {
				m, ok := item.(map[string]any)
				if !ok {
					continue
				}
				if o, ok := e.normalizeItem(m, len(offers), q); ok {
					offers = append(offers, o)
				}
			}
			if len(offers) > 0 {
				return offers
			}
		}
	}
	return nil
}

// normalizeItem maps one raw embedded item to an offer. Items without a
// usable price are dropped. idx is the position among accepted offers and
// drives synthetic schedule fallbacks.
func (e *Extractor) normalizeItem(m map[string]any, idx int, q domain.RouteQuery) (domain.FlightOffer, bool) {
	price, ok := probe(m, priceFields, asPrice)
	if !ok {
		return domain.FlightOffer{}, false
	}

	var duration *int
	if d, ok := probe(m, durationFields, asDuration); ok {
		duration = intPtr(d)
	}
	stops, _ := probe(m, stopFields, asStops)

	dep, ok := probe(m, departureFields, asClock)
	if !ok {
		dep = syntheticDeparture(idx)
	}
	arr, ok := probe(m, arrivalFields, asClock)
	if !ok {
		arr = arrivalFrom(dep, idx)
	}

	carrier := carrierOf(DefaultCarrier)
	for _, f := range carrierFields {
		if v, present := m[f]; present {
			if c, ok := e.asCarrier(v); ok {
				carrier = c
				break
			}
		}
	}

	return e.tables.offer(q, legSpec{
		price:    price,
		dep:      dep,
		arr:      arr,
		duration: duration,
		stops:    stops,
		carrier:  carrier,
	}), true
}

// probe returns the first field in names that is present and converts
// successfully with conv.
func probe[T any](m map[string]any, names []string, conv func(any) (T, bool)) (T, bool) {
	for _, n := range names {
		v, present := m[n]
		if !present || v == nil {
			continue
		}
		if out, ok := conv(v); ok {
			return out, true
		}
	}
	var zero T
	return zero, false
}

func asPrice(v any) (int, bool) {
	var f float64
	switch x := v.(type) {
	case float64:
		f = x
	case string:
		if strings.Contains(x, "-") {
			return 0, false
		}
		cleaned := strings.Map(func(r rune) rune {
			if unicode.IsDigit(r) || r == '.' {
				return r
			}
			return -1
		}, x)
		parsed, err := strconv.ParseFloat(cleaned, 64)
		if err != nil {
			return 0, false
		}
		f = parsed
	case map[string]any:
		return probe(x, []string{"amount", "value"}, asPrice)
	default:
		return 0, false
	}
	p := int(math.Round(f))
	if !inPriceBand(p) {
		return 0, false
	}
	return p, true
}

var hoursMinutesRE = regexp.MustCompile(`(?i)^\s*(?:(\d+)\s*h)?\s*(?:(\d+)\s*m(?:in)?)?\s*$`)

func asDuration(v any) (int, bool) {
	var d int
	switch x := v.(type) {
	case float64:
		d = int(math.Round(x))
	case string:
		if n, err := strconv.Atoi(strings.TrimSpace(x)); err == nil {
			d = n
			break
		}
		sm := hoursMinutesRE.FindStringSubmatch(x)
		if sm == nil || (sm[1] == "" && sm[2] == "") {
			return 0, false
		}
		h, _ := strconv.Atoi(sm[1])
		mins, _ := strconv.Atoi(sm[2])
		d = h*60 + mins
	default:
		return 0, false
	}
	if !plausibleDuration(d) {
		return 0, false
	}
	return d, true
}

var leadingDigitsRE = regexp.MustCompile(`\d+`)

func asStops(v any) (int, bool) {
	switch x := v.(type) {
	case float64:
		if x < 0 {
			return 0, false
		}
		return int(x), true
	case []any:
		return len(x), true
	case string:
		low := strings.ToLower(x)
		if strings.Contains(low, "nonstop") || strings.Contains(low, "non-stop") || strings.Contains(low, "direct") {
			return 0, true
		}
		if d := leadingDigitsRE.FindString(low); d != "" {
			n, err := strconv.Atoi(d)
			return n, err == nil
		}
	}
	return 0, false
}

var clockRE = regexp.MustCompile(`(?i)(\d{1,2}):(\d{2})(?:\s*([ap])\.?m\.?)?`)

func asClock(v any) (clock, bool) {
	switch x := v.(type) {
	case string:
		sm := clockRE.FindStringSubmatch(x)
		if sm == nil {
			return 0, false
		}
		h, _ := strconv.Atoi(sm[1])
		mins, _ := strconv.Atoi(sm[2])
		switch strings.ToLower(sm[3]) {
		case "a":
			if h == 12 {
				h = 0
			}
		case "p":
			if h < 12 {
				h += 12
			}
		}
		return newClock(h, mins)
	case map[string]any:
		return probe(x, []string{"time", "local", "localTime"}, asClock)
	}
	return 0, false
}

// asCarrier resolves a carrier value (name, IATA code, or object) against the
// airline table. Only fields that can be recovered are populated.
func (e *Extractor) asCarrier(v any) (domain.Carrier, bool) {
	var code, name string
	switch x := v.(type) {
	case string:
		s := strings.TrimSpace(x)
		if isCarrierCode(s) {
			code = s
		} else {
			name = s
		}
	case map[string]any:
		code, _ = probe(x, []string{"code", "iata", "iataCode"}, asString)
		name, _ = probe(x, []string{"name", "displayName"}, asString)
	default:
		return domain.Carrier{}, false
	}
	return e.resolveCarrier(code, name)
}

func (e *Extractor) resolveCarrier(code, name string) (domain.Carrier, bool) {
	code = strings.ToUpper(strings.TrimSpace(code))
	name = strings.TrimSpace(name)
	if code == "" && name == "" {
		return domain.Carrier{}, false
	}

	if name != "" {
		if a, ok := e.tables.AirlineByName(name); ok {
			if code == "" {
				code = a.Code
			}
			name = a.Name
		} else if name == strings.ToUpper(name) {
			name = cases.Title(language.English).String(strings.ToLower(name))
		}
	} else if a, ok := e.tables.AirlineByCode(code); ok {
		name = a.Name
	}

	var c domain.Carrier
	if code != "" {
		c.Code = &code
	}
	if name != "" {
		c.Name = &name
	}
	return c, true
}

func isCarrierCode(s string) bool {
	if len(s) != 2 {
		return false
	}
	for _, r := range s {
		if !(unicode.IsUpper(r) || unicode.IsDigit(r)) {
			return false
		}
	}
	return true
}

func asString(v any) (string, bool) {
	s, ok := v.(string)
	if !ok || strings.TrimSpace(s) == "" {
		return "", false
	}
	return s, true
}
