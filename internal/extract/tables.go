package extract

import (
	"fmt"
	"os"
	"regexp"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

// Airline is one row of the airline reference table. Aliases are extra
// spellings recognized in page text ("Delta" for "Delta Air Lines").
type Airline struct {
	Code    string   `yaml:"code"`
	Name    string   `yaml:"name"`
	Aliases []string `yaml:"aliases"`
}

// Tables holds the airport → city and airline name → IATA lookups used by
// every strategy. A Tables value is read-only after construction and safe for
// concurrent use.
type Tables struct {
	cities   map[string]string
	byCode   map[string]Airline
	byName   map[string]string // lower-cased name or alias -> code
	names    []string          // names and aliases, longest first
	airlineR *regexp.Regexp
}

var defaultCities = map[string]string{
	"ATL": "Atlanta",
	"AUS": "Austin",
	"BOS": "Boston",
	"BWI": "Baltimore",
	"CDG": "Paris",
	"CLT": "Charlotte",
	"DCA": "Washington",
	"DEN": "Denver",
	"DFW": "Dallas",
	"DTW": "Detroit",
	"EWR": "Newark",
	"FLL": "Fort Lauderdale",
	"HNL": "Honolulu",
	"IAD": "Washington",
	"IAH": "Houston",
	"JFK": "New York",
	"LAS": "Las Vegas",
	"LAX": "Los Angeles",
	"LGA": "New York",
	"LHR": "London",
	"MCO": "Orlando",
	"MDW": "Chicago",
	"MIA": "Miami",
	"MSP": "Minneapolis",
	"ORD": "Chicago",
	"PDX": "Portland",
	"PHL": "Philadelphia",
	"PHX": "Phoenix",
	"SAN": "San Diego",
	"SEA": "Seattle",
	"SFO": "San Francisco",
	"SLC": "Salt Lake City",
	"TPA": "Tampa",
	"YYZ": "Toronto",
}

var defaultAirlines = []Airline{
	{Code: "AA", Name: "American Airlines", Aliases: []string{"American"}},
	{Code: "DL", Name: "Delta Air Lines", Aliases: []string{"Delta"}},
	{Code: "UA", Name: "United Airlines", Aliases: []string{"United"}},
	{Code: "WN", Name: "Southwest Airlines", Aliases: []string{"Southwest"}},
	{Code: "B6", Name: "JetBlue", Aliases: []string{"JetBlue Airways"}},
	{Code: "AS", Name: "Alaska Airlines", Aliases: []string{"Alaska"}},
	{Code: "NK", Name: "Spirit Airlines", Aliases: []string{"Spirit"}},
	{Code: "F9", Name: "Frontier Airlines", Aliases: []string{"Frontier"}},
	{Code: "HA", Name: "Hawaiian Airlines", Aliases: []string{"Hawaiian"}},
	{Code: "G4", Name: "Allegiant Air", Aliases: []string{"Allegiant"}},
	{Code: "SY", Name: "Sun Country Airlines", Aliases: []string{"Sun Country"}},
	{Code: "AC", Name: "Air Canada"},
	{Code: "BA", Name: "British Airways"},
	{Code: "LH", Name: "Lufthansa"},
	{Code: "AF", Name: "Air France"},
	{Code: "KL", Name: "KLM", Aliases: []string{"KLM Royal Dutch Airlines"}},
	{Code: "EK", Name: "Emirates"},
	{Code: "QR", Name: "Qatar Airways"},
	{Code: "AM", Name: "Aeromexico", Aliases: []string{"Aeroméxico"}},
	{Code: "WS", Name: "WestJet"},
}

// DefaultCarrier is used whenever no airline can be recovered for an offer.
var DefaultCarrier = Airline{Code: "AA", Name: "American Airlines"}

// DefaultTables returns the built-in reference tables.
func DefaultTables() *Tables {
	return NewTables(defaultCities, defaultAirlines)
}

// NewTables indexes the given airport and airline rows. Later airline rows
// override earlier ones with the same code.
func NewTables(cities map[string]string, airlines []Airline) *Tables {
	t := &Tables{
		cities: make(map[string]string, len(cities)),
		byCode: make(map[string]Airline, len(airlines)),
		byName: make(map[string]string, len(airlines)*2),
	}
	for code, city := range cities {
		code = strings.ToUpper(strings.TrimSpace(code))
		if code != "" && strings.TrimSpace(city) != "" {
			t.cities[code] = strings.TrimSpace(city)
		}
	}
	for _, a := range airlines {
		a.Code = strings.ToUpper(strings.TrimSpace(a.Code))
		a.Name = strings.TrimSpace(a.Name)
		if a.Code == "" || a.Name == "" {
			continue
		}
		t.byCode[a.Code] = a
		t.byName[strings.ToLower(a.Name)] = a.Code
		for _, alias := range a.Aliases {
			if alias = strings.TrimSpace(alias); alias != "" {
				t.byName[strings.ToLower(alias)] = a.Code
			}
		}
	}

	for name := range t.byName {
		t.names = append(t.names, name)
	}
	// Longest first so "delta air lines" wins over "delta" in the alternation.
	sort.Slice(t.names, func(i, j int) bool {
		if len(t.names[i]) != len(t.names[j]) {
			return len(t.names[i]) > len(t.names[j])
		}
		return t.names[i] < t.names[j]
	})
	if len(t.names) > 0 {
		quoted := make([]string, len(t.names))
		for i, n := range t.names {
			quoted[i] = regexp.QuoteMeta(n)
		}
		t.airlineR = regexp.MustCompile(`(?i)\b(?:` + strings.Join(quoted, "|") + `)\b`)
	}
	return t
}

// City returns the city served by an airport code. Unknown codes pass
// through unchanged.
func (t *Tables) City(code string) string {
	if city, ok := t.cities[strings.ToUpper(code)]; ok {
		return city
	}
	return code
}

// AirlineByCode looks up an airline by its IATA code.
func (t *Tables) AirlineByCode(code string) (Airline, bool) {
	a, ok := t.byCode[strings.ToUpper(strings.TrimSpace(code))]
	return a, ok
}

// AirlineByName resolves a display name to an airline. Exact (case-insensitive)
// matches win; otherwise the longest known name contained in s is used.
func (t *Tables) AirlineByName(s string) (Airline, bool) {
	low := strings.ToLower(strings.TrimSpace(s))
	if low == "" {
		return Airline{}, false
	}
	if code, ok := t.byName[low]; ok {
		return t.byCode[code], true
	}
	if t.airlineR != nil {
		if m := t.airlineR.FindString(low); m != "" {
			return t.byCode[t.byName[strings.ToLower(m)]], true
		}
	}
	return Airline{}, false
}

// ScanAirlines returns the airlines mentioned in text, de-duplicated by code
// in order of first appearance.
func (t *Tables) ScanAirlines(text string) []Airline {
	if t.airlineR == nil {
		return nil
	}
	var out []Airline
	seen := map[string]struct{}{}
	for _, m := range t.airlineR.FindAllString(text, -1) {
		code := t.byName[strings.ToLower(m)]
		if _, dup := seen[code]; dup {
			continue
		}
		seen[code] = struct{}{}
		out = append(out, t.byCode[code])
	}
	return out
}

// referenceFile is the YAML layout accepted by LoadTables.
//
//	airports:
//	  BNA: Nashville
//	airlines:
//	  - code: VS
//	    name: Virgin Atlantic
//	    aliases: [Virgin]
type referenceFile struct {
	Airports map[string]string `yaml:"airports"`
	Airlines []Airline         `yaml:"airlines"`
}

// LoadTables returns the default tables extended with the rows in the YAML
// file at path. An empty path yields the defaults.
func LoadTables(path string) (*Tables, error) {
	if strings.TrimSpace(path) == "" {
		return DefaultTables(), nil
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var ref referenceFile
	if err := yaml.Unmarshal(b, &ref); err != nil {
		return nil, fmt.Errorf("reference data %s: %w", path, err)
	}

	cities := make(map[string]string, len(defaultCities)+len(ref.Airports))
	for k, v := range defaultCities {
		cities[k] = v
	}
	for k, v := range ref.Airports {
		cities[k] = v
	}
	airlines := append(append([]Airline(nil), defaultAirlines...), ref.Airlines...)
	for i, a := range ref.Airlines {
		if strings.TrimSpace(a.Code) == "" || strings.TrimSpace(a.Name) == "" {
			return nil, fmt.Errorf("reference data %s: airlines[%d] needs code and name", path, i)
		}
	}
	return NewTables(cities, airlines), nil
}
