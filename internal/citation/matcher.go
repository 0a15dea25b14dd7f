package citation

import (
	"regexp"

	"github.com/qanoonai/backend/internal/storage/models"
)

// Match is one citation occurrence located in a text.
type Match struct {
	Raw          string
	Normalized   string
	Start        int
	End          int
	Jurisdiction models.Jurisdiction
}

// Matcher finds citations of one jurisdiction's reporting conventions.
type Matcher interface {
	Name() string
	FindAll(text string) []Match
}

type RegexMatcher struct {
	name         string
	jurisdiction models.Jurisdiction
	patterns     []*regexp.Regexp
}

func NewRegexMatcher(name string, jurisdiction models.Jurisdiction, patterns ...string) *RegexMatcher {
	m := &RegexMatcher{name: name, jurisdiction: jurisdiction}
	for _, p := range patterns {
		m.patterns = append(m.patterns, regexp.MustCompile(p))
	}
	return m
}

func (m *RegexMatcher) Name() string {
	return m.name
}

func (m *RegexMatcher) FindAll(text string) []Match {
	var matches []Match
	for _, p := range m.patterns {
		for _, loc := range p.FindAllStringIndex(text, -1) {
			raw := text[loc[0]:loc[1]]
			matches = append(matches, Match{
				Raw:          raw,
				Normalized:   Normalize(raw),
				Start:        loc[0],
				End:          loc[1],
				Jurisdiction: m.jurisdiction,
			})
		}
	}
	return matches
}

const (
	pkCourt       = `(?:supreme\s+court|federal\s+shariat\s+court|s\.\s?c\.|f\.\s?s\.\s?c\.|sc|fsc|lahore|lah\.?|karachi|kar\.?|peshawar|pesh\.?|islamabad|isl\.?|quetta|balochistan|bal\.?|sc\s*\(aj&k\)|aj&k|gb)`
	pkReporters   = `(?:scmr|s\.c\.m\.r\.?|clc|c\.l\.c\.?|ylr|y\.l\.r\.?|p\.?\s?cr\.?\s?l\.?\s?j\.?|plc|p\.l\.c\.?|mld|m\.l\.d\.?|cld|c\.l\.d\.?|ptd|p\.t\.d\.?|klr|nlr)`
	pkPLD         = `(?:pld|p\.\s?l\.\s?d\.?|air)`
	ukNeutral     = `(?:uksc|ukhl|ukpc|ewca\s+(?:civ|crim)|ewhc|ewcop|ewfc|csih|csoh)`
	ukReports     = `(?:ac|qb|kb|ch|fam|wlr|all\s+er|lloyd'?s\s+rep|cr\s+app\s+r)`
	ukHighCourtDv = `(?:\s*\((?:ch|qb|kb|fam|admin|comm|tcc|pat)\))?`
)

// NewPakistanMatcher matches PLD/AIR and the year-first Pakistani law
// reports, e.g. "PLD 2019 SC 123", "2019 PLD Lahore 45", "2020 SCMR 1011".
func NewPakistanMatcher() *RegexMatcher {
	return NewRegexMatcher("pakistan", models.JurisdictionPakistan,
		`(?i)\b`+pkPLD+`\s+\d{4},?\s+`+pkCourt+`\s+\d{1,5}\b`,
		`(?i)\b\d{4},?\s+`+pkPLD+`\s+`+pkCourt+`\s+\d{1,5}\b`,
		`(?i)\b\d{4},?\s+`+pkReporters+`\s+(?:\(?`+pkCourt+`\)?\s+)?\d{1,5}\b`,
	)
}

// NewUKMatcher matches neutral citations and the bracketed-year law
// reports, e.g. "[2019] UKSC 12", "[2019] 1 WLR 123".
func NewUKMatcher() *RegexMatcher {
	return NewRegexMatcher("uk", models.JurisdictionUK,
		`(?i)\[\d{4}\]\s+`+ukNeutral+`\s+\d{1,5}`+ukHighCourtDv,
		`(?i)\[\d{4}\]\s+(?:\d{1,2}\s+)?`+ukReports+`\s+\d{1,5}\b`,
	)
}

func DefaultMatchers() []Matcher {
	return []Matcher{NewPakistanMatcher(), NewUKMatcher()}
}
