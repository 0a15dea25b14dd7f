package citation

import (
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/qanoonai/backend/internal/storage/models"
)

const DefaultContextWindow = 200

// Candidate is an extracted, not yet resolved, citation.
type Candidate struct {
	Raw          string
	Normalized   string
	Context      string
	Start        int
	End          int
	Jurisdiction models.Jurisdiction
	Mentions     int
}

type Extractor struct {
	matchers []Matcher
	window   int
}

func NewExtractor(window int, matchers ...Matcher) *Extractor {
	if window <= 0 {
		window = DefaultContextWindow
	}
	if len(matchers) == 0 {
		matchers = DefaultMatchers()
	}
	return &Extractor{matchers: matchers, window: window}
}

// Extract returns every citation mention in source order. Where matches
// overlap, the earliest and then longest wins.
func (e *Extractor) Extract(text string) []Candidate {
	var all []Match
	for _, m := range e.matchers {
		all = append(all, m.FindAll(text)...)
	}
	sort.SliceStable(all, func(i, j int) bool {
		if all[i].Start != all[j].Start {
			return all[i].Start < all[j].Start
		}
		return all[i].End > all[j].End
	})

	var out []Candidate
	lastEnd := -1
	for _, m := range all {
		if m.Start < lastEnd || m.Normalized == "" {
			continue
		}
		lastEnd = m.End
		out = append(out, Candidate{
			Raw:          m.Raw,
			Normalized:   m.Normalized,
			Context:      e.context(text, m.Start, m.End),
			Start:        m.Start,
			End:          m.End,
			Jurisdiction: m.Jurisdiction,
			Mentions:     1,
		})
	}
	return out
}

// ExtractUnique collapses repeated mentions of one normalized citation into
// the first mention, counting the rest.
func (e *Extractor) ExtractUnique(text string) []Candidate {
	var out []Candidate
	index := map[string]int{}
	for _, c := range e.Extract(text) {
		if i, ok := index[c.Normalized]; ok {
			out[i].Mentions++
			continue
		}
		index[c.Normalized] = len(out)
		out = append(out, c)
	}
	return out
}

// Links builds one unresolved citation link per distinct target cited by
// the judgment. Self-citations are dropped.
func (e *Extractor) Links(j *models.Judgment) []models.CitationLink {
	self := j.NormalizedCitation
	if self == "" {
		self = Normalize(j.Citation)
	}

	var links []models.CitationLink
	for _, c := range e.ExtractUnique(j.FullText) {
		if c.Normalized == self {
			continue
		}
		links = append(links, models.CitationLink{
			ID:                 uuid.New(),
			CitingJudgmentID:   j.ID,
			RawCitation:        c.Raw,
			NormalizedCitation: c.Normalized,
			Context:            c.Context,
			MentionCount:       c.Mentions,
		})
	}
	return links
}

func (e *Extractor) context(text string, start, end int) string {
	half := e.window / 2
	from := start - half
	if from < 0 {
		from = 0
	}
	to := end + half
	if to > len(text) {
		to = len(text)
	}
	for from > 0 && !utf8.RuneStart(text[from]) {
		from--
	}
	for to < len(text) && !utf8.RuneStart(text[to]) {
		to++
	}
	return strings.Join(strings.Fields(text[from:to]), " ")
}
