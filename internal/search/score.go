package search

import (
	"math"
	"regexp"
	"strings"

	"github.com/qanoonai/backend/internal/storage/models"
)

// Judgments older than this many years get no recency credit.
const recencyHorizon = 75

func clamp01(x float64) float64 {
	return math.Max(0, math.Min(1, x))
}

func recency(year, currentYear int) float64 {
	if year <= 0 {
		return 0
	}
	return clamp01(1 - float64(currentYear-year)/recencyHorizon)
}

// fuse combines the hit's signals into a 0-100 relevance score.
func fuse(h models.ChunkHit, w models.SearchWeights, currentYear int) float64 {
	total := w.Total()
	if total <= 0 {
		return 0
	}
	raw := w.Vector*clamp01(h.VectorSimilarity) +
		w.Keyword*clamp01(h.KeywordRank) +
		w.Recency*recency(h.Judgment.Year, currentYear)
	return math.Round(100*clamp01(raw/total)*100) / 100
}

var wordPattern = regexp.MustCompile(`[\p{L}\p{N}]+`)

var stopwords = map[string]bool{
	"the": true, "and": true, "for": true, "with": true, "from": true, "that": true,
	"this": true, "are": true, "was": true, "were": true, "under": true, "into": true,
	"of": true, "in": true, "on": true, "to": true, "a": true, "an": true, "or": true,
	"by": true, "is": true, "be": true, "as": true, "at": true, "vs": true,
}

// queryTerms returns the distinct significant words of a query, in order.
func queryTerms(query string) []string {
	var terms []string
	seen := map[string]bool{}
	for _, w := range wordPattern.FindAllString(strings.ToLower(query), -1) {
		if len(w) < 3 || stopwords[w] || seen[w] {
			continue
		}
		seen[w] = true
		terms = append(terms, w)
	}
	return terms
}

func matchedKeywords(terms []string, texts ...string) []string {
	words := map[string]bool{}
	for _, t := range texts {
		for _, w := range wordPattern.FindAllString(strings.ToLower(t), -1) {
			words[w] = true
		}
	}
	out := []string{}
	for _, term := range terms {
		if words[term] {
			out = append(out, term)
		}
	}
	return out
}

// matchedLegalAreas reports the judgment's areas that the request asked
// for: the area filter when one is given, otherwise areas named in the query.
func matchedLegalAreas(judgmentAreas, filterAreas []string, query string) []string {
	out := []string{}
	if len(filterAreas) > 0 {
		want := map[string]bool{}
		for _, a := range filterAreas {
			want[strings.ToLower(a)] = true
		}
		for _, a := range judgmentAreas {
			if want[strings.ToLower(a)] {
				out = append(out, a)
			}
		}
		return out
	}

	q := " " + strings.Join(wordPattern.FindAllString(strings.ToLower(query), -1), " ") + " "
	for _, a := range judgmentAreas {
		words := wordPattern.FindAllString(strings.ToLower(a), -1)
		if len(words) > 0 && strings.Contains(q, " "+strings.Join(words, " ")+" ") {
			out = append(out, a)
		}
	}
	return out
}
