package search

import (
	"sort"

	"github.com/qanoonai/backend/internal/citation"
	"github.com/qanoonai/backend/internal/storage/models"
)

// dedupKey identifies a judgment across retrieval paths: its normalized
// citation, or its id when it has none.
func dedupKey(s models.JudgmentSummary) string {
	key := s.NormalizedCitation
	if key == "" {
		key = citation.Normalize(s.Citation)
	}
	if key == "" {
		key = s.ID.String()
	}
	return key
}

// DeduplicateResults sorts by descending score and keeps the best result
// per judgment, returning at most maxResults entries.
func DeduplicateResults(results []models.SearchResult, maxResults int) []models.SearchResult {
	if maxResults <= 0 || len(results) == 0 {
		return []models.SearchResult{}
	}

	sorted := make([]models.SearchResult, len(results))
	copy(sorted, results)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Score > sorted[j].Score
	})

	seen := make(map[string]struct{}, len(sorted))
	out := make([]models.SearchResult, 0, min(maxResults, len(sorted)))
	for _, r := range sorted {
		key := dedupKey(r.Judgment)
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, r)
		if len(out) == maxResults {
			break
		}
	}
	return out
}
