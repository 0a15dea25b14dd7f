package search

import (
	"math/rand"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/qanoonai/backend/internal/storage/models"
)

func result(citation string, score float64) models.SearchResult {
	return models.SearchResult{
		Judgment: models.JudgmentSummary{ID: uuid.New(), Citation: citation},
		Score:    score,
	}
}

func TestDeduplicateResultsKeepsBestPerCitation(t *testing.T) {
	in := []models.SearchResult{
		result("PLD 2019 SC 123", 40),
		result("2020 SCMR 1011", 75),
		result("P.L.D. 2019 Supreme Court 123", 90),
		result("PLD 2019 S.C. 123", 60),
	}

	out := DeduplicateResults(in, 10)
	require.Len(t, out, 2)
	assert.Equal(t, 90.0, out[0].Score)
	assert.Equal(t, "P.L.D. 2019 Supreme Court 123", out[0].Judgment.Citation)
	assert.Equal(t, 75.0, out[1].Score)
	assert.Equal(t, 40.0, in[0].Score, "input is not reordered")
}

func TestDeduplicateResultsFallsBackToID(t *testing.T) {
	id := uuid.New()
	a := models.SearchResult{Judgment: models.JudgmentSummary{ID: id}, Score: 10}
	b := models.SearchResult{Judgment: models.JudgmentSummary{ID: id}, Score: 20}
	c := models.SearchResult{Judgment: models.JudgmentSummary{ID: uuid.New()}, Score: 5}

	out := DeduplicateResults([]models.SearchResult{a, b, c}, 10)
	require.Len(t, out, 2)
	assert.Equal(t, 20.0, out[0].Score)
}

func TestDeduplicateResultsBounds(t *testing.T) {
	assert.Empty(t, DeduplicateResults(nil, 5))
	assert.Empty(t, DeduplicateResults([]models.SearchResult{result("2001 MLD 1", 1)}, 0))

	in := []models.SearchResult{result("2001 MLD 1", 1), result("2001 MLD 2", 2), result("2001 MLD 3", 3)}
	out := DeduplicateResults(in, 2)
	require.Len(t, out, 2)
	assert.Equal(t, 3.0, out[0].Score)
	assert.Equal(t, 2.0, out[1].Score)
}

func TestDeduplicateResultsProperties(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	citations := []string{"PLD 2019 SC 123", "2020 SCMR 1011", "2015 CLC 400", "[2019] UKSC 5", "PLD 2010 LAH 55"}

	for round := 0; round < 50; round++ {
		n := rng.Intn(30)
		in := make([]models.SearchResult, n)
		best := map[string]float64{}
		for i := range in {
			c := citations[rng.Intn(len(citations))]
			in[i] = result(c, float64(rng.Intn(10000))/100)
			if s, ok := best[c]; !ok || in[i].Score > s {
				best[c] = in[i].Score
			}
		}
		limit := rng.Intn(6) + 1

		out := DeduplicateResults(in, limit)
		assert.LessOrEqual(t, len(out), limit)
		assert.Equal(t, min(limit, len(best)), len(out))

		seen := map[string]bool{}
		for i, r := range out {
			c := r.Judgment.Citation
			assert.False(t, seen[c])
			seen[c] = true
			assert.Equal(t, best[c], r.Score, "best score kept for %s", c)
			if i > 0 {
				assert.GreaterOrEqual(t, out[i-1].Score, r.Score)
			}
		}
	}
}
