package postgres

import (
	"context"
	"fmt"
	"strings"

	"github.com/qanoonai/backend/internal/storage/models"
)

type queryArgs struct {
	args []any
}

func (a *queryArgs) add(v any) string {
	a.args = append(a.args, v)
	return fmt.Sprintf("$%d", len(a.args))
}

// filterClause renders structured predicates against the judgments alias j.
func filterClause(f models.SearchFilters, a *queryArgs) string {
	var preds []string

	if len(f.CourtTiers) > 0 {
		tiers := make([]string, len(f.CourtTiers))
		for i, t := range f.CourtTiers {
			tiers[i] = string(t)
		}
		preds = append(preds, "j.court_tier = ANY("+a.add(tiers)+")")
	}
	if len(f.Jurisdictions) > 0 {
		js := make([]string, len(f.Jurisdictions))
		for i, j := range f.Jurisdictions {
			js[i] = string(j)
		}
		preds = append(preds, "j.jurisdiction = ANY("+a.add(js)+")")
	}
	if f.Years != nil {
		if f.Years.From > 0 {
			preds = append(preds, "j.year >= "+a.add(f.Years.From))
		}
		if f.Years.To > 0 {
			preds = append(preds, "j.year <= "+a.add(f.Years.To))
		}
	}
	if len(f.LegalAreas) > 0 {
		preds = append(preds, "j.legal_areas @> "+a.add(f.LegalAreas)+"::text[]")
	}
	if court := strings.TrimSpace(f.Court); court != "" {
		preds = append(preds, "j.court ILIKE '%' || "+a.add(court)+"::text || '%'")
	}

	if len(preds) == 0 {
		return "TRUE"
	}
	return strings.Join(preds, " AND ")
}

// buildHybridQuery unions the nearest chunks by cosine distance with the
// best full-text matches, both under the same filters, and reports both
// signals for every candidate.
func buildHybridQuery(q models.HybridQuery) (string, []any) {
	a := &queryArgs{}
	vec := a.add(vectorArg(q.Embedding))
	text := a.add(q.Text)
	where := filterClause(q.Filters, a)
	limit := a.add(q.CandidateLimit)

	sql := `
	WITH vector_hits AS (
		SELECT c.id, 1 - (c.embedding <=> ` + vec + `::vector) AS vector_similarity
		FROM chunks c
		JOIN judgments j ON j.id = c.judgment_id
		WHERE c.embedding IS NOT NULL AND ` + where + `
		ORDER BY c.embedding <=> ` + vec + `::vector
		LIMIT ` + limit + `
	),
	keyword_hits AS (
		SELECT c.id, ts_rank_cd(c.tsv, q, 32) AS keyword_rank
		FROM chunks c
		JOIN judgments j ON j.id = c.judgment_id,
			plainto_tsquery('english', ` + text + `) q
		WHERE c.tsv @@ q AND ` + where + `
		ORDER BY keyword_rank DESC
		LIMIT ` + limit + `
	),
	candidates AS (
		SELECT COALESCE(v.id, k.id) AS id, v.vector_similarity, k.keyword_rank,
			CASE WHEN v.id IS NOT NULL THEN 'vector' ELSE 'keyword' END AS path
		FROM vector_hits v
		FULL OUTER JOIN keyword_hits k ON k.id = v.id
	)
	SELECT ` + summaryColumns + `,
		c.id, c.position, c.text, c.label,
		COALESCE(cand.vector_similarity,
			CASE WHEN c.embedding IS NULL THEN 0 ELSE 1 - (c.embedding <=> ` + vec + `::vector) END),
		COALESCE(cand.keyword_rank, ts_rank_cd(c.tsv, plainto_tsquery('english', ` + text + `), 32)),
		cand.path
	FROM candidates cand
	JOIN chunks c ON c.id = cand.id
	JOIN judgments j ON j.id = c.judgment_id`

	return sql, a.args
}

const (
	minEfSearch = 40
	// maxEfSearch is pgvector's upper bound for hnsw.ef_search.
	maxEfSearch = 1000
	// filteredEfFactor widens the HNSW search when predicates discard
	// neighbours after the index scan.
	filteredEfFactor = 4
)

// efSearch sizes hnsw.ef_search so the vector leg can return
// CandidateLimit rows even after filtering.
func efSearch(q models.HybridQuery) int {
	ef := q.CandidateLimit
	if filterClause(q.Filters, &queryArgs{}) != "TRUE" {
		ef *= filteredEfFactor
	}
	return max(minEfSearch, min(ef, maxEfSearch))
}

func (c *Client) HybridSearch(ctx context.Context, q models.HybridQuery) ([]models.ChunkHit, error) {
	sql, args := buildHybridQuery(q)

	tx, err := c.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin hybrid search: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	// SET does not accept bind parameters; ef is an int computed above.
	if _, err := tx.Exec(ctx, fmt.Sprintf("SET LOCAL hnsw.ef_search = %d", efSearch(q))); err != nil {
		return nil, fmt.Errorf("failed to set hnsw.ef_search: %w", err)
	}

	rows, err := tx.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to run hybrid search: %w", err)
	}
	defer rows.Close()

	var hits []models.ChunkHit
	for rows.Next() {
		var h models.ChunkHit
		s := &h.Judgment
		if err := rows.Scan(&s.ID, &s.CaseName, &s.Citation, &s.NormalizedCitation, &s.Court,
			&s.CourtTier, &s.Jurisdiction, &s.Year, &s.LegalAreas,
			&h.ChunkID, &h.Position, &h.Text, &h.Label,
			&h.VectorSimilarity, &h.KeywordRank, &h.Path); err != nil {
			return nil, fmt.Errorf("failed to scan search hit: %w", err)
		}
		hits = append(hits, h)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating search hits: %w", err)
	}
	rows.Close()

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to finish hybrid search: %w", err)
	}
	return hits, nil
}
