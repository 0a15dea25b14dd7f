package postgres

import (
	"context"
	"fmt"
	"strings"

	"github.com/qanoonai/backend/internal/storage/models"
)

func (c *Client) Stats(ctx context.Context) (*models.StoreStats, error) {
	var s models.StoreStats
	err := c.pool.QueryRow(ctx, `
		SELECT
			(SELECT count(*) FROM judgments),
			(SELECT count(*) FROM judgments WHERE embedding IS NOT NULL),
			(SELECT count(*) FROM chunks),
			(SELECT count(*) FROM chunks WHERE embedding IS NOT NULL),
			(SELECT count(*) FROM citation_links),
			(SELECT count(*) FROM citation_links WHERE target_judgment_id IS NOT NULL),
			COALESCE((SELECT min(year) FROM judgments), 0),
			COALESCE((SELECT max(year) FROM judgments), 0)`,
	).Scan(&s.TotalJudgments, &s.EmbeddedJudgments, &s.TotalChunks, &s.EmbeddedChunks,
		&s.CitationLinks, &s.ResolvedCitationLinks, &s.MinYear, &s.MaxYear)
	if err != nil {
		return nil, fmt.Errorf("failed to query store stats: %w", err)
	}

	if s.ByJurisdiction, err = c.countBy(ctx, "jurisdiction"); err != nil {
		return nil, err
	}
	if s.ByCourtTier, err = c.countBy(ctx, "court_tier"); err != nil {
		return nil, err
	}
	return &s, nil
}

// countBy groups judgments by a fixed column name, never user input.
func (c *Client) countBy(ctx context.Context, column string) ([]models.CountBucket, error) {
	rows, err := c.pool.Query(ctx, `SELECT `+column+`, count(*) FROM judgments GROUP BY 1 ORDER BY 2 DESC, 1`)
	if err != nil {
		return nil, fmt.Errorf("failed to count judgments by %s: %w", column, err)
	}
	defer rows.Close()

	buckets := []models.CountBucket{}
	for rows.Next() {
		var b models.CountBucket
		if err := rows.Scan(&b.Key, &b.Count); err != nil {
			return nil, fmt.Errorf("failed to scan count: %w", err)
		}
		buckets = append(buckets, b)
	}
	return buckets, rows.Err()
}

type indexDef struct {
	name string
	def  string
}

// IndexHealth reports on the vector index over chunk embeddings. It only
// reads the catalog.
func (c *Client) IndexHealth(ctx context.Context) (*models.IndexHealth, error) {
	rows, err := c.pool.Query(ctx, `
		SELECT indexname, indexdef FROM pg_indexes
		WHERE schemaname = current_schema() AND tablename = 'chunks'`)
	if err != nil {
		return nil, fmt.Errorf("failed to inspect indexes: %w", err)
	}
	defer rows.Close()

	var defs []indexDef
	for rows.Next() {
		var d indexDef
		if err := rows.Scan(&d.name, &d.def); err != nil {
			return nil, fmt.Errorf("failed to scan index: %w", err)
		}
		defs = append(defs, d)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	h := classifyIndexes(defs)
	return &h, nil
}

// classifyIndexes prefers an HNSW index on the embedding column, falls back
// to IVFFlat as legacy, and reports missing otherwise.
func classifyIndexes(defs []indexDef) models.IndexHealth {
	var legacy *indexDef
	for i := range defs {
		def := strings.ToLower(defs[i].def)
		if !strings.Contains(def, "(embedding") {
			continue
		}
		switch {
		case strings.Contains(def, "using hnsw"):
			return models.IndexHealth{Status: models.IndexHealthy, IndexName: defs[i].name, IndexType: "hnsw"}
		case strings.Contains(def, "using ivfflat"):
			legacy = &defs[i]
		}
	}
	if legacy != nil {
		return models.IndexHealth{Status: models.IndexLegacy, IndexName: legacy.name, IndexType: "ivfflat"}
	}
	return models.IndexHealth{Status: models.IndexMissing}
}
