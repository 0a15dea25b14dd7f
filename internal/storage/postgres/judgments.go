package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/pgvector/pgvector-go"

	"github.com/qanoonai/backend/internal/storage/models"
)

const summaryColumns = `j.id, j.case_name, j.citation, j.normalized_citation, j.court,
	j.court_tier, j.jurisdiction, j.year, j.legal_areas`

func scanSummary(row pgx.Row, s *models.JudgmentSummary) error {
	return row.Scan(&s.ID, &s.CaseName, &s.Citation, &s.NormalizedCitation, &s.Court,
		&s.CourtTier, &s.Jurisdiction, &s.Year, &s.LegalAreas)
}

func vectorArg(v []float32) any {
	if len(v) == 0 {
		return nil
	}
	return pgvector.NewVector(v)
}

// UpsertJudgment stores j keyed by (jurisdiction, normalized citation). A
// re-ingested judgment keeps its id and loses its document embedding until
// new chunks are saved. j.ID and timestamps are updated from the store.
func (c *Client) UpsertJudgment(ctx context.Context, j *models.Judgment) error {
	if j.ID == uuid.Nil {
		j.ID = uuid.New()
	}
	areas := j.LegalAreas
	if areas == nil {
		areas = []string{}
	}

	err := c.pool.QueryRow(ctx, `
		INSERT INTO judgments (id, case_name, citation, normalized_citation, court, court_tier,
			jurisdiction, year, full_text, embedding, legal_areas)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, NULL, $10)
		ON CONFLICT (jurisdiction, normalized_citation) DO UPDATE SET
			case_name = EXCLUDED.case_name,
			citation = EXCLUDED.citation,
			court = EXCLUDED.court,
			court_tier = EXCLUDED.court_tier,
			year = EXCLUDED.year,
			full_text = EXCLUDED.full_text,
			embedding = NULL,
			legal_areas = EXCLUDED.legal_areas,
			updated_at = now()
		RETURNING id, created_at, updated_at`,
		j.ID, j.CaseName, j.Citation, j.NormalizedCitation, j.Court, string(j.CourtTier),
		string(j.Jurisdiction), j.Year, j.FullText, areas,
	).Scan(&j.ID, &j.CreatedAt, &j.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to upsert judgment %s: %w", j.Citation, err)
	}
	return nil
}

// SaveChunks replaces the judgment's chunks and sets its document
// embedding in one transaction. A nil docEmbedding leaves the judgment
// unembedded.
func (c *Client) SaveChunks(ctx context.Context, judgmentID uuid.UUID, chunks []models.Chunk, docEmbedding []float32) error {
	tx, err := c.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `DELETE FROM chunks WHERE judgment_id = $1`, judgmentID); err != nil {
		return fmt.Errorf("failed to delete chunks: %w", err)
	}

	batch := &pgx.Batch{}
	for _, ch := range chunks {
		id := ch.ID
		if id == uuid.Nil {
			id = uuid.New()
		}
		batch.Queue(`
			INSERT INTO chunks (id, judgment_id, position, text, label, overlap, embedding)
			VALUES ($1, $2, $3, $4, $5, $6, $7::vector)`,
			id, judgmentID, ch.Position, ch.Text, ch.Label, ch.Overlap, vectorArg(ch.Embedding))
	}
	if err := tx.SendBatch(ctx, batch).Close(); err != nil {
		return fmt.Errorf("failed to insert chunks: %w", err)
	}

	if _, err := tx.Exec(ctx, `UPDATE judgments SET embedding = $2::vector, updated_at = now() WHERE id = $1`,
		judgmentID, vectorArg(docEmbedding)); err != nil {
		return fmt.Errorf("failed to set judgment embedding: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit chunks: %w", err)
	}
	return nil
}

// GetJudgment returns nil, nil when no judgment has the id.
func (c *Client) GetJudgment(ctx context.Context, id uuid.UUID) (*models.Judgment, error) {
	var j models.Judgment
	err := c.pool.QueryRow(ctx, `
		SELECT id, case_name, citation, normalized_citation, court, court_tier, jurisdiction,
			year, full_text, legal_areas, created_at, updated_at
		FROM judgments WHERE id = $1`, id,
	).Scan(&j.ID, &j.CaseName, &j.Citation, &j.NormalizedCitation, &j.Court, &j.CourtTier,
		&j.Jurisdiction, &j.Year, &j.FullText, &j.LegalAreas, &j.CreatedAt, &j.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get judgment: %w", err)
	}
	return &j, nil
}

func (c *Client) GetChunks(ctx context.Context, judgmentID uuid.UUID) ([]models.Chunk, error) {
	rows, err := c.pool.Query(ctx, `
		SELECT id, judgment_id, position, text, label, overlap
		FROM chunks WHERE judgment_id = $1 ORDER BY position`, judgmentID)
	if err != nil {
		return nil, fmt.Errorf("failed to query chunks: %w", err)
	}
	defer rows.Close()

	chunks := []models.Chunk{}
	for rows.Next() {
		var ch models.Chunk
		if err := rows.Scan(&ch.ID, &ch.JudgmentID, &ch.Position, &ch.Text, &ch.Label, &ch.Overlap); err != nil {
			return nil, fmt.Errorf("failed to scan chunk: %w", err)
		}
		chunks = append(chunks, ch)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating chunks: %w", err)
	}
	return chunks, nil
}

func (c *Client) FindByNormalizedCitation(ctx context.Context, normalized string) ([]models.JudgmentSummary, error) {
	rows, err := c.pool.Query(ctx, `SELECT `+summaryColumns+`
		FROM judgments j WHERE j.normalized_citation = $1`, normalized)
	if err != nil {
		return nil, fmt.Errorf("failed to find judgments by citation: %w", err)
	}
	defer rows.Close()

	var out []models.JudgmentSummary
	for rows.Next() {
		var s models.JudgmentSummary
		if err := scanSummary(rows, &s); err != nil {
			return nil, fmt.Errorf("failed to scan judgment: %w", err)
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// Browse lists judgments matching filters, newest first, with the total
// number of matches.
func (c *Client) Browse(ctx context.Context, filters models.SearchFilters, limit, offset int) ([]models.JudgmentSummary, int, error) {
	a := &queryArgs{}
	where := filterClause(filters, a)
	limitArg, offsetArg := a.add(limit), a.add(offset)

	rows, err := c.pool.Query(ctx, `SELECT `+summaryColumns+`, count(*) OVER ()
		FROM judgments j
		WHERE `+where+`
		ORDER BY j.year DESC, j.case_name, j.id
		LIMIT `+limitArg+` OFFSET `+offsetArg, a.args...)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to browse judgments: %w", err)
	}
	defer rows.Close()

	out := []models.JudgmentSummary{}
	total := 0
	for rows.Next() {
		var s models.JudgmentSummary
		if err := rows.Scan(&s.ID, &s.CaseName, &s.Citation, &s.NormalizedCitation, &s.Court,
			&s.CourtTier, &s.Jurisdiction, &s.Year, &s.LegalAreas, &total); err != nil {
			return nil, 0, fmt.Errorf("failed to scan judgment: %w", err)
		}
		out = append(out, s)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("error iterating judgments: %w", err)
	}
	if len(out) == 0 && offset > 0 {
		if err := c.pool.QueryRow(ctx, `SELECT count(*) FROM judgments j WHERE `+where,
			a.args[:len(a.args)-2]...).Scan(&total); err != nil {
			return nil, 0, fmt.Errorf("failed to count judgments: %w", err)
		}
	}
	return out, total, nil
}
