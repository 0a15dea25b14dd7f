package postgres

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/qanoonai/backend/internal/storage/models"
)

// ReplaceCitationLinks swaps the judgment's outbound links for links.
func (c *Client) ReplaceCitationLinks(ctx context.Context, citingID uuid.UUID, links []models.CitationLink) error {
	tx, err := c.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `DELETE FROM citation_links WHERE citing_judgment_id = $1`, citingID); err != nil {
		return fmt.Errorf("failed to delete citation links: %w", err)
	}

	batch := &pgx.Batch{}
	for _, l := range links {
		id := l.ID
		if id == uuid.Nil {
			id = uuid.New()
		}
		mentions := l.MentionCount
		if mentions < 1 {
			mentions = 1
		}
		batch.Queue(`
			INSERT INTO citation_links (id, citing_judgment_id, raw_citation, normalized_citation,
				target_judgment_id, context, mention_count)
			VALUES ($1, $2, $3, $4, $5, $6, $7)
			ON CONFLICT (citing_judgment_id, normalized_citation)
			DO UPDATE SET mention_count = citation_links.mention_count + EXCLUDED.mention_count`,
			id, citingID, l.RawCitation, l.NormalizedCitation, l.TargetJudgmentID, l.Context, mentions)
	}
	if err := tx.SendBatch(ctx, batch).Close(); err != nil {
		return fmt.Errorf("failed to insert citation links: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit citation links: %w", err)
	}
	return nil
}

// UnresolvedLinks pages through links without a target in id order,
// starting after the given id.
func (c *Client) UnresolvedLinks(ctx context.Context, after uuid.UUID, limit int) ([]models.PendingLink, error) {
	rows, err := c.pool.Query(ctx, `
		SELECT l.id, l.citing_judgment_id, l.raw_citation, l.normalized_citation, l.context,
			l.mention_count, `+summaryColumns+`
		FROM citation_links l
		JOIN judgments j ON j.id = l.citing_judgment_id
		WHERE l.target_judgment_id IS NULL AND l.id > $1
		ORDER BY l.id
		LIMIT $2`, after, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query unresolved links: %w", err)
	}
	defer rows.Close()

	var out []models.PendingLink
	for rows.Next() {
		var p models.PendingLink
		l, s := &p.Link, &p.Citing
		if err := rows.Scan(&l.ID, &l.CitingJudgmentID, &l.RawCitation, &l.NormalizedCitation,
			&l.Context, &l.MentionCount, &s.ID, &s.CaseName, &s.Citation, &s.NormalizedCitation,
			&s.Court, &s.CourtTier, &s.Jurisdiction, &s.Year, &s.LegalAreas); err != nil {
			return nil, fmt.Errorf("failed to scan unresolved link: %w", err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// SetLinkTarget resolves a link that is still unresolved.
func (c *Client) SetLinkTarget(ctx context.Context, linkID, targetID uuid.UUID) error {
	_, err := c.pool.Exec(ctx, `
		UPDATE citation_links SET target_judgment_id = $2
		WHERE id = $1 AND target_judgment_id IS NULL`, linkID, targetID)
	if err != nil {
		return fmt.Errorf("failed to resolve citation link: %w", err)
	}
	return nil
}

func (c *Client) OutboundCitations(ctx context.Context, judgmentID uuid.UUID) ([]models.CitationEdge, error) {
	rows, err := c.pool.Query(ctx, `
		SELECT l.id, l.citing_judgment_id, l.raw_citation, l.normalized_citation,
			l.target_judgment_id, l.context, l.mention_count,
			j.id, j.case_name, j.citation, j.normalized_citation, j.court,
			j.court_tier, j.jurisdiction, j.year, j.legal_areas
		FROM citation_links l
		LEFT JOIN judgments j ON j.id = l.target_judgment_id
		WHERE l.citing_judgment_id = $1
		ORDER BY l.normalized_citation`, judgmentID)
	if err != nil {
		return nil, fmt.Errorf("failed to query outbound citations: %w", err)
	}
	defer rows.Close()

	edges := []models.CitationEdge{}
	for rows.Next() {
		var (
			e                         models.CitationEdge
			tID                       *uuid.UUID
			tCase, tCite, tNorm, tCrt *string
			tTier, tJur               *string
			tYear                     *int
			tAreas                    []string
		)
		l := &e.Link
		if err := rows.Scan(&l.ID, &l.CitingJudgmentID, &l.RawCitation, &l.NormalizedCitation,
			&l.TargetJudgmentID, &l.Context, &l.MentionCount,
			&tID, &tCase, &tCite, &tNorm, &tCrt, &tTier, &tJur, &tYear, &tAreas); err != nil {
			return nil, fmt.Errorf("failed to scan outbound citation: %w", err)
		}
		if tID != nil {
			e.Resolved = true
			e.Target = &models.JudgmentSummary{
				ID:                 *tID,
				CaseName:           *tCase,
				Citation:           *tCite,
				NormalizedCitation: *tNorm,
				Court:              *tCrt,
				CourtTier:          models.CourtTier(*tTier),
				Jurisdiction:       models.Jurisdiction(*tJur),
				Year:               *tYear,
				LegalAreas:         tAreas,
			}
		}
		edges = append(edges, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating outbound citations: %w", err)
	}
	return edges, nil
}

func (c *Client) InboundCitations(ctx context.Context, judgmentID uuid.UUID) ([]models.InboundCitation, error) {
	rows, err := c.pool.Query(ctx, `
		SELECT l.id, l.citing_judgment_id, l.raw_citation, l.normalized_citation,
			l.target_judgment_id, l.context, l.mention_count, `+summaryColumns+`
		FROM citation_links l
		JOIN judgments j ON j.id = l.citing_judgment_id
		WHERE l.target_judgment_id = $1
		ORDER BY j.year DESC, j.case_name`, judgmentID)
	if err != nil {
		return nil, fmt.Errorf("failed to query inbound citations: %w", err)
	}
	defer rows.Close()

	inbound := []models.InboundCitation{}
	for rows.Next() {
		var in models.InboundCitation
		l, s := &in.Link, &in.Citing
		if err := rows.Scan(&l.ID, &l.CitingJudgmentID, &l.RawCitation, &l.NormalizedCitation,
			&l.TargetJudgmentID, &l.Context, &l.MentionCount, &s.ID, &s.CaseName, &s.Citation,
			&s.NormalizedCitation, &s.Court, &s.CourtTier, &s.Jurisdiction, &s.Year, &s.LegalAreas); err != nil {
			return nil, fmt.Errorf("failed to scan inbound citation: %w", err)
		}
		inbound = append(inbound, in)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating inbound citations: %w", err)
	}
	return inbound, nil
}
