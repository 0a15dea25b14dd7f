package ingestion

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/qanoonai/backend/internal/metrics"
	"github.com/qanoonai/backend/internal/storage/models"
	"github.com/qanoonai/backend/pkg/logger"
)

// ResolvePending retries every unresolved citation link against the
// current store contents and returns how many it resolved.
func (p *Pipeline) ResolvePending(ctx context.Context) (int, error) {
	total := 0
	after := uuid.Nil
	for {
		batch, err := p.store.UnresolvedLinks(ctx, after, p.cfg.ResolveBatchSize)
		if err != nil {
			return total, fmt.Errorf("failed to list unresolved links: %w", err)
		}
		if len(batch) == 0 {
			break
		}

		for _, pending := range batch {
			after = pending.Link.ID
			ok, err := p.resolveOne(ctx, pending)
			if err != nil {
				return total, err
			}
			if ok {
				total++
			}
		}

		if len(batch) < p.cfg.ResolveBatchSize {
			break
		}
	}

	if total > 0 {
		metrics.CitationLinks.WithLabelValues("late").Add(float64(total))
	}
	logger.Info("Citation resolution pass finished", zap.Int("resolved", total))
	return total, nil
}

func (p *Pipeline) resolveOne(ctx context.Context, pending models.PendingLink) (bool, error) {
	links := []models.CitationLink{pending.Link}
	n, err := p.resolver.Resolve(ctx, pending.Citing, links)
	if err != nil || n == 0 {
		return false, err
	}

	link := links[0]
	if err := p.store.SetLinkTarget(ctx, link.ID, *link.TargetJudgmentID); err != nil {
		return false, err
	}
	if p.graph != nil {
		if err := p.graph.AddCitation(ctx, link); err != nil {
			logger.Warn("Failed to project resolved citation to graph",
				zap.String("link_id", link.ID.String()),
				zap.Error(err),
			)
		}
	}
	return true, nil
}
