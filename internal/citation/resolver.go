package citation

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/qanoonai/backend/internal/storage/models"
	"github.com/qanoonai/backend/pkg/logger"
)

// Lookup is the slice of the judgment store the resolver needs.
type Lookup interface {
	FindByNormalizedCitation(ctx context.Context, normalized string) ([]models.JudgmentSummary, error)
}

type Resolver struct {
	store Lookup
}

func NewResolver(store Lookup) *Resolver {
	return &Resolver{store: store}
}

// Resolve fills in TargetJudgmentID for each link whose normalized citation
// identifies exactly one judgment. Links with no match, or with a tie that
// the context cannot break, stay unresolved.
func (r *Resolver) Resolve(ctx context.Context, citing models.JudgmentSummary, links []models.CitationLink) (int, error) {
	resolved := 0
	for i := range links {
		link := &links[i]
		if link.Resolved() {
			continue
		}

		candidates, err := r.store.FindByNormalizedCitation(ctx, link.NormalizedCitation)
		if err != nil {
			return resolved, fmt.Errorf("failed to look up citation %q: %w", link.NormalizedCitation, err)
		}

		target := Disambiguate(candidates, citing, link.Context)
		if target == nil {
			if len(candidates) > 1 {
				logger.Debug("Ambiguous citation left unresolved",
					zap.String("citation", link.NormalizedCitation),
					zap.Int("candidates", len(candidates)))
			}
			continue
		}
		link.TargetJudgmentID = target
		resolved++
	}
	return resolved, nil
}

// Disambiguate picks the target among judgments sharing a normalized
// citation: a unique candidate wins outright, then a unique candidate from
// the citing judgment's jurisdiction, then one whose court is named in the
// surrounding text.
func Disambiguate(candidates []models.JudgmentSummary, citing models.JudgmentSummary, context string) *uuid.UUID {
	var pool []models.JudgmentSummary
	for _, c := range candidates {
		if c.ID != citing.ID {
			pool = append(pool, c)
		}
	}

	switch len(pool) {
	case 0:
		return nil
	case 1:
		return &pool[0].ID
	}

	var sameJurisdiction []models.JudgmentSummary
	for _, c := range pool {
		if c.Jurisdiction == citing.Jurisdiction {
			sameJurisdiction = append(sameJurisdiction, c)
		}
	}
	if len(sameJurisdiction) == 1 {
		return &sameJurisdiction[0].ID
	}
	if len(sameJurisdiction) > 1 {
		pool = sameJurisdiction
	}

	lower := strings.ToLower(context)
	var named []models.JudgmentSummary
	for _, c := range pool {
		if c.Court != "" && strings.Contains(lower, strings.ToLower(c.Court)) {
			named = append(named, c)
		}
	}
	if len(named) == 1 {
		return &named[0].ID
	}
	return nil
}
