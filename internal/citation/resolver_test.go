package citation

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/qanoonai/backend/internal/storage/models"
)

type fakeLookup struct {
	byCitation map[string][]models.JudgmentSummary
	err        error
}

func (f *fakeLookup) FindByNormalizedCitation(_ context.Context, normalized string) ([]models.JudgmentSummary, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.byCitation[normalized], nil
}

func summary(jurisdiction models.Jurisdiction, court string) models.JudgmentSummary {
	return models.JudgmentSummary{ID: uuid.New(), Jurisdiction: jurisdiction, Court: court}
}

func TestResolveFillsKnownTargets(t *testing.T) {
	target := summary(models.JurisdictionPakistan, "Supreme Court of Pakistan")
	store := &fakeLookup{byCitation: map[string][]models.JudgmentSummary{
		"PLD 2019 SC 123": {target},
	}}
	citing := summary(models.JurisdictionPakistan, "Lahore High Court")
	links := []models.CitationLink{
		{NormalizedCitation: "PLD 2019 SC 123"},
		{NormalizedCitation: "2020 SCMR 1011"},
	}

	n, err := NewResolver(store).Resolve(context.Background(), citing, links)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	require.NotNil(t, links[0].TargetJudgmentID)
	assert.Equal(t, target.ID, *links[0].TargetJudgmentID)
	assert.Nil(t, links[1].TargetJudgmentID)
}

func TestResolveSkipsResolvedLinks(t *testing.T) {
	existing := uuid.New()
	store := &fakeLookup{err: errors.New("should not be called")}
	links := []models.CitationLink{{NormalizedCitation: "PLD 2019 SC 123", TargetJudgmentID: &existing}}

	n, err := NewResolver(store).Resolve(context.Background(), models.JudgmentSummary{}, links)
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.Equal(t, existing, *links[0].TargetJudgmentID)
}

func TestResolvePropagatesStoreErrors(t *testing.T) {
	store := &fakeLookup{err: errors.New("connection refused")}
	links := []models.CitationLink{{NormalizedCitation: "PLD 2019 SC 123"}}

	_, err := NewResolver(store).Resolve(context.Background(), models.JudgmentSummary{}, links)
	assert.ErrorContains(t, err, "connection refused")
}

func TestDisambiguate(t *testing.T) {
	citing := summary(models.JurisdictionPakistan, "Lahore High Court")
	pk := summary(models.JurisdictionPakistan, "Supreme Court of Pakistan")
	uk := summary(models.JurisdictionUK, "Supreme Court")
	lhc := summary(models.JurisdictionPakistan, "Lahore High Court")
	shc := summary(models.JurisdictionPakistan, "Sindh High Court")

	t.Run("none", func(t *testing.T) {
		assert.Nil(t, Disambiguate(nil, citing, ""))
	})
	t.Run("self only", func(t *testing.T) {
		assert.Nil(t, Disambiguate([]models.JudgmentSummary{citing}, citing, ""))
	})
	t.Run("same jurisdiction", func(t *testing.T) {
		got := Disambiguate([]models.JudgmentSummary{uk, pk}, citing, "")
		require.NotNil(t, got)
		assert.Equal(t, pk.ID, *got)
	})
	t.Run("court named in context", func(t *testing.T) {
		got := Disambiguate([]models.JudgmentSummary{lhc, shc}, citing, "as the Sindh High Court held in 2019 CLC 12")
		require.NotNil(t, got)
		assert.Equal(t, shc.ID, *got)
	})
	t.Run("unbreakable tie", func(t *testing.T) {
		assert.Nil(t, Disambiguate([]models.JudgmentSummary{lhc, shc}, citing, "2019 CLC 12"))
	})
}
