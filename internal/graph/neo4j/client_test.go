package neo4j

import (
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/qanoonai/backend/internal/storage/models"
)

func TestChainQuery(t *testing.T) {
	out := chainQuery(models.ChainOutbound, 2)
	assert.Contains(t, out, "(root)-[:CITES*1..2]->(:Judgment)")
	assert.Contains(t, out, "$id")
	assert.Contains(t, out, "$limit")

	in := chainQuery(models.ChainInbound, 3)
	assert.Contains(t, in, "(root)<-[:CITES*1..3]-(:Judgment)")
}

func TestChainQueryClampsDepth(t *testing.T) {
	assert.Contains(t, chainQuery(models.ChainOutbound, 99), "*1..3]")
	assert.Contains(t, chainQuery(models.ChainOutbound, 0), "*1..1]")
	assert.False(t, strings.Contains(chainQuery(models.ChainOutbound, -4), "*1..-4"))
}

func TestCitationParamsSkipsUnresolved(t *testing.T) {
	target := uuid.New()
	params := citationParams([]models.CitationLink{
		{RawCitation: "PLD 2019 SC 123", TargetJudgmentID: &target, MentionCount: 3},
		{RawCitation: "2001 CLC 1"},
		{RawCitation: "2020 SCMR 5", TargetJudgmentID: &target},
	})

	require.Len(t, params, 2)
	first := params[0].(map[string]any)
	assert.Equal(t, target.String(), first["target_id"])
	assert.Equal(t, "PLD 2019 SC 123", first["citation"])
	assert.Equal(t, int64(3), first["mention_count"])
	assert.Equal(t, int64(1), params[1].(map[string]any)["mention_count"])
}

func TestChainEdge(t *testing.T) {
	from, to := uuid.New(), uuid.New()
	record := &neo4j.Record{
		Keys: []string{"from_id", "from_citation", "to_id", "to_citation", "to_case_name", "citation", "mention_count"},
		Values: []any{from.String(), "2020 SCMR 1011", to.String(), "PLD 2019 SC 123",
			"Khan v. Federation", "P.L.D. 2019 S.C. 123", int64(2)},
	}

	edge, err := chainEdge(record)
	require.NoError(t, err)
	assert.Equal(t, models.ChainEdge{
		FromID:       from,
		FromCitation: "2020 SCMR 1011",
		ToID:         to,
		ToCitation:   "PLD 2019 SC 123",
		ToCaseName:   "Khan v. Federation",
		Citation:     "P.L.D. 2019 S.C. 123",
		MentionCount: 2,
	}, edge)
}

func TestChainEdgeRejectsBadIDs(t *testing.T) {
	record := &neo4j.Record{Keys: []string{"from_id", "to_id"}, Values: []any{"not-a-uuid", nil}}
	_, err := chainEdge(record)
	assert.Error(t, err)
}
