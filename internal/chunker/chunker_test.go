package chunker

import (
	"fmt"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/qanoonai/backend/internal/storage/models"
)

func sentence(i int) string {
	return fmt.Sprintf("The learned counsel for the appellant contended in ground %d that the impugned order suffers from a material illegality.", i)
}

func paragraph(n, from int) string {
	parts := make([]string, n)
	for i := range parts {
		parts[i] = sentence(from + i)
	}
	return strings.Join(parts, " ")
}

func judgment() string {
	var b strings.Builder
	b.WriteString("IN THE SUPREME COURT OF PAKISTAN\n\nJUDGMENT\n\n")
	b.WriteString("FACTS\n\n")
	for i := 1; i <= 6; i++ {
		fmt.Fprintf(&b, "%d. %s\n\n", i, paragraph(4, i*10))
	}
	b.WriteString("ARGUMENTS\n\n")
	for i := 7; i <= 12; i++ {
		fmt.Fprintf(&b, "%d. %s\n\n", i, paragraph(5, i*10))
	}
	b.WriteString("HELD\n\n")
	b.WriteString("13. " + paragraph(40, 500) + "\n\n")
	b.WriteString("ORDER\n\nThe appeal is allowed.\n")
	return b.String()
}

func testChunker() *Chunker {
	return New(DefaultConfig(), RuleSegmenter{})
}

func TestChunkReconstructsSource(t *testing.T) {
	text := judgment()
	chunks := testChunker().Chunk(text)
	require.Greater(t, len(chunks), 1)
	assert.Equal(t, text, Reconstruct(chunks))
}

func TestChunkReconstructsWithProse(t *testing.T) {
	text := judgment()
	chunks := New(DefaultConfig(), nil).Chunk(text)
	require.Greater(t, len(chunks), 1)
	assert.Equal(t, text, Reconstruct(chunks))
}

func TestChunkCoresTileText(t *testing.T) {
	text := judgment()
	chunks := testChunker().Chunk(text)
	assert.Equal(t, 0, chunks[0].Start)
	assert.Equal(t, 0, chunks[0].Overlap)
	for i := 1; i < len(chunks); i++ {
		assert.Equal(t, chunks[i-1].End, chunks[i].Start, "chunk %d", i)
		assert.Equal(t, i, chunks[i].Position)
		assert.Greater(t, chunks[i].Overlap, 0)
		assert.True(t, strings.HasSuffix(text[:chunks[i].Start], chunks[i].Text[:chunks[i].Overlap]))
	}
	assert.Equal(t, len(text), chunks[len(chunks)-1].End)
}

func TestChunkSizeBand(t *testing.T) {
	cfg := DefaultConfig()
	chunks := testChunker().Chunk(judgment())
	for _, ch := range chunks {
		core := ch.Text[ch.Overlap:]
		assert.LessOrEqual(t, countTokens(core), cfg.MaxTokens, "chunk %d", ch.Position)
	}
}

func TestChunkShortTextIsSingleChunk(t *testing.T) {
	for name, text := range map[string]string{
		"empty":    "",
		"short":    "ORDER\n\nThe petition is dismissed.",
		"at limit": strings.TrimSpace(strings.Repeat("word ", 500)),
	} {
		t.Run(name, func(t *testing.T) {
			chunks := testChunker().Chunk(text)
			require.Len(t, chunks, 1)
			assert.Equal(t, text, chunks[0].Text)
			assert.Equal(t, 0, chunks[0].Overlap)
		})
	}
}

func TestChunkJustOverLimitSplits(t *testing.T) {
	text := strings.TrimSpace(strings.Repeat("word ", 501))
	chunks := testChunker().Chunk(text)
	require.Len(t, chunks, 2)
	assert.Equal(t, text, Reconstruct(chunks))
}

func TestChunkSplitsUnpunctuatedTextAtWords(t *testing.T) {
	text := strings.TrimSpace(strings.Repeat("lorem ", 1700))
	chunks := testChunker().Chunk(text)
	require.Len(t, chunks, 4)
	for _, ch := range chunks {
		core := ch.Text[ch.Overlap:]
		assert.False(t, strings.HasPrefix(core, "orem"))
		assert.LessOrEqual(t, countTokens(core), 500)
	}
	assert.Equal(t, text, Reconstruct(chunks))
}

func TestChunkLabels(t *testing.T) {
	chunks := testChunker().Chunk(judgment())
	labels := make([]string, 0, len(chunks))
	for _, ch := range chunks {
		labels = append(labels, ch.Label)
	}
	assert.Contains(t, labels, "facts")
	assert.Contains(t, labels, "holding")
}

func TestChunkHeadingStartsNewChunk(t *testing.T) {
	text := judgment()
	chunks := testChunker().Chunk(text)
	heldAt := strings.Index(text, "HELD\n")
	found := false
	for _, ch := range chunks {
		if ch.Start == heldAt {
			found = true
		}
	}
	assert.True(t, found, "expected a chunk boundary at the HELD heading")
}

func TestHeadingLabel(t *testing.T) {
	tests := []struct {
		line    string
		label   string
		heading bool
	}{
		{"FACTS", "facts", true},
		{"Short Order:", "order", true},
		{"  HELD  ", "holding", true},
		{"IN THE LAHORE HIGH COURT", "", true},
		{"The appeal is allowed.", "", false},
		{"", "", false},
		{"2019", "", false},
	}
	for _, tt := range tests {
		label, heading := headingLabel(tt.line)
		assert.Equal(t, tt.heading, heading, tt.line)
		assert.Equal(t, tt.label, label, tt.line)
	}
}

func TestRuleSegmenterSkipsAbbreviations(t *testing.T) {
	text := "Reliance was placed on Art. 199 of the Constitution. The case of Mr. Khan v. State was cited. It was distinguished."
	starts := RuleSegmenter{}.SentenceStarts(text)
	require.Len(t, starts, 3)
	assert.True(t, strings.HasPrefix(text[starts[1]:], "The case"))
	assert.True(t, strings.HasPrefix(text[starts[2]:], "It was"))
}

func TestChunkJudgment(t *testing.T) {
	j := &models.Judgment{ID: uuid.New(), FullText: judgment()}
	chunks := testChunker().ChunkJudgment(j)
	require.NotEmpty(t, chunks)
	for i, ch := range chunks {
		assert.Equal(t, j.ID, ch.JudgmentID)
		assert.Equal(t, i, ch.Position)
		assert.NotEqual(t, uuid.Nil, ch.ID)
	}
}
