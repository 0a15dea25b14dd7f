// Package chunker splits judgment text into overlapping, structure-aligned
// segments sized for embedding.
//
// Every chunk owns a contiguous byte range of the source ("core"); cores
// tile the text without gaps, and each chunk after the first is prefixed with
// the tail of the previous core. Concatenating Text[Overlap:] over all chunks
// in order reproduces the input exactly.
package chunker

import (
	"math"
	"strings"

	"github.com/google/uuid"

	"github.com/qanoonai/backend/internal/storage/models"
)

type Config struct {
	MinTokens    int
	MaxTokens    int
	OverlapRatio float64
}

func DefaultConfig() Config {
	return Config{MinTokens: 200, MaxTokens: 500, OverlapRatio: 0.12}
}

type Chunk struct {
	Position int
	Text     string
	Label    string
	Start    int
	End      int
	Overlap  int
	Tokens   int
}

type Chunker struct {
	cfg       Config
	segmenter Segmenter
}

func New(cfg Config, segmenter Segmenter) *Chunker {
	if cfg.MinTokens <= 0 {
		cfg.MinTokens = DefaultConfig().MinTokens
	}
	if cfg.MaxTokens < cfg.MinTokens {
		cfg.MaxTokens = cfg.MinTokens
	}
	if cfg.OverlapRatio < 0 {
		cfg.OverlapRatio = 0
	}
	if segmenter == nil {
		segmenter = NewProseSegmenter()
	}
	return &Chunker{cfg: cfg, segmenter: segmenter}
}

// span is a half-open byte range of the source text.
type span struct {
	start   int
	end     int
	label   string
	heading bool
	tokens  int
}

func (c *Chunker) Chunk(text string) []Chunk {
	total := countTokens(text)
	if total <= c.cfg.MaxTokens {
		return []Chunk{{
			Position: 0,
			Text:     text,
			Label:    firstLabel(text),
			Start:    0,
			End:      len(text),
			Tokens:   total,
		}}
	}

	var pieces []span
	for _, unit := range structuralUnits(text) {
		if unit.tokens <= c.cfg.MaxTokens {
			pieces = append(pieces, unit)
			continue
		}
		pieces = append(pieces, c.splitOversized(text, unit)...)
	}

	cores := c.pack(pieces)
	return c.withOverlap(text, cores)
}

// ChunkJudgment produces store-ready chunks for a judgment.
func (c *Chunker) ChunkJudgment(j *models.Judgment) []models.Chunk {
	parts := c.Chunk(j.FullText)
	out := make([]models.Chunk, len(parts))
	for i, p := range parts {
		out[i] = models.Chunk{
			ID:         uuid.New(),
			JudgmentID: j.ID,
			Position:   p.Position,
			Text:       p.Text,
			Label:      p.Label,
			Overlap:    p.Overlap,
		}
	}
	return out
}

// Reconstruct joins chunks with their overlap removed.
func Reconstruct(chunks []Chunk) string {
	var b strings.Builder
	for _, ch := range chunks {
		b.WriteString(ch.Text[ch.Overlap:])
	}
	return b.String()
}

// splitOversized breaks a unit at sentence boundaries, falling back to word
// boundaries for sentences that alone exceed the maximum.
func (c *Chunker) splitOversized(text string, unit span) []span {
	sentences := sentenceSpans(c.segmenter, text, unit)

	var out []span
	cur := span{start: unit.start, end: unit.start, label: unit.label, heading: unit.heading}
	for _, s := range sentences {
		if s.tokens > c.cfg.MaxTokens {
			if cur.end > cur.start {
				out = append(out, cur)
			}
			out = append(out, wordSplit(text, s, c.cfg.MaxTokens)...)
			cur = span{start: s.end, end: s.end, label: unit.label}
			continue
		}
		if cur.end > cur.start && cur.tokens+s.tokens > c.cfg.MaxTokens {
			out = append(out, cur)
			cur = span{start: s.start, end: s.start, label: unit.label}
		}
		cur.end = s.end
		cur.tokens += s.tokens
	}
	if cur.end > cur.start {
		out = append(out, cur)
	}
	if len(out) > 0 {
		out[len(out)-1].end = unit.end
	}
	return out
}

func (c *Chunker) pack(pieces []span) []span {
	var cores []span
	var cur []span

	for _, p := range pieces {
		if len(cur) > 0 {
			size := sumTokens(cur)
			switch {
			case size+p.tokens > c.cfg.MaxTokens:
				// Trailing headings move forward with the text they introduce.
				k := len(cur)
				for k > 1 && cur[k-1].heading {
					k--
				}
				carry := append([]span(nil), cur[k:]...)
				cores = append(cores, merge(cur[:k]))
				cur = carry
				if len(cur) > 0 && sumTokens(cur)+p.tokens > c.cfg.MaxTokens {
					cores = append(cores, merge(cur))
					cur = nil
				}
			case p.heading && size >= c.cfg.MinTokens:
				cores = append(cores, merge(cur))
				cur = nil
			}
		}
		cur = append(cur, p)
	}
	if len(cur) > 0 {
		cores = append(cores, merge(cur))
	}

	if n := len(cores); n > 1 {
		last, prev := cores[n-1], cores[n-2]
		if last.tokens < c.cfg.MinTokens && prev.tokens+last.tokens <= c.cfg.MaxTokens {
			prev.end = last.end
			prev.tokens += last.tokens
			cores = append(cores[:n-2], prev)
		}
	}
	return cores
}

// merge joins adjacent pieces; the label is the one covering the most tokens.
func merge(pieces []span) span {
	out := span{start: pieces[0].start, end: pieces[len(pieces)-1].end}
	weight := map[string]int{}
	for _, p := range pieces {
		out.tokens += p.tokens
		if p.label == "" {
			continue
		}
		weight[p.label] += p.tokens
		if out.label == "" || weight[p.label] > weight[out.label] {
			out.label = p.label
		}
	}
	return out
}

func sumTokens(pieces []span) int {
	n := 0
	for _, p := range pieces {
		n += p.tokens
	}
	return n
}

func (c *Chunker) withOverlap(text string, cores []span) []Chunk {
	chunks := make([]Chunk, len(cores))
	for i, core := range cores {
		from := core.start
		if i > 0 && c.cfg.OverlapRatio > 0 {
			prev := cores[i-1]
			n := int(math.Ceil(float64(prev.tokens) * c.cfg.OverlapRatio))
			from = tailStart(text, prev.start, prev.end, n)
		}
		chunks[i] = Chunk{
			Position: i,
			Text:     text[from:core.end],
			Label:    core.label,
			Start:    core.start,
			End:      core.end,
			Overlap:  core.start - from,
			Tokens:   core.tokens,
		}
	}
	return chunks
}

// tailStart returns the offset of the n-th last word within text[start:end].
func tailStart(text string, start, end, n int) int {
	if n <= 0 {
		return end
	}
	starts := wordStarts(text[start:end])
	if len(starts) == 0 {
		return end
	}
	if n > len(starts) {
		n = len(starts)
	}
	return start + starts[len(starts)-n]
}

func wordSplit(text string, s span, maxTokens int) []span {
	starts := wordStarts(text[s.start:s.end])
	var out []span
	for i := 0; i < len(starts); i += maxTokens {
		from := s.start + starts[i]
		if i == 0 {
			from = s.start
		}
		to := s.end
		tokens := len(starts) - i
		if i+maxTokens < len(starts) {
			to = s.start + starts[i+maxTokens]
			tokens = maxTokens
		}
		out = append(out, span{start: from, end: to, label: s.label, tokens: tokens})
	}
	return out
}

func wordStarts(s string) []int {
	var starts []int
	inWord := false
	for i, r := range s {
		space := isSpace(r)
		if !space && !inWord {
			starts = append(starts, i)
		}
		inWord = !space
	}
	return starts
}

func countTokens(s string) int {
	return len(strings.Fields(s))
}

func isSpace(r rune) bool {
	switch r {
	case ' ', '\t', '\n', '\r', '\v', '\f', 0x85, 0xA0:
		return true
	}
	return false
}
