package chunker

import (
	"regexp"
	"sort"
	"strings"

	"github.com/jdkato/prose/v2"
)

// Segmenter finds sentence start offsets within text.
type Segmenter interface {
	SentenceStarts(text string) []int
}

type proseSegmenter struct {
	fallback Segmenter
}

// NewProseSegmenter segments with prose's punkt model and falls back to
// punctuation rules when the model output cannot be aligned with the input.
func NewProseSegmenter() Segmenter {
	return &proseSegmenter{fallback: RuleSegmenter{}}
}

func (p *proseSegmenter) SentenceStarts(text string) []int {
	doc, err := prose.NewDocument(text,
		prose.WithTokenization(false),
		prose.WithTagging(false),
		prose.WithExtraction(false),
	)
	if err != nil {
		return p.fallback.SentenceStarts(text)
	}

	var starts []int
	cursor := 0
	for _, s := range doc.Sentences() {
		sentence := strings.TrimSpace(s.Text)
		if sentence == "" {
			continue
		}
		idx := strings.Index(text[cursor:], sentence)
		if idx < 0 {
			return p.fallback.SentenceStarts(text)
		}
		starts = append(starts, cursor+idx)
		cursor += idx + len(sentence)
	}
	return starts
}

var (
	sentenceEnd = regexp.MustCompile(`[.!?]["')\]]*\s+["'(\[]?[A-Z0-9]`)
	// Abbreviations common in Pakistani and English judgments.
	abbreviation = regexp.MustCompile(`(?i)(?:\b(?:v|vs|no|nos|art|arts|s|ss|sec|r|mr|mrs|ms|dr|cr|crl|p|pp|para|paras|ltd|co|inc|j|cj|hon|ors|etc|e\.g|i\.e|viz|u/s)|\b[A-Z])\.$`)
)

// RuleSegmenter splits on terminal punctuation followed by whitespace and a
// capital letter or digit, skipping known abbreviations.
type RuleSegmenter struct{}

func (RuleSegmenter) SentenceStarts(text string) []int {
	starts := []int{0}
	for _, loc := range sentenceEnd.FindAllStringIndex(text, -1) {
		punct := loc[0]
		from := punct - 12
		if from < 0 {
			from = 0
		}
		if abbreviation.MatchString(text[from : punct+1]) {
			continue
		}
		next := loc[1] - 1
		for next > punct && !isSpace(rune(text[next-1])) {
			next--
		}
		starts = append(starts, next)
	}
	return starts
}

// sentenceSpans tiles unit with sentence spans.
func sentenceSpans(seg Segmenter, text string, unit span) []span {
	body := text[unit.start:unit.end]
	rel := seg.SentenceStarts(body)
	sort.Ints(rel)

	bounds := []int{unit.start}
	for _, r := range rel {
		abs := unit.start + r
		if abs > bounds[len(bounds)-1] && abs < unit.end {
			bounds = append(bounds, abs)
		}
	}
	bounds = append(bounds, unit.end)

	spans := make([]span, 0, len(bounds)-1)
	for i := 0; i+1 < len(bounds); i++ {
		spans = append(spans, span{
			start:  bounds[i],
			end:    bounds[i+1],
			label:  unit.label,
			tokens: countTokens(text[bounds[i]:bounds[i+1]]),
		})
	}
	return spans
}
