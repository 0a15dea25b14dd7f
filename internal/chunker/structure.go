package chunker

import (
	"regexp"
	"strings"
	"unicode"
)

var (
	numberedParagraph = regexp.MustCompile(`^\s*(?:\d{1,3}[.)]|\(\d{1,3}\)|\([a-z]\)|[ivx]{1,5}\))\s+`)
	headingWords      = regexp.MustCompile(`(?i)^\s*(short order|brief facts|facts of the case|points? for determination|judgment|judgement|order|facts|held|holding|decision|issues?|arguments|submissions|analysis|discussion|findings|conclusion|relief|background)\s*[:.\-]?\s*$`)
)

var headingLabels = map[string]string{
	"facts":                    "facts",
	"brief facts":              "facts",
	"facts of the case":        "facts",
	"background":               "facts",
	"held":                     "holding",
	"holding":                  "holding",
	"decision":                 "holding",
	"findings":                 "holding",
	"conclusion":               "holding",
	"order":                    "order",
	"short order":              "order",
	"relief":                   "order",
	"issue":                    "issues",
	"issues":                   "issues",
	"point for determination":  "issues",
	"points for determination": "issues",
	"arguments":                "arguments",
	"submissions":              "arguments",
	"analysis":                 "analysis",
	"discussion":               "analysis",
	"judgment":                 "judgment",
	"judgement":                "judgment",
}

// headingLabel reports whether line is a section heading and, if it is one
// of the recognised sections, its label.
func headingLabel(line string) (string, bool) {
	trimmed := strings.TrimSpace(line)
	if trimmed == "" {
		return "", false
	}
	if m := headingWords.FindStringSubmatch(trimmed); m != nil {
		return headingLabels[strings.ToLower(m[1])], true
	}
	if len(trimmed) > 80 || len(strings.Fields(trimmed)) > 8 {
		return "", false
	}
	hasLetter := false
	for _, r := range trimmed {
		if unicode.IsLower(r) {
			return "", false
		}
		if unicode.IsLetter(r) {
			hasLetter = true
		}
	}
	return "", hasLetter
}

func firstLabel(text string) string {
	for _, line := range strings.Split(text, "\n") {
		if label, ok := headingLabel(line); ok && label != "" {
			return label
		}
	}
	return ""
}

// structuralUnits splits text at headings, numbered paragraphs and blank-line
// paragraph breaks. The returned spans tile [0, len(text)).
func structuralUnits(text string) []span {
	var units []span
	label := ""
	prevBlank := true
	pos := 0

	for pos < len(text) {
		end := strings.IndexByte(text[pos:], '\n')
		lineEnd := len(text)
		if end >= 0 {
			lineEnd = pos + end + 1
		}
		line := text[pos:lineEnd]
		blank := strings.TrimSpace(line) == ""

		if !blank {
			newLabel, heading := headingLabel(line)
			if heading && newLabel != "" {
				label = newLabel
			}
			if heading || prevBlank || numberedParagraph.MatchString(line) {
				units = append(units, span{start: pos, label: label, heading: heading})
			}
		}
		prevBlank = blank
		pos = lineEnd
	}

	if len(units) == 0 {
		return []span{{start: 0, end: len(text), tokens: countTokens(text)}}
	}
	units[0].start = 0
	for i := range units {
		if i+1 < len(units) {
			units[i].end = units[i+1].start
		} else {
			units[i].end = len(text)
		}
		units[i].tokens = countTokens(text[units[i].start:units[i].end])
	}
	return units
}
