package citation

import (
	"regexp"
	"strings"
)

var (
	punctuation = regexp.MustCompile(`[^A-Z0-9&\s]+`)
	whitespace  = regexp.MustCompile(`\s+`)
	year        = regexp.MustCompile(`^(1[89]|20)\d{2}$`)
)

// Spaced-out reporter abbreviations after punctuation is removed.
var reporterSpellings = []struct {
	pattern *regexp.Regexp
	repl    string
}{
	{regexp.MustCompile(`\bP ?CR ?L ?J\b`), "PCRLJ"},
	{regexp.MustCompile(`\bP ?L ?D\b`), "PLD"},
	{regexp.MustCompile(`\bS ?C ?M ?R\b`), "SCMR"},
	{regexp.MustCompile(`\bP ?T ?D\b`), "PTD"},
	{regexp.MustCompile(`\bALL ER\b`), "ALLER"},
}

var courtAliases = []struct {
	pattern *regexp.Regexp
	repl    string
}{
	{regexp.MustCompile(`\bSUPREME COURT\b`), "SC"},
	{regexp.MustCompile(`\bFEDERAL SHARIAT COURT\b`), "FSC"},
	{regexp.MustCompile(`\bLAHORE\b`), "LAH"},
	{regexp.MustCompile(`\bKARACHI\b`), "KAR"},
	{regexp.MustCompile(`\bPESHAWAR\b`), "PESH"},
	{regexp.MustCompile(`\bISLAMABAD\b`), "ISL"},
	{regexp.MustCompile(`\bBALOCHISTAN\b`), "BAL"},
}

// Reporters cited as "<REPORTER> <YEAR> <COURT> <PAGE>".
var reporterFirst = map[string]bool{"PLD": true, "AIR": true}

// Reporters cited as "<YEAR> <REPORTER> <PAGE>".
var yearFirst = map[string]bool{
	"SCMR": true, "CLC": true, "YLR": true, "PCRLJ": true, "PLC": true,
	"MLD": true, "CLD": true, "PTD": true, "KLR": true, "NLR": true,
}

// Normalize maps a citation to its dedup key: uppercase, punctuation-free,
// single-spaced, with court names abbreviated and reporter/year in the
// canonical order for the reporter series.
func Normalize(raw string) string {
	s := strings.ToUpper(raw)
	s = strings.ReplaceAll(s, ".", "")
	s = strings.ReplaceAll(s, "'", "")
	s = punctuation.ReplaceAllString(s, " ")
	s = strings.TrimSpace(whitespace.ReplaceAllString(s, " "))

	for _, r := range reporterSpellings {
		s = r.pattern.ReplaceAllString(s, r.repl)
	}
	for _, a := range courtAliases {
		s = a.pattern.ReplaceAllString(s, a.repl)
	}

	tokens := strings.Fields(s)
	if len(tokens) >= 2 {
		switch {
		case year.MatchString(tokens[0]) && reporterFirst[tokens[1]]:
			tokens[0], tokens[1] = tokens[1], tokens[0]
		case yearFirst[tokens[0]] && year.MatchString(tokens[1]):
			tokens[0], tokens[1] = tokens[1], tokens[0]
		}
	}
	return strings.Join(tokens, " ")
}
