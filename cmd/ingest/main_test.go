package main

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeJudgments(t *testing.T) {
	input := `{"case_name":"A v B","citation":"PLD 2019 SC 1","court":"Supreme Court","text":"held"}

{"case_name":"C v D","citation":"2020 SCMR 5","format":"html","text":"<p>held</p>"}
`
	raws, err := decodeJudgments(strings.NewReader(input))
	require.NoError(t, err)
	require.Len(t, raws, 2)
	assert.Equal(t, "A v B", raws[0].CaseName)
	assert.Equal(t, "html", raws[1].Format)
}

func TestDecodeJudgmentsReportsLine(t *testing.T) {
	_, err := decodeJudgments(strings.NewReader("{\"case_name\":\"A\"}\n{broken\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "line 2")
}
