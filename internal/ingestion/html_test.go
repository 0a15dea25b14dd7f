package ingestion

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCleanHTML(t *testing.T) {
	page := `<html><head><title>Ali v. State</title><style>p{color:red}</style></head>
<body>
<nav>Home | Judgments</nav>
<h2>FACTS</h2>
<p>The appellant was   convicted&nbsp;under section 302.</p>
<script>track()</script>
<h2>HELD</h2>
<p>Appeal allowed.<br>Conviction set aside.</p>
<footer>Copyright</footer>
</body></html>`

	text, title, err := cleanHTML(page)
	require.NoError(t, err)
	assert.Equal(t, "Ali v. State", title)
	assert.Equal(t, "FACTS\n\nThe appellant was convicted under section 302.\n\nHELD\n\nAppeal allowed.\nConviction set aside.", text)
	assert.NotContains(t, text, "track()")
	assert.NotContains(t, text, "Copyright")
	assert.NotContains(t, text, "Home")
}

func TestCleanHTMLTitleFallsBackToHeading(t *testing.T) {
	text, title, err := cleanHTML(`<body><h1>Khan v. Federation</h1><p>Text.</p></body>`)
	require.NoError(t, err)
	assert.Equal(t, "Khan v. Federation", title)
	assert.Equal(t, "Khan v. Federation\n\nText.", text)
}

func TestNormalizeText(t *testing.T) {
	assert.Equal(t, "a b\n\nc", normalizeText("  a \t b \r\n\n\n\n  c  "))
}
