package ingestion

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

var (
	horizontalSpace = regexp.MustCompile(`[ \t\f\v\x{00a0}]+`)
	blankLines      = regexp.MustCompile(`\n{3,}`)
)

const blockElements = "p, div, section, article, h1, h2, h3, h4, h5, h6, li, tr, blockquote, pre"

// cleanHTML extracts the readable text of a judgment page. Block elements
// become paragraphs so that headings survive on their own lines.
func cleanHTML(html string) (text, title string, err error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return "", "", fmt.Errorf("failed to parse html: %w", err)
	}

	title = strings.TrimSpace(doc.Find("title").First().Text())
	if title == "" {
		title = strings.TrimSpace(doc.Find("h1").First().Text())
	}

	doc.Find("script, style, nav, footer, header, aside, noscript").Remove()
	doc.Find("br").ReplaceWithHtml("\n")
	doc.Find(blockElements).Each(func(_ int, s *goquery.Selection) {
		s.BeforeHtml("\n\n")
		s.AfterHtml("\n\n")
	})

	body := doc.Find("body")
	if body.Length() == 0 {
		body = doc.Selection
	}
	return normalizeText(body.Text()), title, nil
}

func normalizeText(s string) string {
	s = strings.ReplaceAll(s, "\r\n", "\n")
	lines := strings.Split(s, "\n")
	for i, line := range lines {
		lines[i] = strings.TrimSpace(horizontalSpace.ReplaceAllString(line, " "))
	}
	s = blankLines.ReplaceAllString(strings.Join(lines, "\n"), "\n\n")
	return strings.TrimSpace(s)
}
