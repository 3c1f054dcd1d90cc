package scraper

import (
	"strings"

	"github.com/PuerkitoBio/goquery"
)

const noiseSelector = "script, style, noscript, template, svg, iframe"

// DefaultContentSelectors are tried in order before falling back to body.
func DefaultContentSelectors() []string {
	return []string{
		"main",
		"article",
		".content",
		"#content",
		".documentation",
		"#documentation",
	}
}

func extractMainContent(doc *goquery.Document, selectors []string) string {
	doc.Find(noiseSelector).Remove()

	var content string
	for _, selector := range selectors {
		if selected := doc.Find(selector); selected.Length() > 0 {
			content = selected.First().Text()
			break
		}
	}

	// Fallback to body if no main content found
	if strings.TrimSpace(content) == "" {
		content = doc.Find("body").Text()
	}

	return cleanContent(content)
}

// cleanContent collapses whitespace inside each line and keeps blank-line
// separated blocks as paragraphs.
func cleanContent(content string) string {
	var b strings.Builder
	pendingBreak := ""

	for _, line := range strings.Split(content, "\n") {
		line = strings.Join(strings.Fields(line), " ")
		if line == "" {
			if b.Len() > 0 {
				pendingBreak = "\n\n"
			}
			continue
		}
		if b.Len() > 0 {
			if pendingBreak == "" {
				pendingBreak = "\n"
			}
			b.WriteString(pendingBreak)
		}
		b.WriteString(line)
		pendingBreak = ""
	}

	return b.String()
}
