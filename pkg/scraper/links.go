package scraper

import (
	"io"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// ExtractLinks returns the deduplicated same-origin links of an HTML page in
// document order. Root-relative hrefs are resolved against origin, absolute
// hrefs are kept only when their scheme and host match it, and every other
// href (external, mailto:, javascript:, fragments, bare relative paths) is
// dropped.
func ExtractLinks(r io.Reader, origin string) ([]string, error) {
	base, err := parseOrigin(origin)
	if err != nil {
		return nil, err
	}

	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return nil, err
	}

	seen := make(map[string]bool)
	links := make([]string, 0)

	doc.Find("a[href]").Each(func(_ int, selection *goquery.Selection) {
		href, _ := selection.Attr("href")
		link, ok := resolveLink(base, strings.TrimSpace(href))
		if !ok || seen[link] {
			return
		}
		seen[link] = true
		links = append(links, link)
	})

	return links, nil
}

func resolveLink(base *url.URL, href string) (string, bool) {
	switch {
	case href == "":
		return "", false
	case strings.HasPrefix(href, "/"):
		ref, err := url.Parse(href)
		if err != nil {
			return "", false
		}
		abs := base.ResolveReference(ref)
		if !sameOrigin(base, abs) {
			return "", false
		}
		return abs.String(), true
	default:
		abs, err := url.Parse(href)
		if err != nil || !abs.IsAbs() || !sameOrigin(base, abs) {
			return "", false
		}
		return abs.String(), true
	}
}

func sameOrigin(base, u *url.URL) bool {
	return strings.EqualFold(base.Scheme, u.Scheme) && strings.EqualFold(base.Host, u.Host)
}
