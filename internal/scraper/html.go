package scraper

import (
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

var (
	applyPattern   = regexp.MustCompile(`(?i)\bapply\b|easy apply`)
	extraSpaces    = regexp.MustCompile(`[ \t]{2,}`)
	extraNewlines  = regexp.MustCompile(`\n{3,}`)
	leadingNLSpace = regexp.MustCompile(`\n[ \t]+`)
)

// cleanDescription extracts readable text from a description container,
// stripping scripts, styles and apply call-to-action elements, then
// collapsing redundant whitespace.
func cleanDescription(sel *goquery.Selection) string {
	sel.Find("script, style, button").Remove()
	sel.Find("a").Each(func(_ int, a *goquery.Selection) {
		if applyPattern.MatchString(a.Text()) {
			a.Remove()
		}
	})
	sel.Find(`[class*="apply"], [class*="Apply"]`).Remove()
	return collapseWhitespace(sel.Text())
}

// htmlToText strips markup from an HTML snippet (e.g. an API-provided
// description field) and returns collapsed plain text.
func htmlToText(snippet string) string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(snippet))
	if err != nil {
		return collapseWhitespace(snippet)
	}
	doc.Find("script, style").Remove()
	return collapseWhitespace(doc.Text())
}

func collapseWhitespace(s string) string {
	s = strings.ReplaceAll(s, "\r\n", "\n")
	s = extraSpaces.ReplaceAllString(s, " ")
	s = leadingNLSpace.ReplaceAllString(s, "\n")
	s = extraNewlines.ReplaceAllString(s, "\n\n")
	return strings.TrimSpace(s)
}
