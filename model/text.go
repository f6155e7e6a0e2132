package model

import (
	"html"
	"regexp"
	"strings"
)

var (
	blockTags = regexp.MustCompile(`(?i)<(br|/p|/div|/tr|/li|/h[1-6])[^>]*>`)
	styleTags = regexp.MustCompile(`(?is)<(style|script)[^>]*>.*?</(style|script)>`)
	anyTag    = regexp.MustCompile(`<[^>]*>`)
	blankRuns = regexp.MustCompile(`\n{3,}`)
)

// PlainBody is the body as readable text. The gateway puts the HTML part in
// Body when a message has no plain part; that case is converted to text.
func (e EmailDetail) PlainBody() string {
	if e.BodyHtml != "" && (e.Body == "" || e.Body == e.BodyHtml) {
		return HtmlToText(e.BodyHtml)
	}
	return e.Body
}

// HtmlToText keeps the readable text of an HTML fragment.
func HtmlToText(s string) string {
	s = styleTags.ReplaceAllString(s, "")
	s = blockTags.ReplaceAllString(s, "\n")
	s = anyTag.ReplaceAllString(s, "")
	s = html.UnescapeString(s)
	s = blankRuns.ReplaceAllString(s, "\n\n")
	return strings.TrimSpace(s)
}
