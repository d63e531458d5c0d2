package extracthtml

import (
	"html"
	"regexp"
	"strings"
)

var reWhitespaceRun = regexp.MustCompile(`\s{2,}`)

var nbspReplacer = strings.NewReplacer("\u00a0", " ", "&nbsp;", " ")

// Decode normalizes raw cell text.
//
// Non-breaking spaces become plain spaces, the result is trimmed, every run of
// two or more whitespace characters collapses into ", " and HTML entities are
// unescaped. Multi-line cells such as addresses therefore read "line1, line2".
func Decode(raw string) string {
	s := nbspReplacer.Replace(raw)
	s = strings.TrimSpace(s)
	s = reWhitespaceRun.ReplaceAllString(s, ", ")
	return html.UnescapeString(s)
}
