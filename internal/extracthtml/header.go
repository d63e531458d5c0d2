package extracthtml

import (
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

var keyReplacer = strings.NewReplacer(" ", "_", "/", "_", `\`, "_")

// DeriveKey turns a header cell into a field key: lower-cased, the phrase
// "injured worker" removed, trimmed, and spaces, slashes and backslashes
// replaced with "_". "Injured Worker Name" becomes "name".
//
// A missing or whitespace-only header yields "".
func DeriveKey(header *goquery.Selection) string {
	if header == nil || header.Length() == 0 {
		return ""
	}
	return KeyFromText(header.Text())
}

// KeyFromText applies the DeriveKey normalization to plain text.
func KeyFromText(text string) string {
	// A Caser is stateful; build one per call so keys can be derived from
	// concurrently assembled pages.
	key := cases.Lower(language.Und).String(strings.ReplaceAll(text, "\u00a0", " "))
	key = strings.ReplaceAll(key, "injured worker", "")
	key = strings.TrimSpace(key)
	return keyReplacer.Replace(key)
}
