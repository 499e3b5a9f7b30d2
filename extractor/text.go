// Package extractor pulls listing references and listing records out of
// parsed result and detail pages.
package extractor

import (
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// Sanitize replaces ill-formed UTF-8 with U+FFFD, normalizes to NFC and
// trims surrounding whitespace.
func Sanitize(s string) string {
	// Chained transformers carry state and cannot be shared.
	out, _, err := transform.String(transform.Chain(runes.ReplaceIllFormed(), norm.NFC), s)
	if err != nil {
		out = strings.ToValidUTF8(s, "�")
	}
	return strings.TrimSpace(out)
}

// textOr returns the sanitized text of the first node in sel, or sentinel
// when sel is empty or its text is blank.
func textOr(sel *goquery.Selection, sentinel string) string {
	if sel.Length() == 0 {
		return sentinel
	}
	if t := Sanitize(sel.First().Text()); t != "" {
		return t
	}
	return sentinel
}

// hasAgeUnit reports whether t looks like a "Posted ... ago" label.
func hasAgeUnit(t string) bool {
	if !strings.Contains(t, "Posted") {
		return false
	}
	for _, u := range []string{"ago", "h", "d", "m"} {
		if strings.Contains(t, u) {
			return true
		}
	}
	return false
}
