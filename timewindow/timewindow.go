// Package timewindow turns relative posting ages ("Posted 2h ago") into
// fractional days and decides whether a listing falls inside an age window.
package timewindow

import (
	"math"
	"regexp"
	"strconv"
	"strings"
)

var agePattern = regexp.MustCompile(`^(\d+)\s*([mhd])`)

// ToDays converts a relative age into days. Minutes and hours become
// fractions of a day. Anything it cannot read, including the
// "... not found" sentinels, is +Inf so it sorts after every real age.
func ToDays(text string) float64 {
	s := strings.ToLower(text)
	if s == "" || strings.Contains(s, "not found") {
		return math.Inf(1)
	}
	s = strings.TrimSpace(strings.ReplaceAll(s, "posted", ""))

	m := agePattern.FindStringSubmatch(s)
	if m == nil {
		return math.Inf(1)
	}
	n, err := strconv.ParseFloat(m[1], 64)
	if err != nil {
		return math.Inf(1)
	}

	switch m[2] {
	case "m":
		return n / (24 * 60)
	case "h":
		return n / 24
	default:
		return n
	}
}

// Within reports whether a card posted at age posted belongs inside the
// window described by limit. A blank limit admits everything. A limit that
// cannot be parsed becomes +Inf and so admits every parseable age.
func Within(posted, limit string) bool {
	if strings.TrimSpace(limit) == "" {
		return true
	}
	return ToDays(posted) < ToDays(limit)
}
