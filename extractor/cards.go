package extractor

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/andybalholm/cascadia"

	"github.com/use-agent/seekjobs/models"
)

var (
	cardSel     = cascadia.MustCompile(`article[data-automation="normalJob"], [data-automation="jobCard"]`)
	cardLinkSel = cascadia.MustCompile(`a`)
	cardAgeSel  = cascadia.MustCompile(`[data-automation="jobListingDate"], .TWZc6b0, span:contains("Posted")`)
	spanSel     = cascadia.MustCompile(`span`)
)

// ListingID returns the path segment after "/job/", up to the first "?" or
// the end of the string. It returns "" when the URL has no "/job/" segment.
func ListingID(u string) string {
	_, rest, ok := strings.Cut(u, "/job/")
	if !ok {
		return ""
	}
	if i := strings.IndexByte(rest, '?'); i >= 0 {
		rest = rest[:i]
	}
	return rest
}

// ListingURL is the canonical detail URL for id under base.
func ListingURL(base, id string) string {
	return strings.TrimRight(base, "/") + "/job/" + id
}

// ExtractCards returns the cards on a result page in document order.
// Cards without a link, or whose link carries no listing id, are skipped.
// A card nested inside another matched card is reported once.
func ExtractCards(doc *goquery.Document, base string) []models.ListingReference {
	baseURL, err := url.Parse(base)
	if err != nil {
		return nil
	}

	var refs []models.ListingReference
	seen := make(map[string]struct{})

	doc.FindMatcher(cardSel).Each(func(_ int, card *goquery.Selection) {
		link := card.FindMatcher(cardLinkSel).First()
		href, ok := link.Attr("href")
		if !ok || strings.TrimSpace(href) == "" {
			return
		}
		resolved, err := baseURL.Parse(strings.TrimSpace(href))
		if err != nil {
			return
		}
		jobURL := resolved.String()
		id := ListingID(jobURL)
		if id == "" {
			return
		}
		if _, dup := seen[id]; dup {
			return
		}
		seen[id] = struct{}{}

		refs = append(refs, models.ListingReference{
			ID:         id,
			URL:        jobURL,
			PostedDate: PostingAge(card),
		})
	})

	return refs
}

// PostingAge reads the relative age label of a card.
func PostingAge(card *goquery.Selection) string {
	if el := card.FindMatcher(cardAgeSel).First(); el.Length() > 0 {
		if t := Sanitize(el.Text()); t != "" {
			return t
		}
	}

	age := models.PostingTimeNotFound
	card.FindMatcher(spanSel).EachWithBreak(func(_ int, s *goquery.Selection) bool {
		t := Sanitize(s.Text())
		if hasAgeUnit(t) {
			age = t
			return false
		}
		return true
	})
	return age
}

// NextPageURL returns the absolute URL of page current+1, or "" when the
// page has no such link.
func NextPageURL(doc *goquery.Document, base string, current int) string {
	sel := fmt.Sprintf(`[data-automation="page-%d"]`, current+1)
	m, err := cascadia.Compile(sel)
	if err != nil {
		return ""
	}
	href, ok := doc.FindMatcher(m).First().Attr("href")
	if !ok || strings.TrimSpace(href) == "" {
		return ""
	}
	baseURL, err := url.Parse(base)
	if err != nil {
		return ""
	}
	next, err := baseURL.Parse(strings.TrimSpace(href))
	if err != nil {
		return ""
	}
	return next.String()
}
