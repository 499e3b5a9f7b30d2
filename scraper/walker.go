package scraper

import (
	"context"
	"log/slog"
	"time"

	"github.com/use-agent/seekjobs/engine"
	"github.com/use-agent/seekjobs/extractor"
	"github.com/use-agent/seekjobs/models"
	"github.com/use-agent/seekjobs/timewindow"
)

// Walker follows a search's result pages, collecting cards until the age
// window is exceeded or there is no next page.
type Walker struct {
	fetcher *Fetcher
	baseURL string

	// pageDelay picks the pause before looking for the next page.
	pageDelay func() time.Duration
}

// NewWalker creates a Walker that fetches through f.
func NewWalker(f *Fetcher, baseURL string, pageDelayMin, pageDelayMax time.Duration) *Walker {
	return &Walker{
		fetcher: f,
		baseURL: baseURL,
		pageDelay: func() time.Duration {
			return engine.Jitter(pageDelayMin, pageDelayMax)
		},
	}
}

// Walk returns the cards of searchURL and its following pages in page and
// document order. The walk stops at the first card outside limit, keeping
// only the cards before it; an empty limit disables that check. A failed
// first page yields no cards; a failed later page ends the walk with what
// was already collected.
func (w *Walker) Walk(ctx context.Context, searchURL, limit string) []models.ListingReference {
	refs := []models.ListingReference{}
	pageURL := searchURL

	for page := 1; ; page++ {
		out := w.fetcher.Fetch(ctx, pageURL, 0)
		if !out.OK() {
			if page == 1 {
				slog.Error("first results page failed", "url", pageURL, "error", out.Err)
				return []models.ListingReference{}
			}
			slog.Warn("results page failed, stopping walk", "page", page, "url", pageURL, "error", out.Err)
			return refs
		}

		cards := extractor.ExtractCards(out.Doc, w.baseURL)
		slog.Info("results page extracted", "page", page, "cards", len(cards))

		for _, c := range cards {
			if !timewindow.Within(c.PostedDate, limit) {
				slog.Info("card outside posting window, stopping walk",
					"page", page, "job_id", c.ID, "posted", c.PostedDate, "limit", limit)
				return refs
			}
			refs = append(refs, c)
		}

		if err := w.fetcher.sleep(ctx, w.pageDelay()); err != nil {
			return refs
		}

		next := extractor.NextPageURL(out.Doc, w.baseURL, page)
		if next == "" {
			slog.Info("no next page, walk complete", "pages", page, "cards", len(refs))
			return refs
		}
		pageURL = next
	}
}
