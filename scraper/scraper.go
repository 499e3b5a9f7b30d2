package scraper

import (
	"context"
	"log/slog"
	"sync/atomic"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/use-agent/seekjobs/engine"
	"github.com/use-agent/seekjobs/extractor"
	"github.com/use-agent/seekjobs/models"
)

// Options configures a Scraper.
type Options struct {
	// BaseURL is the site root; listing URLs are BaseURL + "/job/" + id.
	BaseURL string

	Policy Policy

	PageDelayMin time.Duration
	PageDelayMax time.Duration

	// DescriptionFormat is used when a call does not ask for one.
	DescriptionFormat string

	// MaxSessions caps concurrently open engine sessions.
	MaxSessions int
}

// Scraper is the public entry point: card listing, single detail and batch
// detail. Every call runs in its own engine session, opened on entry and
// closed on every exit path. It is safe for concurrent use.
type Scraper struct {
	newEngine engine.Factory
	details   *extractor.DetailExtractor
	opts      Options
	sessions  *semaphore.Weighted
	active    atomic.Int32
	startTime time.Time

	// sleep is shared by every Fetcher this Scraper creates.
	sleep sleepFunc
}

// New creates a Scraper.
func New(factory engine.Factory, details *extractor.DetailExtractor, opts Options) *Scraper {
	if opts.MaxSessions <= 0 {
		opts.MaxSessions = 1
	}
	if opts.DescriptionFormat == "" {
		opts.DescriptionFormat = extractor.FormatText
	}
	if details == nil {
		details = extractor.NewDetailExtractor(opts.BaseURL, nil)
	}
	return &Scraper{
		newEngine: factory,
		details:   details,
		opts:      opts,
		sessions:  semaphore.NewWeighted(int64(opts.MaxSessions)),
		startTime: time.Now(),
		sleep:     engine.Sleep,
	}
}

// Stats reports session usage.
func (s *Scraper) Stats() (active, max int) {
	return int(s.active.Load()), s.opts.MaxSessions
}

// Uptime is the time since the Scraper was created.
func (s *Scraper) Uptime() time.Duration {
	return time.Since(s.startTime)
}

// withSession runs fn with a fresh Fetcher over a fresh engine. The only
// error is failing to obtain a session slot before ctx ends.
func (s *Scraper) withSession(ctx context.Context, fn func(f *Fetcher)) error {
	if err := s.sessions.Acquire(ctx, 1); err != nil {
		return models.NewScrapeError(models.ErrCodeTimeout, "no browser session available", err)
	}
	defer s.sessions.Release(1)

	s.active.Add(1)
	defer s.active.Add(-1)

	eng := s.newEngine()
	defer func() {
		if err := eng.Close(); err != nil {
			slog.Warn("engine close failed", "engine", eng.Name(), "error", err)
		}
	}()

	f := NewFetcher(eng, s.opts.Policy)
	f.sleep = s.sleep
	fn(f)
	return nil
}

// ListCards walks the result pages starting at searchURL. The returned
// slice may be empty; the error is non-nil only when no session could be
// obtained.
func (s *Scraper) ListCards(ctx context.Context, searchURL, postedDateLimit string) ([]models.ListingReference, error) {
	var refs []models.ListingReference
	err := s.withSession(ctx, func(f *Fetcher) {
		w := NewWalker(f, s.opts.BaseURL, s.opts.PageDelayMin, s.opts.PageDelayMax)
		refs = w.Walk(ctx, searchURL, postedDateLimit)
	})
	if refs == nil {
		refs = []models.ListingReference{}
	}
	return refs, err
}

// GetDetail fetches and extracts one listing. The record is nil when the
// page could not be loaded. format "" uses the configured default.
func (s *Scraper) GetDetail(ctx context.Context, id, format string) (*models.ListingRecord, error) {
	var rec *models.ListingRecord
	err := s.withSession(ctx, func(f *Fetcher) {
		r, fetchErr := s.detail(ctx, f, id, format)
		if fetchErr != nil {
			return
		}
		rec = r
	})
	return rec, err
}

// GetDetailsBatch fetches listings one after another in a single session.
// The result has one record per id, in input order; a page that could not
// be loaded is represented by a record carrying only id, url and error.
func (s *Scraper) GetDetailsBatch(ctx context.Context, ids []string, format string) ([]models.ListingRecord, error) {
	records := make([]models.ListingRecord, 0, len(ids))
	err := s.withSession(ctx, func(f *Fetcher) {
		for i, id := range ids {
			rec, fetchErr := s.detail(ctx, f, id, format)
			if fetchErr != nil {
				records = append(records, models.FailedRecord(id, extractor.ListingURL(s.opts.BaseURL, id), fetchErr))
			} else {
				records = append(records, *rec)
			}
			slog.Info("listing processed", "index", i+1, "total", len(ids), "job_id", id, "ok", fetchErr == nil)
		}
	})
	return records, err
}

func (s *Scraper) detail(ctx context.Context, f *Fetcher, id, format string) (*models.ListingRecord, error) {
	if format == "" {
		format = s.opts.DescriptionFormat
	}
	url := extractor.ListingURL(s.opts.BaseURL, id)
	out := f.Fetch(ctx, url, 0)
	if !out.OK() {
		slog.Error("listing page could not be loaded", "job_id", id, "url", url, "attempts", out.Attempts, "error", out.Err)
		return nil, out.Err
	}
	return s.details.Extract(out.Doc, id, format), nil
}
