package handler

import (
	"context"
	"log/slog"
	"time"

	"github.com/use-agent/seekjobs/cache"
	"github.com/use-agent/seekjobs/models"
	"github.com/use-agent/seekjobs/output"
	"github.com/use-agent/seekjobs/webhook"
)

// Scraper is the part of scraper.Scraper the handlers use.
type Scraper interface {
	ListCards(ctx context.Context, searchURL, postedDateLimit string) ([]models.ListingReference, error)
	GetDetail(ctx context.Context, id, format string) (*models.ListingRecord, error)
	GetDetailsBatch(ctx context.Context, ids []string, format string) ([]models.ListingRecord, error)
	Stats() (active, max int)
}

// ListingStore is the part of store.DB the handlers use.
type ListingStore interface {
	UpsertListings(ctx context.Context, format string, recs []models.ListingRecord) (int, error)
	GetListing(ctx context.Context, id, format string) (*models.ListingRecord, time.Time, bool, error)
}

// Services bundles what the handlers depend on. Output, Store and Cache may
// be nil.
type Services struct {
	Scraper       Scraper
	Output        *output.Writer
	SaveByDefault bool
	Store         ListingStore
	Cache         *cache.Cache
	Webhook       *webhook.Client
	WebhookJobs   *WebhookJobs
	BaseURL       string
	FetchMode     string

	// DescriptionFormat is what webhook runs extract. Empty means "text".
	DescriptionFormat string

	Version       string
	StartTime     time.Time
}

// remember puts successful records into the cache and the store under the
// format their descriptions were extracted in.
func (s *Services) remember(ctx context.Context, format string, recs []models.ListingRecord) {
	if s.Cache != nil {
		for i := range recs {
			s.Cache.Set(format, &recs[i])
		}
	}
	if s.Store != nil {
		if _, err := s.Store.UpsertListings(ctx, format, recs); err != nil {
			slog.Warn("store upsert failed", "count", len(recs), "format", format, "error", err)
		}
	}
}

func (s *Services) webhookFormat() string {
	if s.DescriptionFormat == "" {
		return "text"
	}
	return s.DescriptionFormat
}

// save writes v to the output directory when requested and returns the
// file path, or "" when nothing was written.
func (s *Services) save(flag *bool, prefix string, v any) string {
	if s.Output == nil || !models.ShouldSave(flag, s.SaveByDefault) {
		return ""
	}
	path, err := s.Output.WriteJSON(prefix, v)
	if err != nil {
		slog.Error("save results failed", "prefix", prefix, "error", err)
		return ""
	}
	slog.Info("results saved", "path", path)
	return path
}

func seconds(d time.Duration) float64 {
	return float64(d.Milliseconds()) / 1000
}
