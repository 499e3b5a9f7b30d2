package engine

import (
	"context"
	"math/rand/v2"
	"time"
)

// Engine retrieves one page at a time. An Engine is owned by a single
// scraping invocation and is not shared; callers must not issue concurrent
// Fetch calls on the same Engine.
type Engine interface {
	// Name returns the engine identifier ("rod" or "http").
	Name() string

	// Fetch retrieves the page content for the given request. Failures are
	// *models.ScrapeError values whose Code drives the retry policy.
	Fetch(ctx context.Context, req *FetchRequest) (*FetchResult, error)

	// Reset discards the underlying session so the next Fetch starts fresh.
	Reset(ctx context.Context) error

	// Close releases every resource held by the engine. It is safe to call
	// more than once and on a session that is already broken.
	Close() error
}

// Factory builds a fresh Engine for one invocation.
type Factory func() Engine

// FetchRequest contains everything an engine needs to fetch a page.
type FetchRequest struct {
	URL string

	// Attempt is the zero-based retry attempt; engines may vary their
	// fingerprint per attempt.
	Attempt int
}

// FetchResult is the output of a successful engine fetch.
type FetchResult struct {
	HTML       string
	StatusCode int
	FinalURL   string
	EngineName string
}

func pickUserAgent(uas []string) string {
	if len(uas) == 0 {
		return ""
	}
	return uas[rand.IntN(len(uas))]
}

// Jitter returns a random duration in [lo, hi).
func Jitter(lo, hi time.Duration) time.Duration {
	if hi <= lo {
		return lo
	}
	return lo + time.Duration(rand.Int64N(int64(hi-lo)))
}

// Sleep waits for d or until ctx is done, whichever comes first.
func Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
