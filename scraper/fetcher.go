package scraper

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/use-agent/seekjobs/engine"
	"github.com/use-agent/seekjobs/models"
)

// Action is what the fetcher does after a failed attempt.
type Action int

const (
	// Retry sleeps for the decision's Delay and tries again.
	Retry Action = iota
	// Repair resets the engine session, sleeps, then tries again.
	Repair
	// GiveUp ends the fetch as exhausted.
	GiveUp
)

func (a Action) String() string {
	switch a {
	case Retry:
		return "retry"
	case Repair:
		return "repair"
	default:
		return "give_up"
	}
}

// Decision is the policy's answer for one failed attempt.
type Decision struct {
	Action Action
	Delay  time.Duration
}

// Policy decides between retrying, repairing the session and giving up.
type Policy struct {
	// MaxAttempts is the total number of attempts per page.
	MaxAttempts int

	// BaseDelay is multiplied by 2^attempt after a failure.
	BaseDelay time.Duration

	// ForbiddenDelay replaces BaseDelay after an HTTP 403.
	ForbiddenDelay time.Duration

	// HumanDelayMin/Max bound the random pause taken before every attempt,
	// including the first.
	HumanDelayMin time.Duration
	HumanDelayMax time.Duration
}

// DefaultPolicy allows three attempts with 1s, 2s backoff and a 2-5s pause
// before each attempt.
func DefaultPolicy() Policy {
	return Policy{
		MaxAttempts:    3,
		BaseDelay:      time.Second,
		ForbiddenDelay: time.Second,
		HumanDelayMin:  2 * time.Second,
		HumanDelayMax:  5 * time.Second,
	}
}

// humanDelay picks the pause before an attempt.
func (p Policy) humanDelay() time.Duration {
	return engine.Jitter(p.HumanDelayMin, p.HumanDelayMax)
}

// Next decides what follows the failure of attempt (zero-based). There is
// never a wait after the final attempt.
func (p Policy) Next(attempt int, err error) Decision {
	if attempt >= p.MaxAttempts-1 {
		return Decision{Action: GiveUp}
	}
	backoff := func(base time.Duration) time.Duration {
		return base * time.Duration(1<<attempt)
	}

	switch models.CodeOf(err) {
	case models.ErrCodeSessionFatal, models.ErrCodeBrowserCrash:
		return Decision{Action: Repair, Delay: backoff(p.BaseDelay)}
	case models.ErrCodeForbidden:
		return Decision{Action: Retry, Delay: backoff(p.ForbiddenDelay)}
	default:
		return Decision{Action: Retry, Delay: backoff(p.BaseDelay)}
	}
}

// FetchOutcome is the terminal result of fetching one page: either a parsed
// document or the error of the last attempt.
type FetchOutcome struct {
	URL        string
	Doc        *goquery.Document
	EngineName string
	Attempts   int
	Err        error
}

// OK reports whether the page was retrieved and parsed.
func (o *FetchOutcome) OK() bool {
	return o.Err == nil && o.Doc != nil
}

// sleepFunc waits for d unless ctx ends first.
type sleepFunc func(ctx context.Context, d time.Duration) error

// Fetcher retrieves pages through one engine session with retry, backoff
// and session repair. It never returns an error past its boundary; failure
// is reported in the outcome.
type Fetcher struct {
	engine engine.Engine
	policy Policy
	sleep  sleepFunc
}

// NewFetcher creates a Fetcher bound to eng.
func NewFetcher(eng engine.Engine, policy Policy) *Fetcher {
	if policy.MaxAttempts <= 0 {
		policy.MaxAttempts = 1
	}
	return &Fetcher{engine: eng, policy: policy, sleep: engine.Sleep}
}

// Fetch retrieves url, making at most maxAttempts attempts. A non-positive
// maxAttempts uses the policy's cap.
func (f *Fetcher) Fetch(ctx context.Context, url string, maxAttempts int) *FetchOutcome {
	policy := f.policy
	if maxAttempts > 0 {
		policy.MaxAttempts = maxAttempts
	}

	out := &FetchOutcome{URL: url, EngineName: f.engine.Name()}
	for attempt := 0; ; attempt++ {
		if err := ctx.Err(); err != nil {
			out.Err = err
			return out
		}

		if d := policy.humanDelay(); d > 0 {
			if err := f.sleep(ctx, d); err != nil {
				out.Err = err
				return out
			}
		}

		out.Attempts = attempt + 1
		doc, err := f.attempt(ctx, url, attempt)
		if err == nil {
			out.Doc = doc
			out.Err = nil
			return out
		}
		out.Err = err

		if ctx.Err() != nil {
			out.Err = ctx.Err()
			return out
		}

		d := policy.Next(attempt, err)
		slog.Warn("page fetch attempt failed",
			"url", url,
			"attempt", attempt+1,
			"max_attempts", policy.MaxAttempts,
			"next", d.Action.String(),
			"delay", d.Delay,
			"error", err,
		)

		switch d.Action {
		case GiveUp:
			slog.Error("page fetch exhausted", "url", url, "attempts", out.Attempts, "error", err)
			return out
		case Repair:
			if rerr := f.engine.Reset(ctx); rerr != nil {
				slog.Warn("session repair failed", "url", url, "error", rerr)
			}
		}

		if serr := f.sleep(ctx, d.Delay); serr != nil {
			out.Err = serr
			return out
		}
	}
}

func (f *Fetcher) attempt(ctx context.Context, url string, attempt int) (*goquery.Document, error) {
	res, err := f.engine.Fetch(ctx, &engine.FetchRequest{URL: url, Attempt: attempt})
	if err != nil {
		return nil, err
	}
	if res == nil || strings.TrimSpace(res.HTML) == "" {
		return nil, models.NewScrapeError(models.ErrCodeNavigation, "empty page", nil)
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(res.HTML))
	if err != nil {
		return nil, models.NewScrapeError(models.ErrCodeNavigation, "unparseable page", err)
	}
	return doc, nil
}
