package middleware

import (
	"context"
	"math"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/use-agent/seekjobs/config"
	"github.com/use-agent/seekjobs/models"
	"golang.org/x/time/rate"
)

type bucket struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// buckets maps a caller identity to its token bucket.
type buckets struct {
	mu    sync.Mutex
	m     map[string]*bucket
	limit rate.Limit
	burst int
}

func (b *buckets) get(identity string, now time.Time) *rate.Limiter {
	b.mu.Lock()
	defer b.mu.Unlock()
	e, ok := b.m[identity]
	if !ok {
		e = &bucket{limiter: rate.NewLimiter(b.limit, b.burst)}
		b.m[identity] = e
	}
	e.lastSeen = now
	return e.limiter
}

func (b *buckets) evictIdle(cutoff time.Time) {
	b.mu.Lock()
	for id, e := range b.m {
		if e.lastSeen.Before(cutoff) {
			delete(b.m, id)
		}
	}
	b.mu.Unlock()
}

// RateLimit returns per-caller token-bucket rate limiting built on
// golang.org/x/time/rate. The caller is the label Auth stored, or the client
// IP when auth is off.
//
// A card search walks many result pages, so POST /cards draws
// cfg.CardsCost tokens; every other route draws one. Rejected requests get a
// Retry-After computed from the bucket's refill rate.
//
// Buckets unused for 1 hour are evicted every 5 minutes until ctx is done.
func RateLimit(ctx context.Context, cfg config.RateLimitConfig) gin.HandlerFunc {
	b := &buckets{
		m:     make(map[string]*bucket),
		limit: rate.Limit(cfg.RequestsPerSecond),
		burst: cfg.Burst,
	}
	cardsCost := max(cfg.CardsCost, 1)

	go func() {
		ticker := time.NewTicker(5 * time.Minute)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				b.evictIdle(time.Now().Add(-1 * time.Hour))
			}
		}
	}()

	return func(c *gin.Context) {
		identity := "ip:" + c.ClientIP()
		if caller := c.GetString(CallerKey); caller != "" {
			identity = "key:" + caller
		}
		cost := 1
		if c.FullPath() == "/api/v1/cards" {
			cost = cardsCost
		}

		now := time.Now()
		limiter := b.get(identity, now)
		r := limiter.ReserveN(now, cost)
		if !r.OK() {
			tooMany(c, 0, "request cost exceeds the rate limit burst")
			return
		}
		if delay := r.DelayFrom(now); delay > 0 {
			r.CancelAt(now)
			tooMany(c, delay, "rate limit exceeded, please slow down")
			return
		}

		c.Header("X-RateLimit-Remaining", strconv.Itoa(int(limiter.TokensAt(now))))
		c.Next()
	}
}

func tooMany(c *gin.Context, wait time.Duration, msg string) {
	if wait > 0 {
		c.Header("Retry-After", strconv.Itoa(int(math.Ceil(wait.Seconds()))))
	}
	c.AbortWithStatusJSON(http.StatusTooManyRequests, models.ErrorResponse{
		Status: "error",
		Error:  &models.ErrorDetail{Code: models.ErrCodeRateLimited, Message: msg},
	})
}
