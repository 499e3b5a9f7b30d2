package handler

import (
	"context"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/use-agent/seekjobs/extractor"
	"github.com/use-agent/seekjobs/models"
	"github.com/use-agent/seekjobs/webhook"
)

// WebhookJobs holds in-flight and finished webhook runs. Runs older than
// ttl are dropped by a background sweep.
type WebhookJobs struct {
	mu   sync.Mutex
	jobs map[string]*models.WebhookJob
	ttl  time.Duration

	// ctx is handed to every run; canceling it aborts the runs in flight.
	ctx  context.Context
	runs sync.WaitGroup
}

// NewWebhookJobs creates the registry and starts its sweeper. Both the
// sweeper and any runs still in flight stop when ctx is done.
func NewWebhookJobs(ctx context.Context, ttl time.Duration) *WebhookJobs {
	w := &WebhookJobs{jobs: make(map[string]*models.WebhookJob), ttl: ttl, ctx: ctx}
	go func() {
		ticker := time.NewTicker(5 * time.Minute)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				w.sweep(time.Now().Add(-w.ttl).Unix())
			}
		}
	}()
	return w
}

// start runs fn in the background with the registry's context.
func (w *WebhookJobs) start(fn func(ctx context.Context)) {
	w.runs.Add(1)
	go func() {
		defer w.runs.Done()
		fn(w.ctx)
	}()
}

// Wait blocks until every run has finished or ctx is done, whichever comes
// first. Call it once no new runs can be started.
func (w *WebhookJobs) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		w.runs.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (w *WebhookJobs) put(job *models.WebhookJob) {
	w.mu.Lock()
	w.jobs[job.ID] = job
	w.mu.Unlock()
}

func (w *WebhookJobs) update(id string, fn func(*models.WebhookJob)) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if job, ok := w.jobs[id]; ok {
		fn(job)
	}
}

// Get returns a snapshot of the run.
func (w *WebhookJobs) Get(id string) (models.WebhookJob, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	job, ok := w.jobs[id]
	if !ok {
		return models.WebhookJob{}, false
	}
	snap := *job
	if job.Delivery != nil {
		d := *job.Delivery
		snap.Delivery = &d
	}
	return snap, true
}

func (w *WebhookJobs) sweep(cutoff int64) {
	w.mu.Lock()
	for id, job := range w.jobs {
		if job.CreatedAt < cutoff {
			delete(w.jobs, id)
		}
	}
	w.mu.Unlock()
}

// PostWebhook returns a handler for POST /api/v1/jobs/webhook.
//
// Responds 202 at once; the listings are fetched in the background and the
// result is POSTed to webhook_url exactly once.
func PostWebhook(s *Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req models.WebhookRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			invalidInput(c, err.Error())
			return
		}

		job := &models.WebhookJob{
			ID:        uuid.NewString(),
			Status:    "processing",
			Total:     len(req.JobIDs),
			CreatedAt: time.Now().Unix(),
		}
		s.WebhookJobs.put(job)

		// The run outlives the request but not the server.
		s.WebhookJobs.start(func(ctx context.Context) {
			s.runWebhook(ctx, job.ID, req)
		})

		c.JSON(http.StatusAccepted, models.WebhookAccepted{
			Status:  "accepted",
			ID:      job.ID,
			Total:   job.Total,
			Message: "job details will be delivered to the webhook when processing completes",
		})
	}
}

// GetWebhook returns a handler for GET /api/v1/jobs/webhook/:id.
func GetWebhook(s *Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		job, ok := s.WebhookJobs.Get(c.Param("id"))
		if !ok {
			respondError(c, models.NewScrapeError(models.ErrCodeNotFound, "webhook job not found", nil))
			return
		}
		c.JSON(http.StatusOK, job)
	}
}

func (s *Services) runWebhook(ctx context.Context, id string, req models.WebhookRequest) {
	format := s.webhookFormat()
	records, err := s.Scraper.GetDetailsBatch(ctx, req.JobIDs, format)
	if err != nil {
		slog.Error("webhook batch failed", "id", id, "error", err)
		records = make([]models.ListingRecord, 0, len(req.JobIDs))
		for _, jid := range req.JobIDs {
			records = append(records, models.FailedRecord(jid, extractor.ListingURL(s.BaseURL, jid), err))
		}
	}
	s.remember(ctx, format, records)

	report := s.Webhook.Deliver(ctx, req.WebhookURL, req.WebhookSecret, webhook.NewPayload(records, time.Now()))
	status := "delivered"
	if report.Status != "sent" {
		status = "delivery_failed"
	}
	s.WebhookJobs.update(id, func(job *models.WebhookJob) {
		job.Status = status
		job.JobCount = len(records)
		job.Delivery = report
	})
	slog.Info("webhook run finished",
		"id", id,
		"status", status,
		"job_count", len(records),
		"webhook_status", report.WebhookStatus,
	)
}
