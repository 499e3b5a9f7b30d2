package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/use-agent/seekjobs/models"
)

// Health returns a handler for GET /api/v1/health.
//
// Status degrades while every session slot is taken.
func Health(s *Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		active, max := s.Scraper.Stats()

		status := "healthy"
		if max > 0 && active >= max {
			status = "degraded"
		}

		c.JSON(http.StatusOK, models.HealthResponse{
			Status:         status,
			Uptime:         time.Since(s.StartTime).Round(time.Second).String(),
			FetchMode:      s.FetchMode,
			ActiveSessions: active,
			MaxSessions:    max,
			Version:        s.Version,
			Timestamp:      time.Now().UTC().Format(time.RFC3339),
		})
	}
}

// Info returns a handler for GET / describing the service.
func Info(s *Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"service": "seekjobs",
			"version": s.Version,
			"endpoints": gin.H{
				"health":         "GET /api/v1/health",
				"cards":          "POST /api/v1/cards",
				"jobs":           "POST /api/v1/jobs",
				"job":            "GET /api/v1/jobs/:id",
				"webhook":        "POST /api/v1/jobs/webhook",
				"webhook_status": "GET /api/v1/jobs/webhook/:id",
			},
		})
	}
}
