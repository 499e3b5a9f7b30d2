package api

import (
	"context"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
	"github.com/use-agent/seekjobs/api/handler"
	"github.com/use-agent/seekjobs/api/middleware"
	"github.com/use-agent/seekjobs/api/validation"
	"github.com/use-agent/seekjobs/config"
)

func init() {
	if v, ok := binding.Validator.Engine().(*validator.Validate); ok {
		validation.Register(v)
	}
}

// NewRouter creates a configured Gin engine with all routes and middleware.
//
// Middleware chain:
//
//	Global:  Recovery → Logger
//	API:     Auth (if enabled) → RateLimit
//
// Health and the index stay outside auth so monitoring probes always work.
// Background goroutines owned by the middleware stop when ctx is done.
func NewRouter(ctx context.Context, s *handler.Services, cfg *config.Config) *gin.Engine {
	gin.SetMode(cfg.Server.Mode)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(gin.Logger())

	r.GET("/", handler.Info(s))

	v1 := r.Group("/api/v1")

	// Health: no auth required.
	v1.GET("/health", handler.Health(s))

	// Protected group: auth + rate limit.
	protected := v1.Group("")
	if cfg.Auth.Enabled {
		protected.Use(middleware.Auth(cfg.Auth.APIKeys))
	}
	protected.Use(middleware.RateLimit(ctx, cfg.RateLimit))

	protected.POST("/cards", handler.Cards(s))

	protected.POST("/jobs", handler.Jobs(s))
	protected.POST("/jobs/webhook", handler.PostWebhook(s))
	protected.GET("/jobs/webhook/:id", handler.GetWebhook(s))
	protected.GET("/jobs/:id", handler.Job(s))

	return r
}
