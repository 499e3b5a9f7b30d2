package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/use-agent/seekjobs/api"
	"github.com/use-agent/seekjobs/api/handler"
	"github.com/use-agent/seekjobs/cache"
	"github.com/use-agent/seekjobs/config"
	"github.com/use-agent/seekjobs/output"
	"github.com/use-agent/seekjobs/scraper"
	"github.com/use-agent/seekjobs/store"
	"github.com/use-agent/seekjobs/webhook"
)

const version = "0.1.0"

func main() {
	// ── 1. Load configuration ───────────────────────────────────────
	cfg := config.Load()

	// ── 2. Initialise structured logging ────────────────────────────
	initLogger(cfg.Log)
	slog.Info("seekjobs starting",
		"host", cfg.Server.Host,
		"port", cfg.Server.Port,
		"mode", cfg.Server.Mode,
		"fetchMode", cfg.Fetch.Mode,
		"maxSessions", cfg.Browser.MaxSessions,
	)

	// ── 3. Initialise scraper (sessions open per request) ───────────
	sc, err := scraper.NewFromConfig(cfg)
	if err != nil {
		slog.Error("failed to initialise scraper", "error", err)
		os.Exit(1)
	}

	// ── 4. Output directory, store, cache ───────────────────────────
	var out *output.Writer
	if cfg.Output.Dir != "" {
		out, err = output.NewWriter(cfg.Output.Dir)
		if err != nil {
			slog.Error("failed to prepare output directory", "error", err)
			os.Exit(1)
		}
	}

	bg, stopBackground := context.WithCancel(context.Background())
	defer stopBackground()

	services := &handler.Services{
		Scraper:       sc,
		Output:        out,
		SaveByDefault: cfg.Output.SaveByDefault,
		Webhook:       webhook.New(30 * time.Second),
		WebhookJobs:   handler.NewWebhookJobs(bg, time.Hour),
		BaseURL:       cfg.Fetch.BaseURL,
		FetchMode:     cfg.Fetch.Mode,
		Version:       version,
		StartTime:     time.Now(),

		DescriptionFormat: cfg.Fetch.DescriptionFormat,
	}

	if cfg.Store.Path != "" {
		db, err := store.Open(cfg.Store.Path)
		if err != nil {
			slog.Error("failed to open store", "path", cfg.Store.Path, "error", err)
			os.Exit(1)
		}
		defer db.Close()
		services.Store = db
		slog.Info("listing store enabled", "path", cfg.Store.Path)
	}

	if cfg.Cache.MaxEntries > 0 {
		cc := cache.New(cfg.Cache.MaxEntries)
		defer cc.Close()
		services.Cache = cc
	}

	// ── 5. Setup router ─────────────────────────────────────────────
	router := api.NewRouter(bg, services, cfg)

	// ── 6. Start HTTP server ────────────────────────────────────────
	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{
		Addr:    addr,
		Handler: router,
	}

	go func() {
		slog.Info("HTTP server listening", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("HTTP server error", "error", err)
			os.Exit(1)
		}
	}()

	// ── 7. Graceful shutdown ────────────────────────────────────────
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit
	slog.Info("shutdown signal received", "signal", sig.String())

	// Card walks take minutes; in-flight requests get 30 seconds.
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		slog.Error("HTTP server forced shutdown", "error", err)
	} else {
		slog.Info("HTTP server drained gracefully")
	}

	// Webhook runs share the remaining budget; past it they are canceled so
	// their sessions close before exit.
	if err := services.WebhookJobs.Wait(ctx); err != nil {
		slog.Warn("canceling webhook runs in flight", "error", err)
		stopBackground()
		_ = services.WebhookJobs.Wait(context.Background())
	}
	stopBackground()

	slog.Info("seekjobs stopped")
}

// initLogger configures slog based on the LogConfig.
func initLogger(cfg config.LogConfig) {
	var level slog.Level
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: level}

	var handler slog.Handler
	if cfg.Format == "text" {
		handler = slog.NewTextHandler(os.Stdout, opts)
	} else {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	}

	slog.SetDefault(slog.New(handler))
}
