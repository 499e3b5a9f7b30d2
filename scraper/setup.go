package scraper

import (
	"fmt"

	"github.com/use-agent/seekjobs/category"
	"github.com/use-agent/seekjobs/config"
	"github.com/use-agent/seekjobs/engine"
	"github.com/use-agent/seekjobs/extractor"
)

// EngineFactory builds the engine factory for the configured fetch mode.
func EngineFactory(cfg *config.Config) (engine.Factory, error) {
	switch cfg.Fetch.Mode {
	case "browser", "":
		opts := engine.RodOptions{
			Headless:             cfg.Browser.Headless,
			NoSandbox:            cfg.Browser.NoSandbox,
			BrowserBin:           cfg.Browser.BrowserBin,
			Proxy:                cfg.Browser.Proxy,
			Width:                cfg.Browser.WindowWidth,
			Height:               cfg.Browser.WindowHeight,
			UserAgents:           cfg.Browser.UserAgents,
			BlockedResourceTypes: cfg.Browser.BlockedResourceTypes,
			NavigationTimeout:    cfg.Fetch.NavigationTimeout,
			BodyWait:             cfg.Fetch.BodyWait,
			SettleMin:            cfg.Fetch.HumanDelayMin,
			SettleMax:            cfg.Fetch.HumanDelayMax,
		}
		return func() engine.Engine { return engine.NewRodEngine(opts) }, nil
	case "http":
		opts := engine.HTTPOptions{
			BaseURL:    cfg.Fetch.BaseURL,
			UserAgents: cfg.Browser.UserAgents,
			Timeout:    cfg.Fetch.HTTPTimeout,
		}
		return func() engine.Engine { return engine.NewHTTPEngine(opts) }, nil
	default:
		return nil, fmt.Errorf("scraper: unknown fetch mode %q", cfg.Fetch.Mode)
	}
}

// NewFromConfig wires a Scraper from configuration: engine factory, category
// rules and retry policy.
func NewFromConfig(cfg *config.Config) (*Scraper, error) {
	factory, err := EngineFactory(cfg)
	if err != nil {
		return nil, err
	}
	rules, err := category.Load(cfg.Fetch.CategoryRules)
	if err != nil {
		return nil, fmt.Errorf("scraper: category rules: %w", err)
	}
	return New(factory, extractor.NewDetailExtractor(cfg.Fetch.BaseURL, rules), Options{
		BaseURL: cfg.Fetch.BaseURL,
		Policy: Policy{
			MaxAttempts:    cfg.Fetch.MaxAttempts,
			BaseDelay:      cfg.Fetch.BackoffBase,
			ForbiddenDelay: cfg.Fetch.ForbiddenBackoffBase,
			HumanDelayMin:  cfg.Fetch.HumanDelayMin,
			HumanDelayMax:  cfg.Fetch.HumanDelayMax,
		},
		PageDelayMin:      cfg.Walker.PageDelayMin,
		PageDelayMax:      cfg.Walker.PageDelayMax,
		DescriptionFormat: cfg.Fetch.DescriptionFormat,
		MaxSessions:       cfg.Browser.MaxSessions,
	}), nil
}
