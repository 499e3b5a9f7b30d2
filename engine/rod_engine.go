package engine

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/launcher/flags"
	"github.com/go-rod/rod/lib/proto"
	"github.com/go-rod/stealth"
	"github.com/ysmood/gson"

	"github.com/use-agent/seekjobs/models"
)

// RodOptions configures a browser session.
type RodOptions struct {
	Headless   bool
	NoSandbox  bool
	BrowserBin string
	Proxy      string

	Width, Height int

	// UserAgents is the rotation list; one is chosen per session.
	UserAgents []string

	BlockedResourceTypes []string

	// NavigationTimeout bounds page.Navigate.
	NavigationTimeout time.Duration

	// BodyWait bounds the wait for <body> after navigation.
	BodyWait time.Duration

	// SettleMin/SettleMax bound the random pause between navigation and
	// reading the page.
	SettleMin, SettleMax time.Duration
}

// RodEngine is a stateful headless browser session. The browser is launched
// lazily on the first Fetch, torn down by Reset, and released by Close.
type RodEngine struct {
	opts RodOptions

	mu       sync.Mutex
	launcher *launcher.Launcher
	browser  *rod.Browser
	page     *rod.Page
	router   *rod.HijackRouter
	closed   bool
}

// NewRodEngine creates a RodEngine. Nothing is launched until the first Fetch.
func NewRodEngine(opts RodOptions) *RodEngine {
	if opts.Width <= 0 {
		opts.Width = 1200
	}
	if opts.Height <= 0 {
		opts.Height = 720
	}
	if opts.BodyWait <= 0 {
		opts.BodyWait = 30 * time.Second
	}
	if opts.NavigationTimeout <= 0 {
		opts.NavigationTimeout = 45 * time.Second
	}
	return &RodEngine{opts: opts}
}

func (e *RodEngine) Name() string { return "rod" }

// open launches Chromium and prepares a single stealth page.
//
//  1. Launcher flags     – hide automation switches, fix window size and UA
//  2. Connect            – attach rod to the DevTools endpoint
//  3. Stealth page       – navigator.webdriver and friends masked before any navigation
//  4. Viewport + UA      – keep the emulated metrics consistent with the window
//  5. Headers + hijack   – Accept-Language, then resource blocking
func (e *RodEngine) open() error {
	ua := pickUserAgent(e.opts.UserAgents)

	// ── 1. Launcher flags ────────────────────────────────────────────
	l := launcher.New().
		Headless(e.opts.Headless).
		NoSandbox(e.opts.NoSandbox)
	if e.opts.BrowserBin != "" {
		l = l.Bin(e.opts.BrowserBin)
	}
	if e.opts.Proxy != "" {
		l = l.Proxy(e.opts.Proxy)
	}
	l.Set(flags.Flag("disable-blink-features"), "AutomationControlled")
	l.Delete(flags.Flag("enable-automation"))
	l.Set(flags.Flag("window-size"), fmt.Sprintf("%d,%d", e.opts.Width, e.opts.Height))
	l.Set(flags.Flag("disable-dev-shm-usage"))
	l.Set(flags.Flag("disable-gpu"))
	l.Set(flags.Flag("no-first-run"))
	if ua != "" {
		l.Set(flags.Flag("user-agent"), ua)
	}

	controlURL, err := l.Launch()
	if err != nil {
		return models.NewScrapeError(models.ErrCodeBrowserCrash, "failed to launch browser", err)
	}

	// ── 2. Connect ───────────────────────────────────────────────────
	browser := rod.New().ControlURL(controlURL)
	if err := browser.Connect(); err != nil {
		l.Kill()
		l.Cleanup()
		return models.NewScrapeError(models.ErrCodeBrowserCrash, "failed to connect to browser", err)
	}

	// ── 3. Stealth page ──────────────────────────────────────────────
	page, err := stealth.Page(browser)
	if err != nil {
		_ = browser.Close()
		l.Kill()
		l.Cleanup()
		return models.NewScrapeError(models.ErrCodeBrowserCrash, "failed to create stealth page", err)
	}

	// ── 4. Viewport + UA ─────────────────────────────────────────────
	if err := page.SetViewport(&proto.EmulationSetDeviceMetricsOverride{
		Width:             e.opts.Width,
		Height:            e.opts.Height,
		DeviceScaleFactor: 1,
	}); err != nil {
		slog.Warn("set viewport failed", "error", err)
	}
	if ua != "" {
		if err := page.SetUserAgent(&proto.NetworkSetUserAgentOverride{
			UserAgent:      ua,
			AcceptLanguage: "en-AU,en;q=0.9",
		}); err != nil {
			slog.Warn("set user agent failed", "error", err)
		}
	}

	// ── 5. Headers + hijack ──────────────────────────────────────────
	_ = proto.NetworkSetExtraHTTPHeaders{
		Headers: toHeadersMap(map[string]string{
			"Accept-Language":           "en-AU,en;q=0.9",
			"Upgrade-Insecure-Requests": "1",
		}),
	}.Call(page)

	var router *rod.HijackRouter
	if len(e.opts.BlockedResourceTypes) > 0 {
		router = setupHijack(page, e.opts.BlockedResourceTypes)
	}

	e.launcher = l
	e.browser = browser
	e.page = page
	e.router = router
	slog.Info("browser session opened", "controlURL", controlURL, "userAgent", ua)
	return nil
}

// Fetch navigates the session's page to req.URL, waits for the body and
// returns the rendered HTML.
func (e *RodEngine) Fetch(ctx context.Context, req *FetchRequest) (*FetchResult, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closed {
		return nil, models.NewScrapeError(models.ErrCodeSessionFatal, "session closed", nil)
	}
	if e.page == nil {
		if err := e.open(); err != nil {
			return nil, err
		}
	}

	nav := e.page.Context(ctx).Timeout(e.opts.NavigationTimeout)
	defer nav.CancelTimeout()
	if err := nav.Navigate(req.URL); err != nil {
		return nil, classifyRodError(err, "navigation to target URL failed")
	}

	if err := Sleep(ctx, Jitter(e.opts.SettleMin, e.opts.SettleMax)); err != nil {
		return nil, classifyRodError(err, "request canceled")
	}

	wait := e.page.Context(ctx).Timeout(e.opts.BodyWait)
	defer wait.CancelTimeout()
	if _, err := wait.Element("body"); err != nil {
		return nil, classifyRodError(err, "page body did not appear")
	}

	p := e.page.Context(ctx)
	html, err := p.HTML()
	if err != nil {
		return nil, classifyRodError(err, "failed to extract page HTML")
	}

	finalURL := req.URL
	if info, err := p.Info(); err == nil && info.URL != "" {
		finalURL = info.URL
	}

	return &FetchResult{
		HTML:       html,
		FinalURL:   finalURL,
		EngineName: e.Name(),
	}, nil
}

// Reset tears the browser down; the next Fetch launches a new one.
func (e *RodEngine) Reset(_ context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closed {
		return models.NewScrapeError(models.ErrCodeSessionFatal, "session closed", nil)
	}
	slog.Info("resetting browser session")
	e.teardown()
	return nil
}

// Close releases the browser. Safe to call repeatedly.
func (e *RodEngine) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closed {
		return nil
	}
	e.closed = true
	e.teardown()
	return nil
}

// teardown releases whatever is open, tolerating a dead browser.
func (e *RodEngine) teardown() {
	defer func() {
		if r := recover(); r != nil {
			slog.Warn("browser teardown panicked", "panic", fmt.Sprint(r))
		}
	}()

	if e.router != nil {
		_ = e.router.Stop()
		e.router = nil
	}
	if e.page != nil {
		_ = e.page.Close()
		e.page = nil
	}
	if e.browser != nil {
		if err := e.browser.Close(); err != nil {
			slog.Debug("browser close failed", "error", err)
		}
		e.browser = nil
	}
	if e.launcher != nil {
		e.launcher.Kill()
		e.launcher.Cleanup()
		e.launcher = nil
	}
}

// fatalMarkers identify errors after which the session cannot be reused.
var fatalMarkers = []string{
	"err_internet_disconnected",
	"invalid session",
	"target closed",
	"session closed",
	"no target with given id",
	"session with given id not found",
	"use of closed network connection",
	"connection reset by peer",
	"broken pipe",
}

// classifyRodError wraps raw rod errors into typed ScrapeErrors so the retry
// policy can tell timeouts, dead sessions and ordinary navigation failures apart.
func classifyRodError(err error, msg string) *models.ScrapeError {
	if isSessionFatal(err) {
		return models.NewScrapeError(models.ErrCodeSessionFatal, msg, err)
	}
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return models.NewScrapeError(models.ErrCodeTimeout, msg, err)
	case errors.Is(err, context.Canceled):
		return models.NewScrapeError(models.ErrCodeTimeout, "request canceled", err)
	default:
		return models.NewScrapeError(models.ErrCodeNavigation, msg, err)
	}
}

func isSessionFatal(err error) bool {
	if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
		return true
	}
	var navErr *rod.NavigationError
	if errors.As(err, &navErr) && strings.Contains(strings.ToLower(navErr.Reason), "err_internet_disconnected") {
		return true
	}
	s := strings.ToLower(err.Error())
	for _, m := range fatalMarkers {
		if strings.Contains(s, m) {
			return true
		}
	}
	return false
}

// toHeadersMap converts a plain string map to the proto.NetworkHeaders type
// (map[string]gson.JSON) required by NetworkSetExtraHTTPHeaders.
func toHeadersMap(headers map[string]string) proto.NetworkHeaders {
	m := make(proto.NetworkHeaders, len(headers))
	for k, v := range headers {
		m[k] = gson.New(v)
	}
	return m
}
