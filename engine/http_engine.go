package engine

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/http/cookiejar"
	"strings"
	"sync"
	"time"

	tls "github.com/refraction-networking/utls"
	"golang.org/x/net/html"
	"golang.org/x/net/publicsuffix"

	"github.com/use-agent/seekjobs/models"
)

// chromeH1Spec is a Chrome-like TLS ClientHello with ALPN forced to http/1.1
// only. Computed once at init time and reused for every connection.
var chromeH1Spec tls.ClientHelloSpec

func init() {
	spec, err := tls.UTLSIdToSpec(tls.HelloChrome_Auto)
	if err != nil {
		return
	}
	// Go's http.Transport cannot speak h2 over a utls connection.
	for i, ext := range spec.Extensions {
		if alpn, ok := ext.(*tls.ALPNExtension); ok {
			alpn.AlpnProtocols = []string{"http/1.1"}
			spec.Extensions[i] = alpn
			break
		}
	}
	chromeH1Spec = spec
}

// HTTPOptions configures the plain-HTTP engine.
type HTTPOptions struct {
	// BaseURL is requested once per session to pick up cookies.
	BaseURL    string
	UserAgents []string
	Timeout    time.Duration
}

// HTTPEngine fetches pages without a browser, using a Chrome TLS fingerprint
// and a cookie jar. The user agent changes on every attempt.
type HTTPEngine struct {
	opts HTTPOptions

	mu     sync.Mutex
	client *http.Client
	primed bool
}

// NewHTTPEngine creates an HTTPEngine.
func NewHTTPEngine(opts HTTPOptions) *HTTPEngine {
	if opts.Timeout <= 0 {
		opts.Timeout = 30 * time.Second
	}
	return &HTTPEngine{opts: opts, client: newChromeClient(opts.Timeout)}
}

func newChromeClient(timeout time.Duration) *http.Client {
	jar, _ := cookiejar.New(&cookiejar.Options{PublicSuffixList: publicsuffix.List})
	transport := &http.Transport{
		DialTLSContext: func(ctx context.Context, network, addr string) (net.Conn, error) {
			dialer := &net.Dialer{Timeout: 10 * time.Second}
			conn, err := dialer.DialContext(ctx, network, addr)
			if err != nil {
				return nil, err
			}
			host, _, _ := net.SplitHostPort(addr)
			tlsConn := tls.UClient(conn, &tls.Config{ServerName: host}, tls.HelloCustom)
			if err := tlsConn.ApplyPreset(&chromeH1Spec); err != nil {
				conn.Close()
				return nil, fmt.Errorf("http_engine: apply tls spec: %w", err)
			}
			if err := tlsConn.HandshakeContext(ctx); err != nil {
				conn.Close()
				return nil, err
			}
			return tlsConn, nil
		},
		ForceAttemptHTTP2: false,
		IdleConnTimeout:   90 * time.Second,
	}
	return &http.Client{
		Transport: transport,
		Jar:       jar,
		Timeout:   timeout,
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			if len(via) >= 10 {
				return fmt.Errorf("too many redirects")
			}
			return nil
		},
	}
}

func (e *HTTPEngine) Name() string { return "http" }

func (e *HTTPEngine) Fetch(ctx context.Context, req *FetchRequest) (*FetchResult, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.client == nil {
		return nil, models.NewScrapeError(models.ErrCodeSessionFatal, "session closed", nil)
	}

	ua := pickUserAgent(e.opts.UserAgents)
	if !e.primed && e.opts.BaseURL != "" {
		e.primed = true
		if _, _, err := e.get(ctx, e.opts.BaseURL, ua); err != nil {
			slog.Debug("cookie priming request failed", "error", err)
		}
	}

	status, body, err := e.get(ctx, req.URL, ua)
	if err != nil {
		return nil, classifyHTTPError(err)
	}

	switch {
	case status == http.StatusForbidden:
		return nil, models.NewScrapeError(models.ErrCodeForbidden,
			fmt.Sprintf("HTTP 403 for %s", req.URL), nil)
	case status >= 400:
		return nil, models.NewScrapeError(models.ErrCodeHTTPStatus,
			fmt.Sprintf("HTTP %d for %s", status, req.URL), nil)
	}

	doc := string(body)
	if !hasBodyTag(doc) {
		return nil, models.NewScrapeError(models.ErrCodeNavigation, "response has no document body", nil)
	}

	return &FetchResult{
		HTML:       doc,
		StatusCode: status,
		FinalURL:   req.URL,
		EngineName: e.Name(),
	}, nil
}

func (e *HTTPEngine) get(ctx context.Context, target, ua string) (int, []byte, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return 0, nil, fmt.Errorf("http_engine: build request: %w", err)
	}
	if ua != "" {
		httpReq.Header.Set("User-Agent", ua)
	}
	httpReq.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,image/avif,image/webp,*/*;q=0.8")
	httpReq.Header.Set("Accept-Language", "en-AU,en;q=0.9")
	httpReq.Header.Set("Accept-Encoding", "identity")
	httpReq.Header.Set("Upgrade-Insecure-Requests", "1")
	httpReq.Header.Set("Sec-Fetch-Dest", "document")
	httpReq.Header.Set("Sec-Fetch-Mode", "navigate")
	httpReq.Header.Set("Sec-Fetch-Site", "none")
	httpReq.Header.Set("Sec-Fetch-User", "?1")

	resp, err := e.client.Do(httpReq)
	if err != nil {
		return 0, nil, fmt.Errorf("http_engine: do request: %w", err)
	}
	defer resp.Body.Close()

	// 10 MB cap.
	body, err := io.ReadAll(io.LimitReader(resp.Body, 10<<20))
	if err != nil {
		return resp.StatusCode, nil, fmt.Errorf("http_engine: read body: %w", err)
	}
	return resp.StatusCode, body, nil
}

// Reset drops connections and cookies.
func (e *HTTPEngine) Reset(_ context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.client == nil {
		return models.NewScrapeError(models.ErrCodeSessionFatal, "session closed", nil)
	}
	e.client.CloseIdleConnections()
	e.client = newChromeClient(e.opts.Timeout)
	e.primed = false
	return nil
}

// Close releases idle connections. Safe to call repeatedly.
func (e *HTTPEngine) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.client != nil {
		e.client.CloseIdleConnections()
		e.client = nil
	}
	return nil
}

func classifyHTTPError(err error) *models.ScrapeError {
	var netErr net.Error
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return models.NewScrapeError(models.ErrCodeTimeout, "request timed out", err)
	case errors.Is(err, context.Canceled):
		return models.NewScrapeError(models.ErrCodeTimeout, "request canceled", err)
	case errors.As(err, &netErr) && netErr.Timeout():
		return models.NewScrapeError(models.ErrCodeTimeout, "request timed out", err)
	default:
		return models.NewScrapeError(models.ErrCodeNavigation, "request failed", err)
	}
}

// hasBodyTag reports whether the markup contains a <body> start tag.
func hasBodyTag(doc string) bool {
	tokenizer := html.NewTokenizer(strings.NewReader(doc))
	for {
		switch tokenizer.Next() {
		case html.ErrorToken:
			return false
		case html.StartTagToken, html.SelfClosingTagToken:
			tn, _ := tokenizer.TagName()
			if string(tn) == "body" {
				return true
			}
		}
	}
}
