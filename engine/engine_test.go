package engine

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/go-rod/rod"

	"github.com/use-agent/seekjobs/models"
)

func TestClassifyRodError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{"deadline", fmt.Errorf("wait: %w", context.DeadlineExceeded), models.ErrCodeTimeout},
		{"canceled", context.Canceled, models.ErrCodeTimeout},
		{"disconnected", &rod.NavigationError{Reason: "net::ERR_INTERNET_DISCONNECTED"}, models.ErrCodeSessionFatal},
		{"eof", fmt.Errorf("cdp: %w", io.EOF), models.ErrCodeSessionFatal},
		{"closed socket", errors.New("write tcp 127.0.0.1:9222: use of closed network connection"), models.ErrCodeSessionFatal},
		{"invalid session", errors.New("invalid session id"), models.ErrCodeSessionFatal},
		{"dns", &rod.NavigationError{Reason: "net::ERR_NAME_NOT_RESOLVED"}, models.ErrCodeNavigation},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := classifyRodError(tt.err, "x").Code; got != tt.want {
				t.Errorf("code = %s, want %s", got, tt.want)
			}
		})
	}
}

func TestIsTrackerHost(t *testing.T) {
	if !isTrackerHost("www.google-analytics.com") {
		t.Error("subdomain of tracker should match")
	}
	if isTrackerHost("www.seek.com.au") {
		t.Error("site host must not match")
	}
}

func TestBlockedSet_IgnoresUnknown(t *testing.T) {
	got := blockedSet([]string{"Image", "Bogus", "Font"})
	if len(got) != 2 {
		t.Errorf("expected 2 known types, got %d", len(got))
	}
}

func TestRodEngine_CloseIsIdempotent(t *testing.T) {
	e := NewRodEngine(RodOptions{})
	if err := e.Close(); err != nil {
		t.Fatal(err)
	}
	if err := e.Close(); err != nil {
		t.Fatal(err)
	}
	if _, err := e.Fetch(context.Background(), &FetchRequest{URL: "https://example.com"}); models.CodeOf(err) != models.ErrCodeSessionFatal {
		t.Errorf("fetch after close: %v", err)
	}
}

func TestHasBodyTag(t *testing.T) {
	if !hasBodyTag(`<html><head></head><body class="x"><p>hi</p></body></html>`) {
		t.Error("expected body")
	}
	if hasBodyTag(`<html><head><title>partial`) {
		t.Error("truncated markup has no body")
	}
}

// newPlainEngine returns an HTTPEngine whose client speaks plain HTTP so it
// can talk to httptest servers.
func newPlainEngine(base string) *HTTPEngine {
	e := NewHTTPEngine(HTTPOptions{BaseURL: base, UserAgents: []string{"ua-a", "ua-b"}})
	e.client = &http.Client{Jar: e.client.Jar}
	return e
}

func TestHTTPEngine_Statuses(t *testing.T) {
	var primed atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/":
			primed.Add(1)
			http.SetCookie(w, &http.Cookie{Name: "sol_id", Value: "abc"})
			fmt.Fprint(w, "<html><body>home</body></html>")
		case "/ok":
			if c, err := r.Cookie("sol_id"); err != nil || c.Value != "abc" {
				t.Errorf("cookie from priming not sent: %v", err)
			}
			if !strings.HasPrefix(r.UserAgent(), "ua-") {
				t.Errorf("unexpected user agent %q", r.UserAgent())
			}
			fmt.Fprint(w, "<html><body><article>job</article></body></html>")
		case "/forbidden":
			w.WriteHeader(http.StatusForbidden)
		case "/broken":
			w.WriteHeader(http.StatusBadGateway)
		case "/partial":
			fmt.Fprint(w, "<html><head><title>cut")
		}
	}))
	defer srv.Close()

	e := newPlainEngine(srv.URL + "/")
	defer e.Close()
	ctx := context.Background()

	res, err := e.Fetch(ctx, &FetchRequest{URL: srv.URL + "/ok"})
	if err != nil {
		t.Fatalf("fetch ok: %v", err)
	}
	if !strings.Contains(res.HTML, "<article>job</article>") || res.EngineName != "http" {
		t.Errorf("unexpected result: %+v", res)
	}

	cases := map[string]string{
		"/forbidden": models.ErrCodeForbidden,
		"/broken":    models.ErrCodeHTTPStatus,
		"/partial":   models.ErrCodeNavigation,
	}
	for path, code := range cases {
		_, err := e.Fetch(ctx, &FetchRequest{URL: srv.URL + path})
		if got := models.CodeOf(err); got != code {
			t.Errorf("%s: code = %s, want %s (err %v)", path, got, code, err)
		}
	}

	if primed.Load() != 1 {
		t.Errorf("home page requested %d times, want 1", primed.Load())
	}
}
