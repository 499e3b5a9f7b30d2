package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/use-agent/seekjobs/config"
)

func init() { gin.SetMode(gin.TestMode) }

func newEngine(mw ...gin.HandlerFunc) *gin.Engine {
	r := gin.New()
	r.Use(mw...)
	r.GET("/x", func(c *gin.Context) { c.String(http.StatusOK, c.GetString(CallerKey)) })
	r.POST("/api/v1/cards", func(c *gin.Context) { c.String(http.StatusOK, "ok") })
	return r
}

func send(r http.Handler, method, path, header, value string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, nil)
	if header != "" {
		req.Header.Set(header, value)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func do(r http.Handler, header, value string) int {
	return send(r, http.MethodGet, "/x", header, value).Code
}

func TestAuth(t *testing.T) {
	r := newEngine(Auth([]string{"k1", "", "ops=k2"}))
	tests := []struct {
		name, header, value string
		want                int
	}{
		{"missing", "", "", http.StatusUnauthorized},
		{"x-api-key", "X-API-Key", "k1", http.StatusOK},
		{"bearer", "Authorization", "Bearer k1", http.StatusOK},
		{"labelled", "X-API-Key", "k2", http.StatusOK},
		{"label is not a key", "X-API-Key", "ops", http.StatusUnauthorized},
		{"wrong", "X-API-Key", "nope", http.StatusUnauthorized},
		{"empty key not accepted", "Authorization", "Bearer ", http.StatusUnauthorized},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := do(r, tt.header, tt.value); got != tt.want {
				t.Errorf("status = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestAuth_CallerLabel(t *testing.T) {
	r := newEngine(Auth([]string{"secret-1", "ops=k2"}))

	if body := send(r, http.MethodGet, "/x", "X-API-Key", "k2").Body.String(); body != "ops" {
		t.Errorf("caller = %q, want ops", body)
	}
	body := send(r, http.MethodGet, "/x", "X-API-Key", "secret-1").Body.String()
	if body == "" || body == "secret-1" {
		t.Errorf("caller = %q, want a digest label that hides the key", body)
	}
}

func TestAuth_NoKeysIsOpen(t *testing.T) {
	if got := do(newEngine(Auth(nil)), "", ""); got != http.StatusOK {
		t.Errorf("status = %d, want 200", got)
	}
	if got := do(newEngine(Auth([]string{"", "ops="})), "", ""); got != http.StatusOK {
		t.Errorf("status = %d, want 200 when no usable key is configured", got)
	}
}

func TestRateLimit(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	r := newEngine(RateLimit(ctx, config.RateLimitConfig{RequestsPerSecond: 0.001, Burst: 2}))

	for i := 0; i < 2; i++ {
		if got := do(r, "", ""); got != http.StatusOK {
			t.Fatalf("request %d: status = %d, want 200", i, got)
		}
	}
	w := send(r, http.MethodGet, "/x", "", "")
	if w.Code != http.StatusTooManyRequests {
		t.Fatalf("status = %d, want 429", w.Code)
	}
	// One token refills every 1000s.
	secs, err := strconv.Atoi(w.Header().Get("Retry-After"))
	if err != nil || secs < 900 || secs > 1000 {
		t.Errorf("Retry-After = %q, want about 1000", w.Header().Get("Retry-After"))
	}
}

func TestRateLimit_PerCaller(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	r := newEngine(
		Auth([]string{"a=ka", "b=kb"}),
		RateLimit(ctx, config.RateLimitConfig{RequestsPerSecond: 0.001, Burst: 1}),
	)

	if got := do(r, "X-API-Key", "ka"); got != http.StatusOK {
		t.Fatalf("first a: %d", got)
	}
	if got := do(r, "X-API-Key", "ka"); got != http.StatusTooManyRequests {
		t.Errorf("second a: %d, want 429", got)
	}
	if got := do(r, "X-API-Key", "kb"); got != http.StatusOK {
		t.Errorf("b has its own bucket, got %d", got)
	}
}

func TestRateLimit_CardsCost(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	r := newEngine(RateLimit(ctx, config.RateLimitConfig{RequestsPerSecond: 0.001, Burst: 4, CardsCost: 3}))

	w := send(r, http.MethodPost, "/api/v1/cards", "", "")
	if w.Code != http.StatusOK {
		t.Fatalf("cards: %d", w.Code)
	}
	if got := w.Header().Get("X-RateLimit-Remaining"); got != "1" {
		t.Errorf("remaining = %q, want 1", got)
	}
	if got := send(r, http.MethodPost, "/api/v1/cards", "", "").Code; got != http.StatusTooManyRequests {
		t.Errorf("second cards: %d, want 429", got)
	}
	if got := do(r, "", ""); got != http.StatusOK {
		t.Errorf("a one-token request should still fit, got %d", got)
	}
}

func TestRateLimit_CostAboveBurst(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	r := newEngine(RateLimit(ctx, config.RateLimitConfig{RequestsPerSecond: 1, Burst: 2, CardsCost: 5}))

	w := send(r, http.MethodPost, "/api/v1/cards", "", "")
	if w.Code != http.StatusTooManyRequests || w.Header().Get("Retry-After") != "" {
		t.Errorf("status = %d Retry-After = %q", w.Code, w.Header().Get("Retry-After"))
	}
}
