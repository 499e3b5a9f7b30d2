package webhook

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/use-agent/seekjobs/models"
)

// SignatureHeader carries "sha256=<hex>" when a secret is configured.
const SignatureHeader = "X-Seekjobs-Signature"

// Payload is the body POSTed to a webhook endpoint after a batch completes.
type Payload struct {
	Status    string                 `json:"status"`
	JobCount  int                    `json:"job_count"`
	Data      []models.ListingRecord `json:"data"`
	Timestamp string                 `json:"timestamp"` // RFC 3339, UTC
}

// NewPayload wraps a completed batch.
func NewPayload(records []models.ListingRecord, now time.Time) *Payload {
	if records == nil {
		records = []models.ListingRecord{}
	}
	return &Payload{
		Status:    "success",
		JobCount:  len(records),
		Data:      records,
		Timestamp: now.UTC().Format(time.RFC3339),
	}
}

// Client delivers payloads. The zero value is not usable; use New.
type Client struct {
	http *http.Client
}

// New creates a Client whose requests time out after timeout.
func New(timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{http: &http.Client{Timeout: timeout}}
}

// Deliver POSTs payload once. The body is signed with HMAC-SHA256 if secret
// is non-empty. Failures are reported in the returned report, never retried.
func (c *Client) Deliver(ctx context.Context, url, secret string, payload *Payload) *models.DeliveryReport {
	body, err := json.Marshal(payload)
	if err != nil {
		return failed(fmt.Errorf("webhook: marshal payload: %w", err))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return failed(fmt.Errorf("webhook: create request: %w", err))
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", "Seekjobs-Webhook/1.0")
	if secret != "" {
		req.Header.Set(SignatureHeader, "sha256="+Sign(secret, body))
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return failed(fmt.Errorf("webhook: deliver: %w", err))
	}
	defer resp.Body.Close()

	// 64 KB of the endpoint's reply is plenty for the report.
	respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))

	slog.Info("webhook delivered",
		"url", url,
		"status", resp.StatusCode,
		"job_count", payload.JobCount,
	)
	return &models.DeliveryReport{
		Status:          "sent",
		WebhookStatus:   resp.StatusCode,
		WebhookResponse: string(respBody),
	}
}

// Sign returns the hex HMAC-SHA256 of body under secret.
func Sign(secret string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

func failed(err error) *models.DeliveryReport {
	slog.Warn("webhook delivery failed", "error", err)
	return &models.DeliveryReport{Status: "error", Message: err.Error()}
}
