package webhook

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/use-agent/seekjobs/models"
)

func TestDeliver_SentWithSignature(t *testing.T) {
	var gotSig string
	var got Payload
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		gotSig = r.Header.Get(SignatureHeader)
		assert.Equal(t, "sha256="+Sign("s3cret", body), gotSig)
		assert.NoError(t, json.Unmarshal(body, &got))
		w.WriteHeader(http.StatusAccepted)
		_, _ = w.Write([]byte(`{"ok":true}`))
	}))
	defer srv.Close()

	records := []models.ListingRecord{
		{JobID: "1", URL: "https://www.seek.com.au/job/1", Title: "Data Analyst"},
		models.FailedRecord("2", "https://www.seek.com.au/job/2", nil),
	}
	now := time.Date(2026, 3, 1, 9, 30, 0, 0, time.UTC)

	report := New(time.Second).Deliver(context.Background(), srv.URL, "s3cret", NewPayload(records, now))

	require.Equal(t, "sent", report.Status)
	assert.Equal(t, http.StatusAccepted, report.WebhookStatus)
	assert.Equal(t, `{"ok":true}`, report.WebhookResponse)
	assert.NotEmpty(t, gotSig)
	assert.Equal(t, "success", got.Status)
	assert.Equal(t, 2, got.JobCount)
	assert.Equal(t, "2026-03-01T09:30:00Z", got.Timestamp)
	assert.Equal(t, "Data Analyst", got.Data[0].Title)
}

func TestDeliver_ErrorStatusIsStillSent(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte("nope"))
	}))
	defer srv.Close()

	report := New(time.Second).Deliver(context.Background(), srv.URL, "", NewPayload(nil, time.Now()))
	assert.Equal(t, "sent", report.Status)
	assert.Equal(t, http.StatusInternalServerError, report.WebhookStatus)
	assert.Equal(t, "nope", report.WebhookResponse)
}

func TestDeliver_Unreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	report := New(time.Second).Deliver(context.Background(), url, "", NewPayload(nil, time.Now()))
	assert.Equal(t, "error", report.Status)
	assert.Contains(t, report.Message, "webhook: deliver")
	assert.Zero(t, report.WebhookStatus)
}

func TestNewPayload_EmptyDataIsArray(t *testing.T) {
	b, err := json.Marshal(NewPayload(nil, time.Now()))
	require.NoError(t, err)
	assert.Contains(t, string(b), `"data":[]`)
	assert.Contains(t, string(b), `"job_count":0`)
}
