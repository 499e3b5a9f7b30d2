package api

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/use-agent/seekjobs/api/handler"
	"github.com/use-agent/seekjobs/cache"
	"github.com/use-agent/seekjobs/config"
	"github.com/use-agent/seekjobs/models"
	"github.com/use-agent/seekjobs/output"
	"github.com/use-agent/seekjobs/webhook"
)

const base = "https://www.seek.com.au"

type fakeScraper struct {
	mu          sync.Mutex
	cards       []models.ListingReference
	records     map[string]models.ListingRecord
	err         error
	detailCalls int

	// hold makes GetDetailsBatch block until its context ends.
	hold bool
}

func (f *fakeScraper) ListCards(_ context.Context, _, _ string) ([]models.ListingReference, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.cards, nil
}

// GetDetail tags the description with the format it was asked for.
func (f *fakeScraper) GetDetail(_ context.Context, id, format string) (*models.ListingRecord, error) {
	f.mu.Lock()
	f.detailCalls++
	f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	rec, ok := f.records[id]
	if !ok {
		return nil, nil
	}
	rec.Description = format + ":" + rec.Description
	return &rec, nil
}

func (f *fakeScraper) GetDetailsBatch(ctx context.Context, ids []string, _ string) ([]models.ListingRecord, error) {
	if f.hold {
		<-ctx.Done()
		return nil, models.NewScrapeError(models.ErrCodeTimeout, "canceled", ctx.Err())
	}
	if f.err != nil {
		return nil, f.err
	}
	out := make([]models.ListingRecord, 0, len(ids))
	for _, id := range ids {
		if rec, ok := f.records[id]; ok {
			out = append(out, rec)
			continue
		}
		out = append(out, models.FailedRecord(id, base+"/job/"+id, nil))
	}
	return out, nil
}

func (f *fakeScraper) Stats() (int, int) { return 0, 2 }

func (f *fakeScraper) calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.detailCalls
}

type fakeStore struct {
	mu       sync.Mutex
	upserted []string
}

func (s *fakeStore) UpsertListings(_ context.Context, _ string, recs []models.ListingRecord) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, r := range recs {
		if !r.Failed() {
			s.upserted = append(s.upserted, r.JobID)
			n++
		}
	}
	return n, nil
}

func (s *fakeStore) GetListing(context.Context, string, string) (*models.ListingRecord, time.Time, bool, error) {
	return nil, time.Time{}, false, nil
}

func analyst() models.ListingRecord {
	return models.ListingRecord{
		JobID: "1", URL: base + "/job/1", Title: "Senior Data Analyst", Company: "Acme",
		Location: "Sydney NSW", Description: "d", PostingTime: "Posted 2h ago",
		WorkType: "Full time", Industry: "ICT", Category: "Data Analyst",
	}
}

func setup(t *testing.T, sc *fakeScraper) (*gin.Engine, *handler.Services) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	out, err := output.NewWriter(t.TempDir())
	require.NoError(t, err)
	cc := cache.New(100)
	t.Cleanup(cc.Close)

	s := &handler.Services{
		Scraper:     sc,
		Output:      out,
		Store:       &fakeStore{},
		Cache:       cc,
		Webhook:     webhook.New(2 * time.Second),
		WebhookJobs: handler.NewWebhookJobs(ctx, time.Hour),
		BaseURL:     base,
		FetchMode:   "browser",
		Version:     "test",
		StartTime:   time.Now(),
	}
	cfg := &config.Config{
		Server:    config.ServerConfig{Mode: gin.TestMode},
		RateLimit: config.RateLimitConfig{RequestsPerSecond: 1000, Burst: 1000},
	}
	return NewRouter(ctx, s, cfg), s
}

func call(r http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	var rd io.Reader
	if body != nil {
		b, _ := json.Marshal(body)
		rd = bytes.NewReader(b)
	}
	req := httptest.NewRequest(method, path, rd)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestCards(t *testing.T) {
	sc := &fakeScraper{cards: []models.ListingReference{
		{ID: "1", URL: base + "/job/1", PostedDate: "Posted 2h ago"},
	}}
	r, _ := setup(t, sc)

	w := call(r, http.MethodPost, "/api/v1/cards", gin.H{
		"search_url":        base + "/data-analyst-jobs",
		"posted_date_limit": "1d ago",
		"save":              true,
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var resp models.CardsResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "success", resp.Status)
	assert.Equal(t, 1, resp.JobCardCount)
	assert.Equal(t, "1", resp.Data[0].ID)
	require.NotEmpty(t, resp.OutputFile)
	_, err := os.Stat(resp.OutputFile)
	assert.NoError(t, err)
}

func TestCards_InvalidInput(t *testing.T) {
	r, _ := setup(t, &fakeScraper{})
	w := call(r, http.MethodPost, "/api/v1/cards", gin.H{"search_url": "not a url"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), models.ErrCodeInvalidInput)
}

func TestCards_EmptyIsArray(t *testing.T) {
	r, _ := setup(t, &fakeScraper{cards: []models.ListingReference{}})
	w := call(r, http.MethodPost, "/api/v1/cards", gin.H{"search_url": base + "/jobs"})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"data":[]`)
	assert.NotContains(t, w.Body.String(), "output_file")
}

func TestJobs_InlineFailures(t *testing.T) {
	sc := &fakeScraper{records: map[string]models.ListingRecord{"1": analyst()}}
	r, s := setup(t, sc)

	w := call(r, http.MethodPost, "/api/v1/jobs", gin.H{"job_ids": []string{"1", "999999"}})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var resp models.JobsResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, 2, resp.JobCount)
	assert.Equal(t, "Senior Data Analyst", resp.Data[0].Title)
	assert.Equal(t, "999999", resp.Data[1].JobID)
	assert.NotEmpty(t, resp.Data[1].Error)
	assert.Empty(t, resp.Data[1].Title)

	assert.Equal(t, []string{"1"}, s.Store.(*fakeStore).upserted)
	assert.Equal(t, 1, s.Cache.Len())
}

func TestJobs_RejectsNonNumericIDs(t *testing.T) {
	r, _ := setup(t, &fakeScraper{})
	w := call(r, http.MethodPost, "/api/v1/jobs", gin.H{"job_ids": []string{"1", "abc"}})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = call(r, http.MethodPost, "/api/v1/jobs", gin.H{"job_ids": []string{}})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestJob_NotLoadedIsFailedWith200(t *testing.T) {
	r, _ := setup(t, &fakeScraper{records: map[string]models.ListingRecord{}})
	w := call(r, http.MethodGet, "/api/v1/jobs/999999", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var resp models.JobsResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "failed", resp.Status)
	assert.Zero(t, resp.JobCount)
	require.NotNil(t, resp.Error)
	assert.Equal(t, models.ErrCodeNavigation, resp.Error.Code)
}

func TestJob_MaxAgeUsesCache(t *testing.T) {
	sc := &fakeScraper{records: map[string]models.ListingRecord{"1": analyst()}}
	r, _ := setup(t, sc)

	var first, second models.JobsResponse
	w := call(r, http.MethodGet, "/api/v1/jobs/1?max_age=60000", nil)
	require.Equal(t, http.StatusOK, w.Code)
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &first))
	assert.Equal(t, "miss", first.CacheStatus)

	w = call(r, http.MethodGet, "/api/v1/jobs/1?max_age=60000", nil)
	require.Equal(t, http.StatusOK, w.Code)
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &second))
	assert.Equal(t, "hit", second.CacheStatus)
	assert.Equal(t, "Data Analyst", second.Data[0].Category)

	assert.Equal(t, 1, sc.calls())
}

func TestJob_MaxAgeKeepsFormatsApart(t *testing.T) {
	sc := &fakeScraper{records: map[string]models.ListingRecord{"1": analyst()}}
	r, _ := setup(t, sc)

	w := call(r, http.MethodGet, "/api/v1/jobs/1?format=text", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var md models.JobsResponse
	w = call(r, http.MethodGet, "/api/v1/jobs/1?format=markdown&max_age=600000", nil)
	require.Equal(t, http.StatusOK, w.Code)
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &md))
	assert.Equal(t, "miss", md.CacheStatus)
	require.Len(t, md.Data, 1)
	assert.Equal(t, "markdown:d", md.Data[0].Description)
	assert.Equal(t, 2, sc.calls())

	var txt models.JobsResponse
	w = call(r, http.MethodGet, "/api/v1/jobs/1?format=text&max_age=600000", nil)
	require.Equal(t, http.StatusOK, w.Code)
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &txt))
	assert.Equal(t, "hit", txt.CacheStatus)
	assert.Equal(t, "text:d", txt.Data[0].Description)
	assert.Equal(t, 2, sc.calls())
}

func TestJob_BadParams(t *testing.T) {
	r, _ := setup(t, &fakeScraper{})
	assert.Equal(t, http.StatusBadRequest, call(r, http.MethodGet, "/api/v1/jobs/12x", nil).Code)
	assert.Equal(t, http.StatusBadRequest, call(r, http.MethodGet, "/api/v1/jobs/1?max_age=-5", nil).Code)
	assert.Equal(t, http.StatusBadRequest, call(r, http.MethodGet, "/api/v1/jobs/1?format=pdf", nil).Code)
}

func TestJob_SessionUnavailable(t *testing.T) {
	sc := &fakeScraper{err: models.NewScrapeError(models.ErrCodeTimeout, "no browser session available", context.Canceled)}
	r, _ := setup(t, sc)
	w := call(r, http.MethodGet, "/api/v1/jobs/1", nil)
	assert.Equal(t, http.StatusGatewayTimeout, w.Code)
	assert.Contains(t, w.Body.String(), models.ErrCodeTimeout)
}

func TestWebhook_DeliversOnce(t *testing.T) {
	var mu sync.Mutex
	var hits int
	var payload webhook.Payload
	receiver := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		defer mu.Unlock()
		hits++
		_ = json.NewDecoder(r.Body).Decode(&payload)
		w.WriteHeader(http.StatusOK)
	}))
	defer receiver.Close()

	sc := &fakeScraper{records: map[string]models.ListingRecord{"1": analyst()}}
	r, _ := setup(t, sc)

	w := call(r, http.MethodPost, "/api/v1/jobs/webhook", gin.H{
		"job_ids":     []string{"1", "2"},
		"webhook_url": receiver.URL,
	})
	require.Equal(t, http.StatusAccepted, w.Code, w.Body.String())
	var accepted models.WebhookAccepted
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &accepted))
	assert.Equal(t, "accepted", accepted.Status)
	require.NotEmpty(t, accepted.ID)

	var job models.WebhookJob
	require.Eventually(t, func() bool {
		w := call(r, http.MethodGet, "/api/v1/jobs/webhook/"+accepted.ID, nil)
		if w.Code != http.StatusOK {
			return false
		}
		_ = json.Unmarshal(w.Body.Bytes(), &job)
		return job.Status != "processing"
	}, 5*time.Second, 20*time.Millisecond)

	assert.Equal(t, "delivered", job.Status)
	assert.Equal(t, 2, job.JobCount)
	require.NotNil(t, job.Delivery)
	assert.Equal(t, "sent", job.Delivery.Status)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, 1, hits)
	assert.Equal(t, 2, payload.JobCount)
}

func TestWebhook_RunsStopWithServer(t *testing.T) {
	r, s := setup(t, &fakeScraper{hold: true})
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	s.WebhookJobs = handler.NewWebhookJobs(ctx, time.Hour)

	w := call(r, http.MethodPost, "/api/v1/jobs/webhook", gin.H{
		"job_ids":     []string{"1"},
		"webhook_url": "http://127.0.0.1:1/hook",
	})
	require.Equal(t, http.StatusAccepted, w.Code, w.Body.String())

	short, stop := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer stop()
	assert.ErrorIs(t, s.WebhookJobs.Wait(short), context.DeadlineExceeded, "run should still be in flight")

	cancel()
	done, stopDone := context.WithTimeout(context.Background(), 5*time.Second)
	defer stopDone()
	require.NoError(t, s.WebhookJobs.Wait(done))

	var accepted models.WebhookAccepted
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &accepted))
	job, ok := s.WebhookJobs.Get(accepted.ID)
	require.True(t, ok)
	assert.Equal(t, "delivery_failed", job.Status)
	assert.Equal(t, 1, job.JobCount)
}

func TestWebhook_UnknownID(t *testing.T) {
	r, _ := setup(t, &fakeScraper{})
	w := call(r, http.MethodGet, "/api/v1/jobs/webhook/nope", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestHealthAndIndex(t *testing.T) {
	r, _ := setup(t, &fakeScraper{})

	w := call(r, http.MethodGet, "/api/v1/health", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var h models.HealthResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &h))
	assert.Equal(t, "healthy", h.Status)
	assert.Equal(t, 2, h.MaxSessions)
	assert.Equal(t, "browser", h.FetchMode)

	w = call(r, http.MethodGet, "/", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "/api/v1/cards")
}
