package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync/atomic"
	"testing"
	"time"

	"chatlens/internal/analysis"
	"chatlens/internal/database"
	"chatlens/internal/insights"
	"chatlens/internal/models"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	apierrors "k8s.io/apimachinery/pkg/api/errors"
	"k8s.io/apimachinery/pkg/runtime/schema"
)

type fakeInsights struct {
	gotDate string
	err     error
}

func (f *fakeInsights) Generate(_ context.Context, date string) (*models.DailyInsights, error) {
	f.gotDate = date
	if f.err != nil {
		return nil, f.err
	}
	return &models.DailyInsights{Date: "2025-09-04", WorkDay: "2025-09-03", Recommendations: []string{"ok"}}, nil
}

func TestDailyInsightsHandler(t *testing.T) {
	t.Run("with date", func(t *testing.T) {
		gen := &fakeInsights{}
		rec := serve(t, DailyInsightsHandler(gen, zerolog.Nop()), http.MethodGet, "/api/insights/daily/2025-09-04", "", "date", "2025-09-04")

		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "2025-09-04", gen.gotDate)

		var resp models.InsightsResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		assert.True(t, resp.Success)
		assert.Equal(t, "2025-09-03", resp.Data.WorkDay)
	})

	t.Run("today", func(t *testing.T) {
		gen := &fakeInsights{}
		rec := serve(t, DailyInsightsHandler(gen, zerolog.Nop()), http.MethodGet, "/api/insights/daily", "")

		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Empty(t, gen.gotDate)
	})

	t.Run("invalid date", func(t *testing.T) {
		gen := &fakeInsights{err: fmt.Errorf("%w: 2025-13-01", insights.ErrInvalidDate)}
		rec := serve(t, DailyInsightsHandler(gen, zerolog.Nop()), http.MethodGet, "/api/insights/daily/2025-13-01", "", "date", "2025-13-01")

		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("store failure", func(t *testing.T) {
		gen := &fakeInsights{err: errors.New("pq: timeout")}
		rec := serve(t, DailyInsightsHandler(gen, zerolog.Nop()), http.MethodGet, "/api/insights/daily", "")

		assert.Equal(t, http.StatusInternalServerError, rec.Code)
		var resp models.InsightsResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		assert.Equal(t, "Failed to generate insights", resp.Error)
	})
}

type fakeSessionReader struct {
	sessions      map[string]*models.SessionAggregate
	enrichments   map[string]*models.Enrichment
	err           error
	gotLimit      int
	gotOffset     int
	enrichmentErr error
}

func (f *fakeSessionReader) ListSessions(_ context.Context, limit, offset int) ([]models.SessionAggregate, int, error) {
	f.gotLimit, f.gotOffset = limit, offset
	if f.err != nil {
		return nil, 0, f.err
	}
	out := []models.SessionAggregate{}
	for _, s := range f.sessions {
		out = append(out, *s)
	}
	return out, len(out), nil
}

func (f *fakeSessionReader) GetSession(_ context.Context, key string) (*models.SessionAggregate, error) {
	if f.err != nil {
		return nil, f.err
	}
	s, ok := f.sessions[key]
	if !ok {
		return nil, database.ErrNotFound
	}
	return s, nil
}

func (f *fakeSessionReader) GetEnrichment(_ context.Context, key string) (*models.Enrichment, error) {
	if f.enrichmentErr != nil {
		return nil, f.enrichmentErr
	}
	e, ok := f.enrichments[key]
	if !ok {
		return nil, database.ErrNotFound
	}
	return e, nil
}

func TestListSessionsHandler(t *testing.T) {
	reader := &fakeSessionReader{sessions: map[string]*models.SessionAggregate{"s1": {SessionKey: "s1"}}}

	rec := serve(t, ListSessionsHandler(reader, zerolog.Nop()), http.MethodGet, "/api/sessions?limit=500&offset=-3", "")

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 20, reader.gotLimit)
	assert.Equal(t, 0, reader.gotOffset)

	var resp models.SessionListResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, 1, resp.Total)

	rec = serve(t, ListSessionsHandler(reader, zerolog.Nop()), http.MethodGet, "/api/sessions?limit=50&offset=100", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 50, reader.gotLimit)
	assert.Equal(t, 100, reader.gotOffset)

	reader.err = errors.New("pq: down")
	rec = serve(t, ListSessionsHandler(reader, zerolog.Nop()), http.MethodGet, "/api/sessions", "")
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestGetSessionHandler(t *testing.T) {
	summary := "Customer asked about a refund"
	reader := &fakeSessionReader{
		sessions: map[string]*models.SessionAggregate{
			"s1": {SessionKey: "s1", TotalMessages: 6},
			"s2": {SessionKey: "s2"},
		},
		enrichments: map[string]*models.Enrichment{"s1": {SessionKey: "s1", Summary: summary}},
	}

	tests := []struct {
		name           string
		key            string
		wantStatus     int
		wantEnrichment bool
	}{
		{"enriched", "s1", http.StatusOK, true},
		{"not yet enriched", "s2", http.StatusOK, false},
		{"unknown", "s3", http.StatusNotFound, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := serve(t, GetSessionHandler(reader, zerolog.Nop()), http.MethodGet, "/api/sessions/"+tt.key, "", "sessionKey", tt.key)
			assert.Equal(t, tt.wantStatus, rec.Code)

			var resp models.SessionDetailResponse
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
			if tt.wantStatus != http.StatusOK {
				assert.False(t, resp.Success)
				return
			}
			assert.Equal(t, tt.key, resp.Data.Session.SessionKey)
			assert.Equal(t, tt.wantEnrichment, resp.Data.Enrichment != nil)
		})
	}

	reader.enrichmentErr = errors.New("pq: down")
	rec := serve(t, GetSessionHandler(reader, zerolog.Nop()), http.MethodGet, "/api/sessions/s1", "", "sessionKey", "s1")
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

type fakeAnalyzer struct {
	result   *models.Enrichment
	err      error
	gotForce bool
}

func (f *fakeAnalyzer) AnalyzeSession(_ context.Context, _ string, force bool) (*models.Enrichment, error) {
	f.gotForce = force
	return f.result, f.err
}

func TestAnalyzeSessionHandler(t *testing.T) {
	t.Run("forced", func(t *testing.T) {
		a := &fakeAnalyzer{result: &models.Enrichment{SessionKey: "s1", Mood: "happy"}}
		rec := serve(t, AnalyzeSessionHandler(a, zerolog.Nop()), http.MethodPost, "/api/analysis/sessions/s1?force=true", "", "sessionKey", "s1")

		assert.Equal(t, http.StatusOK, rec.Code)
		assert.True(t, a.gotForce)
		var resp models.AnalysisResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		assert.False(t, resp.Skipped)
		assert.Equal(t, "happy", resp.Enrichment.Mood)
	})

	t.Run("already enriched", func(t *testing.T) {
		a := &fakeAnalyzer{}
		rec := serve(t, AnalyzeSessionHandler(a, zerolog.Nop()), http.MethodPost, "/api/analysis/sessions/s1", "", "sessionKey", "s1")

		assert.Equal(t, http.StatusOK, rec.Code)
		assert.False(t, a.gotForce)
		var resp models.AnalysisResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		assert.True(t, resp.Skipped)
	})

	t.Run("unknown session", func(t *testing.T) {
		a := &fakeAnalyzer{err: fmt.Errorf("failed to load session: %w", database.ErrNotFound)}
		rec := serve(t, AnalyzeSessionHandler(a, zerolog.Nop()), http.MethodPost, "/api/analysis/sessions/x", "", "sessionKey", "x")
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})

	t.Run("already running", func(t *testing.T) {
		a := &fakeAnalyzer{err: analysis.ErrInProgress}
		rec := serve(t, AnalyzeSessionHandler(a, zerolog.Nop()), http.MethodPost, "/api/analysis/sessions/s1", "", "sessionKey", "s1")
		assert.Equal(t, http.StatusConflict, rec.Code)
	})

	t.Run("provider failure", func(t *testing.T) {
		a := &fakeAnalyzer{err: errors.New("completion: 500")}
		rec := serve(t, AnalyzeSessionHandler(a, zerolog.Nop()), http.MethodPost, "/api/analysis/sessions/s1", "", "sessionKey", "s1")

		assert.Equal(t, http.StatusInternalServerError, rec.Code)
		var resp models.AnalysisResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		assert.Equal(t, "Failed to analyze session", resp.Error)
	})
}

type blockingRunner struct {
	gate  chan struct{}
	calls atomic.Int32
}

func (r *blockingRunner) Run(ctx context.Context) (models.BatchResult, error) {
	r.calls.Add(1)
	<-r.gate
	return models.BatchResult{Attempted: 1, Succeeded: 1}, nil
}

func TestBatchAnalysisHandler(t *testing.T) {
	runner := &blockingRunner{gate: make(chan struct{})}
	h := BatchAnalysisHandler(runner, zerolog.Nop())

	rec := serve(t, h, http.MethodPost, "/api/analysis/batch", "")
	assert.Equal(t, http.StatusAccepted, rec.Code)

	rec = serve(t, h, http.MethodPost, "/api/analysis/batch", "")
	assert.Equal(t, http.StatusConflict, rec.Code, "second run refused while the first is in progress")

	close(runner.gate)
	assert.Eventually(t, func() bool {
		return serve(t, h, http.MethodPost, "/api/analysis/batch", "").Code == http.StatusAccepted
	}, time.Second, 10*time.Millisecond)
	assert.Eventually(t, func() bool { return runner.calls.Load() == 2 }, time.Second, 10*time.Millisecond)
}

type fakeLauncher struct {
	statusErr error
	gotKind   string
}

func (f *fakeLauncher) CreateMaintenanceJob(_ context.Context, kind string) (string, error) {
	f.gotKind = kind
	return kind + "-1700000000", nil
}

func (f *fakeLauncher) GetJobStatus(_ context.Context, _ string) (*models.JobStatus, error) {
	if f.statusErr != nil {
		return nil, f.statusErr
	}
	return &models.JobStatus{Status: "running", Active: 1}, nil
}

func TestTriggerJobHandler(t *testing.T) {
	l := &fakeLauncher{}
	rec := serve(t, TriggerJobHandler(l, zerolog.Nop()), http.MethodPost, "/api/jobs", `{"kind":"update-embeddings"}`)

	assert.Equal(t, http.StatusOK, rec.Code)
	var resp models.JobResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "update-embeddings-1700000000", resp.JobName)

	rec = serve(t, TriggerJobHandler(l, zerolog.Nop()), http.MethodPost, "/api/jobs", `{"kind":"import-emails"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = serve(t, TriggerJobHandler(nil, zerolog.Nop()), http.MethodPost, "/api/jobs", `{"kind":"batch-analysis"}`)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestJobStatusHandler(t *testing.T) {
	rec := serve(t, JobStatusHandler(&fakeLauncher{}, zerolog.Nop()), http.MethodGet, "/api/jobs/j1", "", "name", "j1")
	assert.Equal(t, http.StatusOK, rec.Code)
	var resp models.JobResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "running", resp.Status.Status)

	notFound := fmt.Errorf("failed to get job: %w",
		apierrors.NewNotFound(schema.GroupResource{Group: "batch", Resource: "jobs"}, "j2"))
	rec = serve(t, JobStatusHandler(&fakeLauncher{statusErr: notFound}, zerolog.Nop()), http.MethodGet, "/api/jobs/j2", "", "name", "j2")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = serve(t, JobStatusHandler(&fakeLauncher{statusErr: errors.New("forbidden")}, zerolog.Nop()), http.MethodGet, "/api/jobs/j3", "", "name", "j3")
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

type fakeAnalytics struct {
	gotPeriod string
	err       error
}

func (f *fakeAnalytics) GetSummary(_ context.Context, period string) (*models.AnalyticsSummary, error) {
	f.gotPeriod = period
	if f.err != nil {
		return nil, f.err
	}
	return &models.AnalyticsSummary{Period: period, SessionsIngested: 12}, nil
}

func TestAnalyticsHandler(t *testing.T) {
	reader := &fakeAnalytics{}
	rec := serve(t, AnalyticsHandler(reader, zerolog.Nop()), http.MethodGet, "/api/analytics", "")

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "yesterday", reader.gotPeriod)

	rec = serve(t, AnalyticsHandler(reader, zerolog.Nop()), http.MethodGet, "/api/analytics?period=last_7_days", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	var resp models.AnalyticsResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, 12, resp.Summary.SessionsIngested)
	assert.Equal(t, "last_7_days", resp.Summary.Period)

	reader.err = errors.New("pq: down")
	rec = serve(t, AnalyticsHandler(reader, zerolog.Nop()), http.MethodGet, "/api/analytics", "")
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "Failed to get analytics summary", resp.Error)
}
