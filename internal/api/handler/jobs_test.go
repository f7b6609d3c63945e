package handler_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kiranshivaraju/deliberate/internal/api/handler"
	"github.com/kiranshivaraju/deliberate/internal/store"
	"github.com/kiranshivaraju/deliberate/pkg/models"
)

func seedJob(t *testing.T, st store.Store, createdAt time.Time) *models.Job {
	t.Helper()
	job := &models.Job{
		ID:        uuid.New(),
		Status:    models.JobStatusPending,
		Thesis:    "thesis",
		Models:    []string{"model-a", "model-b", "model-c"},
		CreatedAt: createdAt,
	}
	require.NoError(t, st.CreateJob(context.Background(), job))
	return job
}

func jobsRouter(st store.Store) http.Handler {
	r := chi.NewRouter()
	r.Get("/v1/jobs/{jobID}", handler.NewPollJobHandler(st))
	r.Get("/v1/jobs", handler.NewListJobsHandler(st))
	return r
}

func getJSON(t *testing.T, router http.Handler, path string) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	req := httptest.NewRequest("GET", path, nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	var body map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	return w, body
}

func TestPollJob_Pending(t *testing.T) {
	st := store.NewMemoryStore()
	job := seedJob(t, st, time.Now().UTC())
	router := jobsRouter(st)

	w, body := getJSON(t, router, "/v1/jobs/"+job.ID.String())

	assert.Equal(t, http.StatusOK, w.Code)
	data := body["data"].(map[string]any)
	assert.Equal(t, job.ID.String(), data["job_id"])
	assert.Equal(t, models.JobStatusPending, data["status"])
	assert.Equal(t, float64(0), data["current_round"])
	assert.NotContains(t, data, "result")
	assert.NotContains(t, data, "error")
	assert.NotContains(t, data, "completed_at")
}

func TestPollJob_Completed(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemoryStore()
	job := seedJob(t, st, time.Now().UTC())
	require.NoError(t, st.MarkRunning(ctx, job.ID))
	require.NoError(t, st.RecordRound(ctx, job.ID, 3))
	require.NoError(t, st.CompleteJob(ctx, job.ID, models.Verdict{
		Verdict:         "The thesis holds.",
		Confidence:      models.ConfidenceHigh,
		Reasoning:       "strong convergence",
		KeyAgreements:   []string{"a1"},
		TokensUsed:      500,
		RoundsCompleted: 3,
	}))
	router := jobsRouter(st)

	w, body := getJSON(t, router, "/v1/jobs/"+job.ID.String())

	assert.Equal(t, http.StatusOK, w.Code)
	data := body["data"].(map[string]any)
	assert.Equal(t, models.JobStatusCompleted, data["status"])
	require.Contains(t, data, "completed_at")

	result := data["result"].(map[string]any)
	assert.Equal(t, "The thesis holds.", result["verdict"])
	assert.Equal(t, models.ConfidenceHigh, result["confidence"])
	assert.Equal(t, float64(3), result["rounds_completed"])
	assert.Equal(t, float64(500), result["tokens_used"])
}

func TestPollJob_Failed(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemoryStore()
	job := seedJob(t, st, time.Now().UTC())
	require.NoError(t, st.FailJob(ctx, job.ID, "AllAgentsFailed: all 3 agents failed independent analysis"))
	router := jobsRouter(st)

	w, body := getJSON(t, router, "/v1/jobs/"+job.ID.String())

	assert.Equal(t, http.StatusOK, w.Code)
	data := body["data"].(map[string]any)
	assert.Equal(t, models.JobStatusFailed, data["status"])
	assert.Contains(t, data["error"], "AllAgentsFailed")
	assert.NotContains(t, data, "result")
}

func TestPollJob_NotFound(t *testing.T) {
	router := jobsRouter(store.NewMemoryStore())

	w, body := getJSON(t, router, "/v1/jobs/"+uuid.NewString())

	assert.Equal(t, http.StatusNotFound, w.Code)
	errObj := body["error"].(map[string]any)
	assert.Equal(t, "NOT_FOUND", errObj["code"])
}

func TestPollJob_InvalidUUID(t *testing.T) {
	router := jobsRouter(store.NewMemoryStore())

	w, body := getJSON(t, router, "/v1/jobs/not-a-uuid")

	assert.Equal(t, http.StatusBadRequest, w.Code)
	errObj := body["error"].(map[string]any)
	assert.Equal(t, "INVALID_REQUEST", errObj["code"])
}

func TestListJobs_MostRecentFirst(t *testing.T) {
	st := store.NewMemoryStore()
	base := time.Now().UTC()
	older := seedJob(t, st, base.Add(-time.Hour))
	newer := seedJob(t, st, base)
	router := jobsRouter(st)

	w, body := getJSON(t, router, "/v1/jobs")

	assert.Equal(t, http.StatusOK, w.Code)
	data := body["data"].([]any)
	require.Len(t, data, 2)
	first := data[0].(map[string]any)
	second := data[1].(map[string]any)
	assert.Equal(t, newer.ID.String(), first["job_id"])
	assert.Equal(t, older.ID.String(), second["job_id"])
}

func TestListJobs_Limit(t *testing.T) {
	st := store.NewMemoryStore()
	base := time.Now().UTC()
	for i := 0; i < 5; i++ {
		seedJob(t, st, base.Add(time.Duration(i)*time.Minute))
	}
	router := jobsRouter(st)

	w, body := getJSON(t, router, "/v1/jobs?limit=2")

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, body["data"].([]any), 2)
}

func TestListJobs_InvalidLimit(t *testing.T) {
	router := jobsRouter(store.NewMemoryStore())

	tests := []string{"abc", "0", "-5"}
	for _, limit := range tests {
		t.Run(limit, func(t *testing.T) {
			w, body := getJSON(t, router, "/v1/jobs?limit="+limit)

			assert.Equal(t, http.StatusBadRequest, w.Code)
			errObj := body["error"].(map[string]any)
			assert.Equal(t, "INVALID_REQUEST", errObj["code"])
		})
	}
}

func TestListJobs_Empty(t *testing.T) {
	router := jobsRouter(store.NewMemoryStore())

	w, body := getJSON(t, router, "/v1/jobs")

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, body["data"])
}
