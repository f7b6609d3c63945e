package handler

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/kiranshivaraju/deliberate/internal/api/response"
	"github.com/kiranshivaraju/deliberate/internal/store"
	"github.com/kiranshivaraju/deliberate/pkg/models"
)

const (
	defaultListLimit = 20
	maxListLimit     = 100
)

// NewPollJobHandler returns an http.HandlerFunc for GET /v1/jobs/{jobID}.
// Poll until status is completed or failed; reads never mutate the job.
func NewPollJobHandler(st store.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		jobID, err := uuid.Parse(chi.URLParam(r, "jobID"))
		if err != nil {
			response.Error(w, http.StatusBadRequest, "INVALID_REQUEST", "jobID must be a valid UUID", nil)
			return
		}

		job, err := st.GetJob(r.Context(), jobID)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				response.Error(w, http.StatusNotFound, "NOT_FOUND", "Job not found", nil)
				return
			}
			response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR",
				"Failed to load job", nil)
			return
		}

		response.JSON(w, toJobStatus(job))
	}
}

// NewListJobsHandler returns an http.HandlerFunc for GET /v1/jobs.
// Jobs come back most recent first; limit defaults to 20, clamped to 100.
func NewListJobsHandler(st store.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		limit := defaultListLimit
		if v := r.URL.Query().Get("limit"); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil || n < 1 {
				response.Error(w, http.StatusBadRequest, "INVALID_REQUEST", "limit must be a positive integer", nil)
				return
			}
			limit = n
		}
		if limit > maxListLimit {
			limit = maxListLimit
		}

		jobs, err := st.ListJobs(r.Context(), limit)
		if err != nil {
			response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR",
				"Failed to list jobs", nil)
			return
		}

		out := make([]jobStatusResponse, len(jobs))
		for i, job := range jobs {
			out[i] = toJobStatus(job)
		}
		response.JSON(w, out)
	}
}

type jobStatusResponse struct {
	JobID        string          `json:"job_id"`
	Status       string          `json:"status"`
	CurrentRound int             `json:"current_round"`
	Result       *models.Verdict `json:"result,omitempty"`
	Error        *string         `json:"error,omitempty"`
	CreatedAt    string          `json:"created_at"`
	CompletedAt  *string         `json:"completed_at,omitempty"`
}

func toJobStatus(job *models.Job) jobStatusResponse {
	resp := jobStatusResponse{
		JobID:        job.ID.String(),
		Status:       job.Status,
		CurrentRound: job.CurrentRound,
		Result:       job.Result,
		Error:        job.ErrorMessage,
		CreatedAt:    job.CreatedAt.UTC().Format(time.RFC3339),
	}
	if job.CompletedAt != nil {
		s := job.CompletedAt.UTC().Format(time.RFC3339)
		resp.CompletedAt = &s
	}
	return resp
}
