package handler

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/kiranshivaraju/deliberate/internal/api/response"
	"github.com/kiranshivaraju/deliberate/pkg/models"
)

const maxThesisLen = 10000

// Deliberator starts deliberation jobs. Satisfied by *deliberate.Runner.
type Deliberator interface {
	Submit(ctx context.Context, thesis, contextText string, modelIDs []string) (*models.Job, error)
}

// NewDeliberateHandler returns an http.HandlerFunc for POST /v1/deliberate.
// The response carries the job id and a poll location; the deliberation
// itself runs in the background.
func NewDeliberateHandler(runner Deliberator, defaultModels []string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Thesis  string   `json:"thesis"`
			Context string   `json:"context"`
			Models  []string `json:"models"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			response.Error(w, http.StatusBadRequest, "INVALID_REQUEST", "Invalid JSON body", nil)
			return
		}

		if req.Thesis == "" {
			response.Error(w, http.StatusBadRequest, "INVALID_REQUEST", "thesis is required", nil)
			return
		}
		if len(req.Thesis) > maxThesisLen {
			response.Error(w, http.StatusBadRequest, "INVALID_REQUEST",
				fmt.Sprintf("thesis must be at most %d characters", maxThesisLen), nil)
			return
		}

		modelIDs := req.Models
		if len(modelIDs) == 0 {
			modelIDs = defaultModels
		}
		if len(modelIDs) != 3 {
			response.Error(w, http.StatusBadRequest, "INVALID_REQUEST",
				"models must name exactly 3 model identifiers", nil)
			return
		}

		job, err := runner.Submit(r.Context(), req.Thesis, req.Context, modelIDs)
		if err != nil {
			response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR",
				"Failed to create deliberation job", nil)
			return
		}

		response.Accepted(w, jobCreatedResponse{
			JobID:   job.ID.String(),
			Status:  job.Status,
			PollURL: fmt.Sprintf("/v1/jobs/%s", job.ID),
		})
	}
}

type jobCreatedResponse struct {
	JobID   string `json:"job_id"`
	Status  string `json:"status"`
	PollURL string `json:"poll_url"`
}
