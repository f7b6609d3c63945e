package models

import (
	"time"

	"github.com/google/uuid"
)

const (
	JobStatusPending   = "pending"
	JobStatusRunning   = "running"
	JobStatusCompleted = "completed"
	JobStatusFailed    = "failed"
)

// IsTerminal reports whether a job status is final. Completed and failed
// jobs never transition again.
func IsTerminal(status string) bool {
	return status == JobStatusCompleted || status == JobStatusFailed
}

// Job tracks one end-to-end deliberation. The API returns a job_id on
// POST /v1/deliberate; the client polls GET /v1/jobs/{job_id} until status
// is completed or failed.
//
// Thesis, Context and Models are immutable after creation. Status only moves
// forward: pending -> running -> completed|failed. CurrentRound is 0 before
// the pipeline starts and tracks the round being executed afterwards.
type Job struct {
	ID           uuid.UUID  `json:"id"`
	Status       string     `json:"status"`
	Thesis       string     `json:"thesis"`
	Context      string     `json:"context,omitempty"`
	Models       []string   `json:"models"`
	CurrentRound int        `json:"current_round"`
	Result       *Verdict   `json:"result,omitempty"`
	ErrorMessage *string    `json:"error,omitempty"`
	TokensUsed   int        `json:"tokens_used"`
	CreatedAt    time.Time  `json:"created_at"`
	CompletedAt  *time.Time `json:"completed_at,omitempty"`
}

// Clone returns a deep copy of the job. The store hands out clones so that
// pollers never observe a record mid-mutation and callers cannot reach back
// into stored state.
func (j *Job) Clone() *Job {
	c := *j
	c.Models = append([]string(nil), j.Models...)
	if j.Result != nil {
		r := j.Result.Clone()
		c.Result = &r
	}
	if j.ErrorMessage != nil {
		msg := *j.ErrorMessage
		c.ErrorMessage = &msg
	}
	if j.CompletedAt != nil {
		t := *j.CompletedAt
		c.CompletedAt = &t
	}
	return &c
}
