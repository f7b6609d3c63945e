package store

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/kiranshivaraju/deliberate/pkg/models"
)

var ErrNotFound = errors.New("resource not found")

// Store owns the lifecycle of deliberation jobs. All job state access goes
// through here. Implementations must be safe for concurrent use: the runner
// writes while pollers read, and a reader must never observe a record
// mid-mutation.
//
// All mutators are no-ops on jobs that already reached a terminal state, so
// a straggling round update after a job-level timeout cannot corrupt the
// record.
type Store interface {
	CreateJob(ctx context.Context, job *models.Job) error
	GetJob(ctx context.Context, id uuid.UUID) (*models.Job, error)
	// ListJobs returns up to limit jobs, most recent first.
	ListJobs(ctx context.Context, limit int) ([]*models.Job, error)

	MarkRunning(ctx context.Context, id uuid.UUID) error
	RecordRound(ctx context.Context, id uuid.UUID, round int) error
	CompleteJob(ctx context.Context, id uuid.UUID, verdict models.Verdict) error
	FailJob(ctx context.Context, id uuid.UUID, reason string) error
}
