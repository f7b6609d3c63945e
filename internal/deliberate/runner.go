package deliberate

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/semaphore"

	"github.com/kiranshivaraju/deliberate/internal/cache"
	"github.com/kiranshivaraju/deliberate/internal/store"
	"github.com/kiranshivaraju/deliberate/pkg/models"
)

const jobStatusTTL = 30 * time.Minute

// Runner drives deliberation jobs end-to-end: it creates the pending record,
// dispatches a background goroutine per job, and writes every status change
// back to the store (and the status cache). A weighted semaphore bounds the
// number of concurrently running deliberations to cap outstanding model
// calls under load.
type Runner struct {
	store      store.Store
	cache      cache.Cache
	pipeline   *Pipeline
	sem        *semaphore.Weighted
	jobTimeout time.Duration
}

// NewRunner creates a Runner. maxConcurrent must be at least 1.
func NewRunner(st store.Store, ca cache.Cache, pipeline *Pipeline, maxConcurrent int, jobTimeout time.Duration) *Runner {
	return &Runner{
		store:      st,
		cache:      ca,
		pipeline:   pipeline,
		sem:        semaphore.NewWeighted(int64(maxConcurrent)),
		jobTimeout: jobTimeout,
	}
}

// Submit creates a pending job and dispatches the deliberation in a
// background goroutine. Returns the job immediately; the caller polls the
// store for progress. The goroutine's lifetime is decoupled from the
// request that created the job.
func (r *Runner) Submit(ctx context.Context, thesis, contextText string, modelIDs []string) (*models.Job, error) {
	if len(modelIDs) != 3 {
		return nil, fmt.Errorf("deliberation requires exactly 3 models, got %d", len(modelIDs))
	}

	job := &models.Job{
		ID:        uuid.New(),
		Status:    models.JobStatusPending,
		Thesis:    thesis,
		Context:   contextText,
		Models:    append([]string(nil), modelIDs...),
		CreatedAt: time.Now().UTC(),
	}

	if err := r.store.CreateJob(ctx, job); err != nil {
		return nil, fmt.Errorf("creating job: %w", err)
	}
	_ = r.cache.SetJobStatus(ctx, job.ID, models.JobStatusPending, jobStatusTTL)

	go r.run(job.ID, Inputs{Thesis: thesis, Context: contextText, Models: job.Models})

	return job, nil
}

// run executes one deliberation. It recovers from panics and always leaves
// the job in a terminal state.
func (r *Runner) run(jobID uuid.UUID, in Inputs) {
	ctx := context.Background()

	defer func() {
		if rec := recover(); rec != nil {
			slog.Error("panic in deliberation", "job_id", jobID, "error", rec)
			r.fail(ctx, jobID, fmt.Sprintf("panic: %v", rec))
		}
	}()

	// Jobs stay pending until a pool slot frees up.
	if err := r.sem.Acquire(ctx, 1); err != nil {
		r.fail(ctx, jobID, fmt.Sprintf("acquiring worker slot: %v", err))
		return
	}
	defer r.sem.Release(1)

	_ = r.store.MarkRunning(ctx, jobID)
	_ = r.cache.SetJobStatus(ctx, jobID, models.JobStatusRunning, jobStatusTTL)

	// Upper bound on the whole deliberation.
	runCtx, cancel := context.WithTimeout(ctx, r.jobTimeout)
	defer cancel()

	verdict, err := r.pipeline.Run(runCtx, in, func(round int) {
		_ = r.store.RecordRound(ctx, jobID, round)
		slog.Info("round started", "job_id", jobID, "round", round)
	})
	if err != nil {
		r.fail(ctx, jobID, failureReason(runCtx, err))
		return
	}

	if err := r.store.CompleteJob(ctx, jobID, verdict); err != nil {
		slog.Error("storing verdict", "job_id", jobID, "error", err)
		return
	}
	_ = r.cache.SetJobStatus(ctx, jobID, models.JobStatusCompleted, jobStatusTTL)
	slog.Info("job completed", "job_id", jobID,
		"rounds_completed", verdict.RoundsCompleted, "tokens_used", verdict.TokensUsed)
}

func (r *Runner) fail(ctx context.Context, jobID uuid.UUID, reason string) {
	slog.Error("job failed", "job_id", jobID, "reason", reason)
	if err := r.store.FailJob(ctx, jobID, reason); err != nil {
		slog.Error("marking job failed", "job_id", jobID, "error", err)
		return
	}
	_ = r.cache.SetJobStatus(ctx, jobID, models.JobStatusFailed, jobStatusTTL)
}

// failureReason turns a pipeline error into the short human-readable reason
// stored on the job. A deliberation cut short by the job-level deadline is
// reported as a timeout.
func failureReason(runCtx context.Context, err error) string {
	if errors.Is(runCtx.Err(), context.DeadlineExceeded) {
		return fmt.Sprintf("timeout: deliberation exceeded job deadline (%v)", err)
	}
	return err.Error()
}
