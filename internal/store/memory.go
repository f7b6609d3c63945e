package store

import (
	"context"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/kiranshivaraju/deliberate/pkg/models"
)

// MemoryStore implements Store with process memory as the only backing.
// Jobs live from process start to process end; durability across restarts
// is deliberately out of scope.
//
// Records are replaced wholesale under the lock and handed out as deep
// copies, so concurrent pollers always see a consistent snapshot.
type MemoryStore struct {
	mu   sync.RWMutex
	jobs map[uuid.UUID]*models.Job
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{jobs: make(map[uuid.UUID]*models.Job)}
}

func (s *MemoryStore) CreateJob(_ context.Context, job *models.Job) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.jobs[job.ID] = job.Clone()
	return nil
}

func (s *MemoryStore) GetJob(_ context.Context, id uuid.UUID) (*models.Job, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	job, ok := s.jobs[id]
	if !ok {
		return nil, ErrNotFound
	}
	return job.Clone(), nil
}

func (s *MemoryStore) ListJobs(_ context.Context, limit int) ([]*models.Job, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	all := make([]*models.Job, 0, len(s.jobs))
	for _, job := range s.jobs {
		all = append(all, job)
	}
	sort.Slice(all, func(i, j int) bool {
		return all[i].CreatedAt.After(all[j].CreatedAt)
	})

	if limit > 0 && limit < len(all) {
		all = all[:limit]
	}
	out := make([]*models.Job, len(all))
	for i, job := range all {
		out[i] = job.Clone()
	}
	return out, nil
}

func (s *MemoryStore) MarkRunning(_ context.Context, id uuid.UUID) error {
	return s.mutate(id, "mark running", func(job *models.Job) {
		job.Status = models.JobStatusRunning
	})
}

func (s *MemoryStore) RecordRound(_ context.Context, id uuid.UUID, round int) error {
	return s.mutate(id, "record round", func(job *models.Job) {
		job.CurrentRound = round
	})
}

func (s *MemoryStore) CompleteJob(_ context.Context, id uuid.UUID, verdict models.Verdict) error {
	return s.mutate(id, "complete", func(job *models.Job) {
		v := verdict.Clone()
		now := time.Now().UTC()
		job.Status = models.JobStatusCompleted
		job.Result = &v
		job.TokensUsed = v.TokensUsed
		job.CompletedAt = &now
	})
}

func (s *MemoryStore) FailJob(_ context.Context, id uuid.UUID, reason string) error {
	return s.mutate(id, "fail", func(job *models.Job) {
		now := time.Now().UTC()
		job.Status = models.JobStatusFailed
		job.ErrorMessage = &reason
		job.CompletedAt = &now
	})
}

// mutate applies fn to a fresh clone of the record and swaps the clone in,
// so readers holding a previous snapshot are never affected. Transitions on
// terminal jobs are dropped with a log line, not an error.
func (s *MemoryStore) mutate(id uuid.UUID, op string, fn func(*models.Job)) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	job, ok := s.jobs[id]
	if !ok {
		return ErrNotFound
	}
	if models.IsTerminal(job.Status) {
		slog.Warn("ignoring transition on terminal job", "job_id", id, "op", op, "status", job.Status)
		return nil
	}

	next := job.Clone()
	fn(next)
	s.jobs[id] = next
	return nil
}

// Compile-time check that MemoryStore implements Store.
var _ Store = (*MemoryStore)(nil)
