package deliberate

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kiranshivaraju/deliberate/internal/gateway/mock"
	"github.com/kiranshivaraju/deliberate/internal/store"
	"github.com/kiranshivaraju/deliberate/pkg/models"
)

// fakeCache records job status writes in memory.
type fakeCache struct {
	mu       sync.Mutex
	statuses map[uuid.UUID][]string
}

func newFakeCache() *fakeCache {
	return &fakeCache{statuses: make(map[uuid.UUID][]string)}
}

func (c *fakeCache) Ping(_ context.Context) error { return nil }
func (c *fakeCache) Close() error                 { return nil }
func (c *fakeCache) SetJobStatus(_ context.Context, jobID uuid.UUID, status string, _ time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.statuses[jobID] = append(c.statuses[jobID], status)
	return nil
}
func (c *fakeCache) GetJobStatus(_ context.Context, jobID uuid.UUID) (string, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	s := c.statuses[jobID]
	if len(s) == 0 {
		return "", false, nil
	}
	return s[len(s)-1], true, nil
}
func (c *fakeCache) IncrWithExpiry(_ context.Context, _ string, _ time.Duration) (int64, error) {
	return 1, nil
}

func (c *fakeCache) history(jobID uuid.UUID) []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.statuses[jobID]...)
}

var defaultTestModels = []string{"model-a", "model-b", "model-c"}

func awaitTerminal(t *testing.T, st store.Store, jobID uuid.UUID) *models.Job {
	t.Helper()
	var job *models.Job
	require.Eventually(t, func() bool {
		var err error
		job, err = st.GetJob(context.Background(), jobID)
		return err == nil && models.IsTerminal(job.Status)
	}, 5*time.Second, 10*time.Millisecond)
	return job
}

func TestRunner_Submit_RequiresThreeModels(t *testing.T) {
	r := NewRunner(store.NewMemoryStore(), newFakeCache(),
		newTestPipeline(mock.NewGateway()), 4, time.Minute)

	_, err := r.Submit(context.Background(), "thesis", "", []string{"only-one"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "exactly 3 models")
}

func TestRunner_JobCompletesEndToEnd(t *testing.T) {
	st := store.NewMemoryStore()
	ca := newFakeCache()
	r := NewRunner(st, ca, newTestPipeline(mock.NewGateway()), 4, time.Minute)

	job, err := r.Submit(context.Background(), "thesis under test", "some context", defaultTestModels)
	require.NoError(t, err)
	assert.Equal(t, models.JobStatusPending, job.Status)

	final := awaitTerminal(t, st, job.ID)
	assert.Equal(t, models.JobStatusCompleted, final.Status)
	require.NotNil(t, final.Result)
	assert.NotEmpty(t, final.Result.Verdict)
	assert.Greater(t, final.TokensUsed, 0)
	require.NotNil(t, final.CompletedAt)
	assert.Nil(t, final.ErrorMessage)

	// Status mirror saw every transition in order.
	assert.Equal(t, []string{
		models.JobStatusPending, models.JobStatusRunning, models.JobStatusCompleted,
	}, ca.history(job.ID))
}

func TestRunner_JobFailsWhenAllAgentsFail(t *testing.T) {
	st := store.NewMemoryStore()
	r := NewRunner(st, newFakeCache(),
		newTestPipeline(mock.NewFailingGateway(models.ErrProviderError)), 4, time.Minute)

	job, err := r.Submit(context.Background(), "thesis", "", defaultTestModels)
	require.NoError(t, err)

	final := awaitTerminal(t, st, job.ID)
	assert.Equal(t, models.JobStatusFailed, final.Status)
	require.NotNil(t, final.ErrorMessage)
	assert.Contains(t, *final.ErrorMessage, "AllAgentsFailed")
	require.NotNil(t, final.CompletedAt)
	assert.Nil(t, final.Result)
}

func TestRunner_JobTimeoutReportedAsTimeout(t *testing.T) {
	st := store.NewMemoryStore()
	gw := mock.NewTimeoutGateway()
	p := NewPipeline(gw, 10*time.Second)
	r := NewRunner(st, newFakeCache(), p, 4, 50*time.Millisecond)

	job, err := r.Submit(context.Background(), "thesis", "", defaultTestModels)
	require.NoError(t, err)

	final := awaitTerminal(t, st, job.ID)
	assert.Equal(t, models.JobStatusFailed, final.Status)
	require.NotNil(t, final.ErrorMessage)
	assert.Contains(t, *final.ErrorMessage, "timeout")
}

func TestRunner_RecoversFromPanic(t *testing.T) {
	st := store.NewMemoryStore()
	gw := &mock.Gateway{
		CompleteFunc: func(_ context.Context, model, prompt string) (models.Completion, error) {
			// Panic outside the round executor, in the synthesis call made
			// directly on the runner's goroutine.
			if promptRound(prompt) == 3 {
				panic("synthesis exploded")
			}
			return models.Completion{Text: "analysis from " + model, TokensUsed: 1}, nil
		},
	}
	r := NewRunner(st, newFakeCache(), newTestPipeline(gw), 4, time.Minute)

	job, err := r.Submit(context.Background(), "thesis", "", defaultTestModels)
	require.NoError(t, err)

	final := awaitTerminal(t, st, job.ID)
	assert.Equal(t, models.JobStatusFailed, final.Status)
	require.NotNil(t, final.ErrorMessage)
	assert.Contains(t, *final.ErrorMessage, "panic")
}

func TestRunner_PanickingAgentCallsFailOnlyTheJob(t *testing.T) {
	st := store.NewMemoryStore()
	gw := &mock.Gateway{
		CompleteFunc: func(_ context.Context, _, _ string) (models.Completion, error) {
			panic("gateway exploded")
		},
	}
	r := NewRunner(st, newFakeCache(), newTestPipeline(gw), 4, time.Minute)

	job, err := r.Submit(context.Background(), "thesis", "", defaultTestModels)
	require.NoError(t, err)

	// Every agent call panics; the job fails, the process does not.
	final := awaitTerminal(t, st, job.ID)
	assert.Equal(t, models.JobStatusFailed, final.Status)
	require.NotNil(t, final.ErrorMessage)
	assert.Contains(t, *final.ErrorMessage, "AllAgentsFailed")
}

func TestRunner_BoundsConcurrentJobs(t *testing.T) {
	st := store.NewMemoryStore()

	// Each running job fans out 3 calls. With a single worker slot, the
	// peak must stay at one job's worth of in-flight calls.
	var inFlight, peak atomic.Int32
	gw := &mock.Gateway{
		CompleteFunc: func(_ context.Context, model, prompt string) (models.Completion, error) {
			n := inFlight.Add(1)
			for {
				p := peak.Load()
				if n <= p || peak.CompareAndSwap(p, n) {
					break
				}
			}
			time.Sleep(20 * time.Millisecond)
			inFlight.Add(-1)
			if promptRound(prompt) == 3 {
				return models.Completion{Text: synthesisResponse, TokensUsed: 1}, nil
			}
			return models.Completion{Text: "analysis from " + model, TokensUsed: 1}, nil
		},
	}
	r := NewRunner(st, newFakeCache(), newTestPipeline(gw), 1, time.Minute)

	var ids []uuid.UUID
	for i := 0; i < 3; i++ {
		job, err := r.Submit(context.Background(), "thesis", "", defaultTestModels)
		require.NoError(t, err)
		ids = append(ids, job.ID)
	}

	for _, id := range ids {
		final := awaitTerminal(t, st, id)
		assert.Equal(t, models.JobStatusCompleted, final.Status)
	}
	assert.LessOrEqual(t, peak.Load(), int32(3))
}
