package queue

import (
	"context"
	"testing"
	"time"

	"github.com/jobforge/orchestrator/internal/common"
	"github.com/jobforge/orchestrator/internal/models"
	"github.com/jobforge/orchestrator/internal/store"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"
)

type fakeHandler struct {
	delay  time.Duration
	status models.JobStatus
	err    error
}

func (h *fakeHandler) Execute(ctx context.Context, job *models.JobRequest) (*models.JobResult, error) {
	if h.delay > 0 {
		select {
		case <-time.After(h.delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if h.err != nil {
		return nil, h.err
	}
	return &models.JobResult{JobID: job.JobID, Status: h.status}, nil
}

func waitForStatus(t *testing.T, q *Queue, jobID string, want models.JobStatus, timeout time.Duration) *models.JobResult {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		result, err := q.GetJobStatus(context.Background(), jobID)
		require.NoError(t, err)
		if result.Status == want {
			return result
		}
		time.Sleep(20 * time.Millisecond)
	}
	t.Fatalf("job %q never reached status %q", jobID, want)
	return nil
}

func TestWorkerPoolRunsQueuedJobToCompletion(t *testing.T) {
	s := store.NewMemoryStore()
	cfg := common.QueueConfig{WorkerCount: 2, PollInterval: "10ms", MaxConcurrentPerUser: 2}
	q := New(s, arbor.NewLogger(), cfg)
	handlers := map[models.JobType]Handler{
		models.JobTypeJobSearch: &fakeHandler{status: models.JobStatusCompleted},
	}
	wp := NewWorkerPool(q, s, arbor.NewLogger(), handlers, cfg)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	wp.Start(ctx)
	defer wp.Stop()

	jobID, err := q.SubmitJob(ctx, "user-1", models.JobTypeJobSearch, nil, models.PriorityNormal, nil, 0)
	require.NoError(t, err)

	result := waitForStatus(t, q, jobID, models.JobStatusCompleted, time.Second)
	require.Equal(t, jobID, result.JobID)
}

func TestWorkerPoolUnregisteredJobTypeFails(t *testing.T) {
	s := store.NewMemoryStore()
	cfg := common.QueueConfig{WorkerCount: 1, PollInterval: "10ms", MaxConcurrentPerUser: 2}
	q := New(s, arbor.NewLogger(), cfg)
	wp := NewWorkerPool(q, s, arbor.NewLogger(), map[models.JobType]Handler{}, cfg)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	wp.Start(ctx)
	defer wp.Stop()

	jobID, err := q.SubmitJob(ctx, "user-1", models.JobTypeJobSearch, nil, models.PriorityNormal, nil, 0)
	require.NoError(t, err)

	result := waitForStatus(t, q, jobID, models.JobStatusFailed, time.Second)
	require.Contains(t, result.Error, "no handler registered")
}

func TestWorkerPoolCancellationDuringExecution(t *testing.T) {
	s := store.NewMemoryStore()
	cfg := common.QueueConfig{WorkerCount: 1, PollInterval: "10ms", MaxConcurrentPerUser: 2}
	q := New(s, arbor.NewLogger(), cfg)
	handlers := map[models.JobType]Handler{
		models.JobTypeJobSearch: &fakeHandler{delay: 500 * time.Millisecond, status: models.JobStatusCompleted},
	}
	wp := NewWorkerPool(q, s, arbor.NewLogger(), handlers, cfg)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	wp.Start(ctx)
	defer wp.Stop()

	jobID, err := q.SubmitJob(ctx, "user-1", models.JobTypeJobSearch, nil, models.PriorityNormal, nil, 0)
	require.NoError(t, err)

	// Give the dispatcher time to move it to active before cancelling.
	waitForStatus(t, q, jobID, models.JobStatusRunning, time.Second)
	require.NoError(t, q.CancelJob(ctx, jobID, "user-1"))

	result := waitForStatus(t, q, jobID, models.JobStatusCancelled, 2*time.Second)
	require.Equal(t, jobID, result.JobID)
}
