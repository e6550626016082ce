package queue

import (
	"context"
	"testing"

	"github.com/jobforge/orchestrator/internal/common"
	"github.com/jobforge/orchestrator/internal/models"
	"github.com/jobforge/orchestrator/internal/store"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"
)

func newTestQueue(t *testing.T) (*Queue, store.Store) {
	t.Helper()
	s := store.NewMemoryStore()
	cfg := common.QueueConfig{MaxConcurrentPerUser: 2}
	return New(s, arbor.NewLogger(), cfg), s
}

func TestSubmitJobThenGetStatusIsQueued(t *testing.T) {
	q, _ := newTestQueue(t)
	ctx := context.Background()

	jobID, err := q.SubmitJob(ctx, "user-1", models.JobTypeJobSearch, map[string]interface{}{"min_relevance_score": 0.5}, models.PriorityNormal, nil, 0)
	require.NoError(t, err)
	require.NotEmpty(t, jobID)

	result, err := q.GetJobStatus(ctx, jobID)
	require.NoError(t, err)
	require.Equal(t, models.JobStatusQueued, result.Status)
}

func TestSubmitJobEnforcesPerUserCap(t *testing.T) {
	q, _ := newTestQueue(t)
	ctx := context.Background()

	_, err := q.SubmitJob(ctx, "user-1", models.JobTypeJobSearch, nil, models.PriorityNormal, nil, 0)
	require.NoError(t, err)
	_, err = q.SubmitJob(ctx, "user-1", models.JobTypeJobSearch, nil, models.PriorityNormal, nil, 0)
	require.NoError(t, err)

	_, err = q.SubmitJob(ctx, "user-1", models.JobTypeJobSearch, nil, models.PriorityNormal, nil, 0)
	require.Error(t, err)
	var capErr *ErrUserCapExceeded
	require.ErrorAs(t, err, &capErr)
}

func TestSubmitJobDifferentUsersIndependentCaps(t *testing.T) {
	q, _ := newTestQueue(t)
	ctx := context.Background()

	_, err := q.SubmitJob(ctx, "user-1", models.JobTypeJobSearch, nil, models.PriorityNormal, nil, 0)
	require.NoError(t, err)
	_, err = q.SubmitJob(ctx, "user-1", models.JobTypeJobSearch, nil, models.PriorityNormal, nil, 0)
	require.NoError(t, err)

	_, err = q.SubmitJob(ctx, "user-2", models.JobTypeJobSearch, nil, models.PriorityNormal, nil, 0)
	require.NoError(t, err, "a different user must have an independent cap")
}

func TestCancelJobRemovesFromQueue(t *testing.T) {
	q, s := newTestQueue(t)
	ctx := context.Background()

	jobID, err := q.SubmitJob(ctx, "user-1", models.JobTypeJobSearch, nil, models.PriorityNormal, nil, 0)
	require.NoError(t, err)

	require.NoError(t, q.CancelJob(ctx, jobID, "user-1"))

	matches, err := s.Scan(ctx, queuePrefix)
	require.NoError(t, err)
	require.Empty(t, matches)

	result, err := q.GetJobStatus(ctx, jobID)
	require.NoError(t, err)
	require.Equal(t, models.JobStatusCancelled, result.Status)
}

func TestCancelJobRejectsNonOwner(t *testing.T) {
	q, _ := newTestQueue(t)
	ctx := context.Background()

	jobID, err := q.SubmitJob(ctx, "user-1", models.JobTypeJobSearch, nil, models.PriorityNormal, nil, 0)
	require.NoError(t, err)

	err = q.CancelJob(ctx, jobID, "user-2")
	require.Error(t, err)
	var ownerErr *ErrNotOwner
	require.ErrorAs(t, err, &ownerErr)
}

func TestCancelJobWhileRunningSetsCancelSignal(t *testing.T) {
	q, s := newTestQueue(t)
	ctx := context.Background()

	jobID, err := q.SubmitJob(ctx, "user-1", models.JobTypeJobSearch, nil, models.PriorityNormal, nil, 0)
	require.NoError(t, err)

	// Simulate the dispatcher moving the job from queue to active.
	matches, err := s.Scan(ctx, queuePrefix)
	require.NoError(t, err)
	for key := range matches {
		require.NoError(t, s.Delete(ctx, key))
	}
	require.NoError(t, s.Set(ctx, activePrefix+jobID, []byte("1"), 0))

	require.NoError(t, q.CancelJob(ctx, jobID, "user-1"))
	require.True(t, q.IsCancelled(ctx, jobID))
}

func TestGetUserJobsSortedByCreatedAtDescending(t *testing.T) {
	q, _ := newTestQueue(t)
	ctx := context.Background()

	first, err := q.SubmitJob(ctx, "user-1", models.JobTypeJobSearch, nil, models.PriorityNormal, nil, 0)
	require.NoError(t, err)
	second, err := q.SubmitJob(ctx, "user-1", models.JobTypeJobSearch, nil, models.PriorityNormal, nil, 0)
	require.NoError(t, err)

	jobs, err := q.GetUserJobs(ctx, "user-1")
	require.NoError(t, err)
	require.Len(t, jobs, 2)
	ids := map[string]bool{first: true, second: true}
	require.True(t, ids[jobs[0].JobID] && ids[jobs[1].JobID])
	require.False(t, jobs[0].CreatedAt.Before(jobs[1].CreatedAt))
}

func TestGetQueueStatsCountsByPriority(t *testing.T) {
	q, _ := newTestQueue(t)
	ctx := context.Background()

	_, err := q.SubmitJob(ctx, "user-1", models.JobTypeJobSearch, nil, models.PriorityCritical, nil, 0)
	require.NoError(t, err)
	_, err = q.SubmitJob(ctx, "user-2", models.JobTypeJobSearch, nil, models.PriorityNormal, nil, 0)
	require.NoError(t, err)

	stats, err := q.GetQueueStats(ctx)
	require.NoError(t, err)
	require.Equal(t, 2, stats.TotalQueued)
	require.Equal(t, 1, stats.ByPriority[models.PriorityCritical])
	require.Equal(t, 1, stats.ByPriority[models.PriorityNormal])
}

func TestPriorityScoreOrdersHigherPriorityFirst(t *testing.T) {
	q, s := newTestQueue(t)
	ctx := context.Background()

	low, err := q.SubmitJob(ctx, "user-1", models.JobTypeJobSearch, nil, models.PriorityLow, nil, 0)
	require.NoError(t, err)
	critical, err := q.SubmitJob(ctx, "user-2", models.JobTypeJobSearch, nil, models.PriorityCritical, nil, 0)
	require.NoError(t, err)

	matches, err := s.Scan(ctx, queuePrefix)
	require.NoError(t, err)

	keys := make([]string, 0, len(matches))
	for k := range matches {
		keys = append(keys, k)
	}
	require.Len(t, keys, 2)
	// The critical job's key must sort before the low-priority job's key.
	var criticalKey, lowKey string
	for k, v := range matches {
		if string(v) == critical {
			criticalKey = k
		}
		if string(v) == low {
			lowKey = k
		}
	}
	require.Less(t, criticalKey, lowKey)
}
