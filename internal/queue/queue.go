// Package queue implements C13: the priority queue, active/cancellation
// sets, and job/result persistence the worker pool draws from, all modeled
// as key ranges over the shared store.Store abstraction — the same
// INCR+EXPIRE-style backend C1/C2 use, standing in for the spec's sorted
// set.
package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/jobforge/orchestrator/internal/common"
	"github.com/jobforge/orchestrator/internal/models"
	"github.com/jobforge/orchestrator/internal/store"
	"github.com/ternarybob/arbor"
)

const (
	jobTTL           = 24 * time.Hour
	cancelSignalTTL  = 5 * time.Minute
	dataPrefix       = "job:data:"
	resultPrefix     = "job:result:"
	userIndexPrefix  = "job:user:"
	queuePrefix      = "job:queue:"
	activePrefix     = "job:active:"
	cancelPrefix     = "job:cancel:"
)

// ErrUserCapExceeded is returned by SubmitJob when the caller already has
// max_concurrent_per_user jobs queued or running.
type ErrUserCapExceeded struct {
	UserID string
	Max    int
}

func (e *ErrUserCapExceeded) Error() string {
	return fmt.Sprintf("queue: user %q already has %d concurrent jobs", e.UserID, e.Max)
}

// ErrNotOwner is returned by CancelJob when the caller doesn't own the job.
type ErrNotOwner struct {
	JobID string
}

func (e *ErrNotOwner) Error() string {
	return fmt.Sprintf("queue: job %q is not owned by the requesting user", e.JobID)
}

// Queue implements §4.13's submit/status/cancel/stats operations over a
// shared store.Store.
type Queue struct {
	store               store.Store
	logger              arbor.ILogger
	maxConcurrentPerUser int
}

// New builds a Queue.
func New(s store.Store, logger arbor.ILogger, cfg common.QueueConfig) *Queue {
	max := cfg.MaxConcurrentPerUser
	if max <= 0 {
		max = 2
	}
	return &Queue{store: s, logger: logger, maxConcurrentPerUser: max}
}

func queueKey(score int64, jobID string) string {
	return fmt.Sprintf("%s%012d:%s", queuePrefix, score, jobID)
}

func userIndexKey(userID, jobID string) string {
	return userIndexPrefix + userID + ":" + jobID
}

// countUserJobs counts how many of a user's jobs are currently queued or
// active, the soft semaphore §5 describes as "counting (queued ∪ active) ∩
// user_jobs".
func (q *Queue) countUserJobs(ctx context.Context, userID string) (int, error) {
	indexed, err := q.store.Scan(ctx, userIndexPrefix+userID+":")
	if err != nil {
		return 0, err
	}
	count := 0
	for key := range indexed {
		jobID := strings.TrimPrefix(key, userIndexPrefix+userID+":")
		if _, terminal, err := q.statusOf(ctx, jobID); err == nil && !terminal {
			count++
		}
	}
	return count, nil
}

// statusOf returns a job's current status and whether that status is
// terminal, consulting active set, queue, then the results hash in that
// precedence order per §4.13.
func (q *Queue) statusOf(ctx context.Context, jobID string) (models.JobStatus, bool, error) {
	if _, err := q.store.Get(ctx, activePrefix+jobID); err == nil {
		return models.JobStatusRunning, false, nil
	}
	matches, err := q.store.Scan(ctx, queuePrefix)
	if err != nil {
		return "", false, err
	}
	for key := range matches {
		if strings.HasSuffix(key, ":"+jobID) {
			return models.JobStatusQueued, false, nil
		}
	}
	raw, err := q.store.Get(ctx, resultPrefix+jobID)
	if err != nil {
		return "", false, store.ErrNotFound
	}
	var result models.JobResult
	if err := json.Unmarshal(raw, &result); err != nil {
		return "", false, err
	}
	return result.Status, true, nil
}

// SubmitJob persists a JobRequest, pushes it into the priority queue, and
// indexes it under the user, enforcing the per-user concurrency cap.
func (q *Queue) SubmitJob(ctx context.Context, userID string, jobType models.JobType, payload map[string]interface{}, priority models.JobPriority, scheduledAt *time.Time, timeoutSecs int) (string, error) {
	count, err := q.countUserJobs(ctx, userID)
	if err != nil {
		return "", fmt.Errorf("queue: counting user jobs: %w", err)
	}
	if count >= q.maxConcurrentPerUser {
		return "", &ErrUserCapExceeded{UserID: userID, Max: q.maxConcurrentPerUser}
	}

	job := &models.JobRequest{
		JobID:       common.NewPrefixedID("job"),
		UserID:      userID,
		JobType:     jobType,
		Priority:    priority,
		Payload:     payload,
		CreatedAt:   time.Now().UTC(),
		ScheduledAt: scheduledAt,
		TimeoutSecs: timeoutSecs,
		MaxRetries:  2,
	}

	raw, err := json.Marshal(job)
	if err != nil {
		return "", fmt.Errorf("queue: marshaling job request: %w", err)
	}
	if err := q.store.Set(ctx, dataPrefix+job.JobID, raw, jobTTL); err != nil {
		return "", fmt.Errorf("queue: persisting job request: %w", err)
	}
	if err := q.store.Set(ctx, queueKey(job.PriorityScore(), job.JobID), []byte(job.JobID), 0); err != nil {
		return "", fmt.Errorf("queue: enqueuing job: %w", err)
	}
	if err := q.store.Set(ctx, userIndexKey(userID, job.JobID), []byte("1"), jobTTL); err != nil {
		return "", fmt.Errorf("queue: indexing job under user: %w", err)
	}
	return job.JobID, nil
}

// GetJobStatus returns the terminal JobResult if one exists, or a synthetic
// in-flight result reflecting RUNNING/QUEUED precedence, or store.ErrNotFound
// if the job is unknown.
func (q *Queue) GetJobStatus(ctx context.Context, jobID string) (*models.JobResult, error) {
	status, terminal, err := q.statusOf(ctx, jobID)
	if err != nil {
		return nil, err
	}
	if terminal {
		raw, err := q.store.Get(ctx, resultPrefix+jobID)
		if err != nil {
			return nil, err
		}
		var result models.JobResult
		if err := json.Unmarshal(raw, &result); err != nil {
			return nil, err
		}
		return &result, nil
	}
	return &models.JobResult{JobID: jobID, Status: status}, nil
}

// CancelJob verifies ownership, removes a queued job outright, or flags a
// running one for cooperative cancellation, then writes a CANCELLED result.
func (q *Queue) CancelJob(ctx context.Context, jobID, userID string) error {
	if _, err := q.store.Get(ctx, userIndexKey(userID, jobID)); err != nil {
		return &ErrNotOwner{JobID: jobID}
	}

	status, terminal, err := q.statusOf(ctx, jobID)
	if err != nil {
		return err
	}
	if terminal {
		return fmt.Errorf("queue: job %q already finished", jobID)
	}

	if status == models.JobStatusQueued {
		matches, err := q.store.Scan(ctx, queuePrefix)
		if err != nil {
			return err
		}
		for key := range matches {
			if strings.HasSuffix(key, ":"+jobID) {
				_ = q.store.Delete(ctx, key)
			}
		}
	} else {
		if err := q.store.Set(ctx, cancelPrefix+jobID, []byte("1"), cancelSignalTTL); err != nil {
			return fmt.Errorf("queue: setting cancel signal: %w", err)
		}
	}

	result := &models.JobResult{JobID: jobID, Status: models.JobStatusCancelled}
	raw, err := json.Marshal(result)
	if err != nil {
		return err
	}
	return q.store.Set(ctx, resultPrefix+jobID, raw, jobTTL)
}

// IsCancelled reports whether a worker should abandon jobID.
func (q *Queue) IsCancelled(ctx context.Context, jobID string) bool {
	_, err := q.store.Get(ctx, cancelPrefix+jobID)
	return err == nil
}

// QueueStats is the result of GetQueueStats.
type QueueStats struct {
	TotalQueued   int
	TotalActive   int
	ByPriority    map[models.JobPriority]int
}

// GetQueueStats summarizes the current queue and active set.
func (q *Queue) GetQueueStats(ctx context.Context) (QueueStats, error) {
	stats := QueueStats{ByPriority: make(map[models.JobPriority]int)}

	queued, err := q.store.Scan(ctx, queuePrefix)
	if err != nil {
		return stats, err
	}
	stats.TotalQueued = len(queued)
	for _, raw := range queued {
		jobID := string(raw)
		data, err := q.store.Get(ctx, dataPrefix+jobID)
		if err != nil {
			continue
		}
		var job models.JobRequest
		if json.Unmarshal(data, &job) == nil {
			stats.ByPriority[job.Priority]++
		}
	}

	active, err := q.store.Scan(ctx, activePrefix)
	if err != nil {
		return stats, err
	}
	stats.TotalActive = len(active)
	return stats, nil
}

// GetUserJobs lists a user's JobRequests sorted by created_at descending.
func (q *Queue) GetUserJobs(ctx context.Context, userID string) ([]*models.JobRequest, error) {
	indexed, err := q.store.Scan(ctx, userIndexPrefix+userID+":")
	if err != nil {
		return nil, err
	}
	jobs := make([]*models.JobRequest, 0, len(indexed))
	for key := range indexed {
		jobID := strings.TrimPrefix(key, userIndexPrefix+userID+":")
		raw, err := q.store.Get(ctx, dataPrefix+jobID)
		if err != nil {
			continue
		}
		var job models.JobRequest
		if err := json.Unmarshal(raw, &job); err != nil {
			continue
		}
		jobs = append(jobs, &job)
	}
	sort.Slice(jobs, func(i, j int) bool { return jobs[i].CreatedAt.After(jobs[j].CreatedAt) })
	return jobs, nil
}
