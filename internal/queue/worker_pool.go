package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/jobforge/orchestrator/internal/common"
	"github.com/jobforge/orchestrator/internal/events"
	"github.com/jobforge/orchestrator/internal/models"
	"github.com/jobforge/orchestrator/internal/store"
	"github.com/ternarybob/arbor"
)

// Handler executes one job to completion. Implementations live in
// internal/jobs; queue only depends on the interface, so there is no import
// cycle between the two packages.
type Handler interface {
	Execute(ctx context.Context, job *models.JobRequest) (*models.JobResult, error)
}

// WorkerPool implements §4.13's dispatcher loop: a bounded pool of goroutines
// that pop the lowest-scored ready job, run it through its registered
// Handler, and persist a JobResult, honoring cooperative cancellation and
// per-job-type timeouts.
type WorkerPool struct {
	queue       *Queue
	store       store.Store
	logger      arbor.ILogger
	handlers    map[models.JobType]Handler
	maxWorkers  int
	pollInterval time.Duration
	timeouts    map[models.JobType]time.Duration
	defaultTimeout time.Duration
	events      *events.Hub

	activeCount int64
	wg          sync.WaitGroup
	stop        chan struct{}
}

// SetEventHub attaches a Hub that receives a JobStatusEvent after every job
// run. Optional; a nil hub (the default) means no one is publishing.
func (wp *WorkerPool) SetEventHub(hub *events.Hub) {
	wp.events = hub
}

// NewWorkerPool builds a WorkerPool over the given queue and handler registry.
func NewWorkerPool(q *Queue, s store.Store, logger arbor.ILogger, handlers map[models.JobType]Handler, cfg common.QueueConfig) *WorkerPool {
	workers := cfg.WorkerCount
	if workers <= 0 {
		workers = 5
	}
	poll := parseDurationOr(cfg.PollInterval, time.Second)
	timeouts := map[models.JobType]time.Duration{
		models.JobTypeResumeTailoring: parseDurationOr(cfg.ResumeTailoringTimeout, 10*time.Minute),
		models.JobTypeJobApplication:  parseDurationOr(cfg.JobApplicationTimeout, 30*time.Minute),
		models.JobTypeJobSearch:       parseDurationOr(cfg.JobSearchTimeout, 5*time.Minute),
	}
	return &WorkerPool{
		queue:          q,
		store:          s,
		logger:         logger,
		handlers:       handlers,
		maxWorkers:     workers,
		pollInterval:   poll,
		timeouts:       timeouts,
		defaultTimeout: parseDurationOr(cfg.DefaultTimeout, 10*time.Minute),
		stop:           make(chan struct{}),
	}
}

func parseDurationOr(s string, fallback time.Duration) time.Duration {
	if s == "" {
		return fallback
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return fallback
	}
	return d
}

// Start launches the dispatcher loop in its own goroutine and returns
// immediately. Stop blocks until all in-flight jobs finish.
func (wp *WorkerPool) Start(ctx context.Context) {
	wp.wg.Add(1)
	go wp.dispatchLoop(ctx)
}

// Stop signals the dispatcher to exit and waits for in-flight jobs to drain.
func (wp *WorkerPool) Stop() {
	close(wp.stop)
	wp.wg.Wait()
}

func (wp *WorkerPool) dispatchLoop(ctx context.Context) {
	defer wp.wg.Done()
	ticker := time.NewTicker(wp.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-wp.stop:
			return
		case <-ticker.C:
		}

		if atomic.LoadInt64(&wp.activeCount) >= int64(wp.maxWorkers) {
			continue
		}

		job, ready, err := wp.popNext(ctx)
		if err != nil {
			wp.logger.Error().Err(err).Msg("queue: popping next job")
			continue
		}
		if job == nil {
			continue
		}
		if !ready {
			// scheduled_at is in the future; popNext left it in the queue.
			continue
		}

		atomic.AddInt64(&wp.activeCount, 1)
		wp.wg.Add(1)
		go wp.runJob(ctx, job)
	}
}

// popNext scans the queue for the lowest-scored job id. If its ScheduledAt is
// in the future it is left in the queue unchanged and (job, false) signals the
// dispatcher to retry later; otherwise it moves from queue to active and is
// returned ready to run.
func (wp *WorkerPool) popNext(ctx context.Context) (*models.JobRequest, bool, error) {
	matches, err := wp.store.Scan(ctx, queuePrefix)
	if err != nil {
		return nil, false, err
	}
	if len(matches) == 0 {
		return nil, false, nil
	}

	keys := make([]string, 0, len(matches))
	for k := range matches {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	topKey := keys[0]
	jobID := string(matches[topKey])

	raw, err := wp.store.Get(ctx, dataPrefix+jobID)
	if err != nil {
		// Orphaned queue entry (data expired); drop it and let the
		// dispatcher try again on the next tick.
		_ = wp.store.Delete(ctx, topKey)
		return nil, false, nil
	}
	var job models.JobRequest
	if err := json.Unmarshal(raw, &job); err != nil {
		_ = wp.store.Delete(ctx, topKey)
		return nil, false, fmt.Errorf("queue: decoding job %q: %w", jobID, err)
	}

	if job.ScheduledAt != nil && job.ScheduledAt.After(time.Now().UTC()) {
		return &job, false, nil
	}

	if err := wp.store.Delete(ctx, topKey); err != nil {
		return nil, false, err
	}
	if err := wp.store.Set(ctx, activePrefix+jobID, []byte("1"), 0); err != nil {
		return nil, false, err
	}
	return &job, true, nil
}

func (wp *WorkerPool) runJob(ctx context.Context, job *models.JobRequest) {
	defer wp.wg.Done()
	defer atomic.AddInt64(&wp.activeCount, -1)
	defer func() { _ = wp.store.Delete(ctx, activePrefix+job.JobID) }()
	defer func() { _ = wp.store.Delete(ctx, cancelPrefix+job.JobID) }()

	result := wp.execute(ctx, job)
	wp.publishStatus(job, result)

	raw, err := json.Marshal(result)
	if err != nil {
		wp.logger.Error().Err(err).Str("job_id", job.JobID).Msg("queue: marshaling job result")
		return
	}
	if err := wp.store.Set(ctx, resultPrefix+job.JobID, raw, jobTTL); err != nil {
		wp.logger.Error().Err(err).Str("job_id", job.JobID).Msg("queue: persisting job result")
	}
}

func (wp *WorkerPool) execute(ctx context.Context, job *models.JobRequest) *models.JobResult {
	started := time.Now().UTC()

	if wp.queue.IsCancelled(ctx, job.JobID) {
		return &models.JobResult{JobID: job.JobID, Status: models.JobStatusCancelled, StartedAt: &started, CompletedAt: timePtr(time.Now().UTC())}
	}

	handler, ok := wp.handlers[job.JobType]
	if !ok {
		completed := time.Now().UTC()
		return &models.JobResult{
			JobID: job.JobID, Status: models.JobStatusFailed,
			Error:     fmt.Sprintf("queue: no handler registered for job type %q", job.JobType),
			StartedAt: &started, CompletedAt: &completed,
		}
	}

	timeout := wp.timeoutFor(job)
	jobCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	cancelWatch, stopWatch := wp.watchCancellation(jobCtx, job.JobID, cancel)
	defer stopWatch()

	result, err := wp.safeExecute(jobCtx, handler, job)
	completed := time.Now().UTC()

	if *cancelWatch {
		return &models.JobResult{JobID: job.JobID, Status: models.JobStatusCancelled, StartedAt: &started, CompletedAt: &completed, ExecutionTime: completed.Sub(started)}
	}
	if err != nil {
		status := models.JobStatusFailed
		if jobCtx.Err() == context.DeadlineExceeded {
			status = models.JobStatusTimeout
		}
		return &models.JobResult{JobID: job.JobID, Status: status, Error: err.Error(), StartedAt: &started, CompletedAt: &completed, ExecutionTime: completed.Sub(started)}
	}
	if result == nil {
		result = &models.JobResult{JobID: job.JobID, Status: models.JobStatusCompleted}
	}
	result.StartedAt = &started
	result.CompletedAt = &completed
	result.ExecutionTime = completed.Sub(started)
	return result
}

// safeExecute recovers a panicking Handler into an error, the equivalent of
// the spec's "on unhandled exception, build a FAILED result" clause.
func (wp *WorkerPool) safeExecute(ctx context.Context, handler Handler, job *models.JobRequest) (result *models.JobResult, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("queue: handler panic: %v", r)
		}
	}()
	return handler.Execute(ctx, job)
}

// watchCancellation polls the cancel signal every pollInterval and cancels
// jobCtx the first time it appears, so Handler implementations that check
// ctx.Err() between page iterations observe it promptly.
func (wp *WorkerPool) watchCancellation(jobCtx context.Context, jobID string, cancel context.CancelFunc) (*bool, func()) {
	cancelled := new(bool)
	done := make(chan struct{})
	go func() {
		ticker := time.NewTicker(wp.pollInterval)
		defer ticker.Stop()
		for {
			select {
			case <-done:
				return
			case <-jobCtx.Done():
				return
			case <-ticker.C:
				if wp.queue.IsCancelled(jobCtx, jobID) {
					*cancelled = true
					cancel()
					return
				}
			}
		}
	}()
	return cancelled, func() { close(done) }
}

func (wp *WorkerPool) timeoutFor(job *models.JobRequest) time.Duration {
	if job.TimeoutSecs > 0 {
		return time.Duration(job.TimeoutSecs) * time.Second
	}
	if d, ok := wp.timeouts[job.JobType]; ok {
		return d
	}
	return wp.defaultTimeout
}

// publishStatus pushes a JobStatusEvent through the optional event hub so a
// front-end can track progress without polling GetJobStatus.
func (wp *WorkerPool) publishStatus(job *models.JobRequest, result *models.JobResult) {
	if wp.events == nil {
		return
	}
	wp.events.Publish(events.JobStatusEvent{
		JobID:  job.JobID,
		UserID: job.UserID,
		Status: string(result.Status),
		Error:  result.Error,
	})
}

func timePtr(t time.Time) *time.Time { return &t }
