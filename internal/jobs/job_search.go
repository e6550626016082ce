package jobs

import (
	"context"
	"fmt"
	"time"

	"github.com/jobforge/orchestrator/internal/models"
	"github.com/jobforge/orchestrator/internal/ratelimit"
	"github.com/ternarybob/arbor"
)

const (
	jobSearchDailyLimit       = "job_search_per_user_per_day"
	defaultMinRelevanceScore = 30
)

// JobSearchHandler implements the job_search job type (spec §4.12),
// grounded on
// original_source/server/job_handlers.py:handle_job_search.
type JobSearchHandler struct {
	base
	board ExternalJobBoard
}

// NewJobSearchHandler builds a JobSearchHandler.
func NewJobSearchHandler(limits *ratelimit.Limiter, audit *Auditor, board ExternalJobBoard, logger arbor.ILogger) *JobSearchHandler {
	return &JobSearchHandler{
		base:  base{limits: limits, audit: audit, logger: logger},
		board: board,
	}
}

// Execute satisfies queue.Handler.
func (h *JobSearchHandler) Execute(ctx context.Context, job *models.JobRequest) (*models.JobResult, error) {
	start := time.Now()
	userID := job.UserID

	var schema jobSearchPayload
	if err := decodeAndValidate(job.Payload, &schema); err != nil {
		return nil, err
	}
	minRelevanceScore := schema.MinRelevanceScore
	if _, ok := job.Payload["min_relevance_score"]; !ok {
		minRelevanceScore = defaultMinRelevanceScore
	}

	if err := h.checkDailyLimit(ctx, jobSearchDailyLimit, userID); err != nil {
		return nil, err
	}

	records, err := h.board.Search(ctx, userID, minRelevanceScore)
	if err != nil {
		return nil, fmt.Errorf("jobs: job search failed for user %s: %w", userID, err)
	}

	h.audit.Record(ctx, AuditEvent{
		EventType: AuditDataAccess, UserID: userID, Action: "job_search",
		DurationSeconds: elapsed(start),
		RelevantPayload: map[string]interface{}{
			"min_relevance_score": minRelevanceScore,
			"jobs_found":          len(records),
		},
	})

	jobs := make([]map[string]interface{}, 0, len(records))
	var totalScore int
	for _, r := range records {
		jobs = append(jobs, map[string]interface{}{
			"source":          r.Source,
			"external_id":     r.ExternalID,
			"title":           r.Title,
			"company":         r.Company,
			"url":             r.URL,
			"relevance_score": r.RelevanceScore,
		})
		totalScore += r.RelevanceScore
	}
	averageScore := 0.0
	if len(records) > 0 {
		averageScore = float64(totalScore) / float64(len(records))
	}

	return &models.JobResult{
		JobID:  job.JobID,
		Status: models.JobStatusCompleted,
		Result: map[string]interface{}{
			"jobs":          jobs,
			"total_found":   len(records),
			"average_score": averageScore,
		},
	}, nil
}
