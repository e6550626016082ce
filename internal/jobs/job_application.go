package jobs

import (
	"context"
	"fmt"
	"time"

	"github.com/jobforge/orchestrator/internal/browser"
	"github.com/jobforge/orchestrator/internal/formfill"
	"github.com/jobforge/orchestrator/internal/models"
	"github.com/jobforge/orchestrator/internal/ratelimit"
	"github.com/ternarybob/arbor"

	"github.com/chromedp/chromedp"
)

const (
	jobApplicationDailyLimit = "job_applications_per_user_per_day"
	concurrentApplicationsLimit = "concurrent_job_applications"
	maxApplicationPages         = 25
)

// JobApplicationHandler implements the job_application job type (spec
// §4.12), grounded on
// original_source/server/job_handlers.py:handle_job_application. It drives
// a fresh, per-job browser session through C11's page-fill loop until no
// next button remains.
type JobApplicationHandler struct {
	base
	browser      *browser.Pool
	orchestrator *formfill.Orchestrator
	profiles     ProfileStore
}

// NewJobApplicationHandler builds a JobApplicationHandler.
func NewJobApplicationHandler(limits *ratelimit.Limiter, audit *Auditor, pool *browser.Pool, orchestrator *formfill.Orchestrator, profiles ProfileStore, logger arbor.ILogger) *JobApplicationHandler {
	return &JobApplicationHandler{
		base:         base{limits: limits, audit: audit, logger: logger},
		browser:      pool,
		orchestrator: orchestrator,
		profiles:     profiles,
	}
}

// Execute satisfies queue.Handler.
func (h *JobApplicationHandler) Execute(ctx context.Context, job *models.JobRequest) (*models.JobResult, error) {
	start := time.Now()
	userID := job.UserID

	var schema jobApplicationPayload
	if err := decodeAndValidate(job.Payload, &schema); err != nil {
		return nil, err
	}
	jobURL := schema.JobURL
	resumeURL := schema.ResumeURL
	useTailored := payloadBool(job.Payload, "use_tailored")
	tailoredResumeURL := payloadStringOr(job.Payload, "tailored_resume_url", "")

	if err := h.checkDailyLimit(ctx, jobApplicationDailyLimit, userID); err != nil {
		return nil, err
	}

	concurrentResult, err := h.limits.CheckLimit(ctx, concurrentApplicationsLimit, userID)
	if err != nil {
		return nil, fmt.Errorf("jobs: checking concurrent application limit: %w", err)
	}
	if !concurrentResult.Allowed {
		return nil, &models.LimitDeniedError{LimitName: concurrentApplicationsLimit, RetryAfter: 0}
	}
	defer func() { _ = h.limits.Release(ctx, concurrentApplicationsLimit, userID) }()

	finalResumeURL := resumeURL
	if useTailored && tailoredResumeURL != "" {
		finalResumeURL = tailoredResumeURL
	}

	profile, err := h.profiles.ProfileForUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("jobs: loading profile for user %s: %w", userID, err)
	}

	session, err := h.browser.Open(ctx)
	if err != nil {
		return nil, fmt.Errorf("jobs: opening browser session: %w", err)
	}
	defer session.Close()

	if err := chromedp.Run(session.Ctx, chromedp.Navigate(jobURL)); err != nil {
		return nil, fmt.Errorf("jobs: navigating to %s: %w", jobURL, err)
	}

	var pages []*formfill.PageResult
	totalFilled := 0
	var needHuman []string
	for page := 0; page < maxApplicationPages; page++ {
		if isCancelled(ctx) {
			return &models.JobResult{JobID: job.JobID, Status: models.JobStatusCancelled}, nil
		}
		resumePath := ""
		if page == 0 {
			resumePath = finalResumeURL
		}
		result, err := h.orchestrator.FillPage(session.Ctx, userID, job.Priority, profile, resumePath)
		if err != nil {
			return nil, fmt.Errorf("jobs: filling page %d: %w", page, err)
		}
		pages = append(pages, result)
		totalFilled += result.FieldsFilled
		needHuman = append(needHuman, result.FieldsNeedHuman...)

		if !result.NextButtonClicked {
			break
		}
	}

	h.audit.Record(ctx, AuditEvent{
		EventType: AuditDataAccess, UserID: userID, Action: "job_application",
		DurationSeconds: elapsed(start),
		RelevantPayload: map[string]interface{}{"job_url": jobURL, "use_tailored": useTailored, "pages": len(pages)},
	})

	return &models.JobResult{
		JobID:  job.JobID,
		Status: models.JobStatusCompleted,
		Result: map[string]interface{}{
			"job_url":          jobURL,
			"pages_completed":  len(pages),
			"fields_filled":    totalFilled,
			"fields_need_human": needHuman,
		},
	}, nil
}

func isCancelled(ctx context.Context) bool {
	select {
	case <-ctx.Done():
		return true
	default:
		return false
	}
}
