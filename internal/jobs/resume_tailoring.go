package jobs

import (
	"context"
	"fmt"
	"time"

	"github.com/jobforge/orchestrator/internal/models"
	"github.com/jobforge/orchestrator/internal/quota"
	"github.com/jobforge/orchestrator/internal/ratelimit"
	"github.com/ternarybob/arbor"
)

const resumeTailoringLimit = "resume_tailoring_per_user_per_day"

// ResumeTailoringHandler implements the resume_tailoring job type (spec
// §4.12, §6), grounded on
// original_source/server/job_handlers.py:handle_resume_tailoring.
type ResumeTailoringHandler struct {
	base
	tailoring   ExternalTailoringService
	credentials CredentialStore
}

// NewResumeTailoringHandler builds a ResumeTailoringHandler.
func NewResumeTailoringHandler(limits *ratelimit.Limiter, q *quota.Manager, audit *Auditor, tailoring ExternalTailoringService, credentials CredentialStore, logger arbor.ILogger) *ResumeTailoringHandler {
	return &ResumeTailoringHandler{
		base:        base{limits: limits, quota: q, audit: audit, logger: logger},
		tailoring:   tailoring,
		credentials: credentials,
	}
}

// Execute satisfies queue.Handler.
func (h *ResumeTailoringHandler) Execute(ctx context.Context, job *models.JobRequest) (*models.JobResult, error) {
	start := time.Now()
	userID := job.UserID

	var schema resumeTailoringPayload
	if err := decodeAndValidate(job.Payload, &schema); err != nil {
		return h.fail(ctx, userID, start, err)
	}
	originalResumeURL := schema.OriginalResumeURL
	jobDescription := schema.JobDescription
	jobTitle := payloadStringOr(job.Payload, "job_title", "Unknown Position")
	company := payloadStringOr(job.Payload, "company", "Unknown Company")
	userFullName := payloadStringOr(job.Payload, "user_full_name", "User")

	if err := h.checkDailyLimit(ctx, resumeTailoringLimit, userID); err != nil {
		return h.fail(ctx, userID, start, err)
	}

	reservationID, err := h.reserveGemini(ctx, userID, job.Priority)
	if err != nil {
		return h.fail(ctx, userID, start, err)
	}
	defer h.release(ctx, reservationID)

	var mimikreeEmail, mimikreePassword string
	if h.credentials != nil {
		email, pass, err := h.credentials.MimikreeCredentials(ctx, userID)
		if err == nil {
			mimikreeEmail, mimikreePassword = email, pass
		} else {
			h.logger.Warn().Str("user_id", userID).Msg("jobs: no linked Q&A credentials, tailoring with limited features")
		}
	}

	tailoredURL, err := h.tailoring.Tailor(ctx, TailoringRequest{
		OriginalResumeURL: originalResumeURL,
		JobDescription:    jobDescription,
		JobTitle:          jobTitle,
		Company:           company,
		Credentials:       credentialsFromPayload(job.Payload),
		UserFullName:      userFullName,
		MimikreeEmail:     mimikreeEmail,
		MimikreePassword:  mimikreePassword,
	})
	if err != nil {
		h.audit.Record(ctx, AuditEvent{
			EventType: AuditAPIAbuse, UserID: userID, Action: "resume_tailoring_failed",
			DurationSeconds: elapsed(start), RelevantPayload: map[string]interface{}{"error": err.Error()},
		})
		return h.fail(ctx, userID, start, err)
	}

	h.audit.Record(ctx, AuditEvent{
		EventType: AuditDataAccess, UserID: userID, Action: "resume_tailoring",
		DurationSeconds: elapsed(start),
		RelevantPayload: map[string]interface{}{"job_title": jobTitle, "company": company},
	})

	return &models.JobResult{
		JobID:  job.JobID,
		Status: models.JobStatusCompleted,
		Result: map[string]interface{}{
			"tailored_resume_url": tailoredURL,
			"job_title":           jobTitle,
			"company":             company,
		},
	}, nil
}

func (h *ResumeTailoringHandler) fail(ctx context.Context, userID string, start time.Time, err error) (*models.JobResult, error) {
	return nil, fmt.Errorf("resume tailoring failed for user %s: %w", userID, err)
}

// credentialsFromPayload reconstructs the OAuth credential struct from the
// payload's "credentials" map, per spec §6/§4.12 ("Reconstruct OAuth
// credentials from the dict").
func credentialsFromPayload(payload map[string]interface{}) *TailoringCredentials {
	raw, ok := payload["credentials"].(map[string]interface{})
	if !ok {
		return nil
	}
	get := func(key string) string {
		if s, ok := raw[key].(string); ok {
			return s
		}
		return ""
	}
	return &TailoringCredentials{
		Token:        get("token"),
		RefreshToken: get("refresh_token"),
		TokenURI:     get("token_uri"),
		ClientID:     get("client_id"),
		ClientSecret: get("client_secret"),
		Scopes:       payloadStringSlice(raw, "scopes"),
	}
}
