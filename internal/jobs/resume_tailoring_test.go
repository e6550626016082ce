package jobs

import (
	"context"
	"testing"

	"github.com/jobforge/orchestrator/internal/common"
	"github.com/jobforge/orchestrator/internal/models"
	"github.com/jobforge/orchestrator/internal/quota"
	"github.com/jobforge/orchestrator/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"
)

func newTestQuota(t *testing.T) *quota.Manager {
	t.Helper()
	return quota.NewManagerWithClient(store.NewMemoryStore(), arbor.NewLogger(), common.GeminiConfig{MaxPerMinute: 10, MaxPerDay: 100}, nil)
}

func TestResumeTailoringHandler_ReturnsTailoredURL(t *testing.T) {
	limits := newTestLimits(t, map[string]common.RateLimitEntry{
		resumeTailoringLimit: {Scope: "user", Max: 5, Window: "24h"},
	})
	tailoring := &fakeTailoringService{url: "https://example.com/resume-tailored.pdf"}
	creds := &fakeCredentialStore{email: "user@example.com", password: "secret"}
	h := NewResumeTailoringHandler(limits, newTestQuota(t), newTestAuditor(), tailoring, creds, arbor.NewLogger())

	result, err := h.Execute(context.Background(), &models.JobRequest{
		JobID: "job-1", UserID: "user-1",
		Payload: map[string]interface{}{
			"original_resume_url": "https://example.com/resume.pdf",
			"job_description":     "Build distributed systems",
			"job_title":           "Staff Engineer",
			"company":             "Acme",
		},
	})
	require.NoError(t, err)
	assert.Equal(t, models.JobStatusCompleted, result.Status)
	assert.Equal(t, "https://example.com/resume-tailored.pdf", result.Result["tailored_resume_url"])
}

func TestResumeTailoringHandler_ContinuesWithoutCredentials(t *testing.T) {
	limits := newTestLimits(t, map[string]common.RateLimitEntry{
		resumeTailoringLimit: {Scope: "user", Max: 5, Window: "24h"},
	})
	tailoring := &fakeTailoringService{url: "https://example.com/resume-tailored.pdf"}
	creds := &fakeCredentialStore{err: ErrMissingCredentials}
	h := NewResumeTailoringHandler(limits, newTestQuota(t), newTestAuditor(), tailoring, creds, arbor.NewLogger())

	result, err := h.Execute(context.Background(), &models.JobRequest{
		JobID: "job-1", UserID: "user-1",
		Payload: map[string]interface{}{
			"original_resume_url": "https://example.com/resume.pdf",
			"job_description":     "Build distributed systems",
		},
	})
	require.NoError(t, err)
	assert.Equal(t, models.JobStatusCompleted, result.Status)
}

func TestResumeTailoringHandler_RequiresResumeURL(t *testing.T) {
	limits := newTestLimits(t, map[string]common.RateLimitEntry{
		resumeTailoringLimit: {Scope: "user", Max: 5, Window: "24h"},
	})
	h := NewResumeTailoringHandler(limits, newTestQuota(t), newTestAuditor(), &fakeTailoringService{}, &fakeCredentialStore{}, arbor.NewLogger())

	_, err := h.Execute(context.Background(), &models.JobRequest{
		JobID: "job-1", UserID: "user-1",
		Payload: map[string]interface{}{"job_description": "x"},
	})
	require.Error(t, err)
}

func TestResumeTailoringHandler_PropagatesTailoringFailure(t *testing.T) {
	limits := newTestLimits(t, map[string]common.RateLimitEntry{
		resumeTailoringLimit: {Scope: "user", Max: 5, Window: "24h"},
	})
	tailoring := &fakeTailoringService{err: errFake}
	h := NewResumeTailoringHandler(limits, newTestQuota(t), newTestAuditor(), tailoring, &fakeCredentialStore{err: ErrMissingCredentials}, arbor.NewLogger())

	_, err := h.Execute(context.Background(), &models.JobRequest{
		JobID: "job-1", UserID: "user-1",
		Payload: map[string]interface{}{
			"original_resume_url": "https://example.com/resume.pdf",
			"job_description":     "x",
		},
	})
	require.Error(t, err)
}
