package jobs

import (
	"context"
	"testing"

	"github.com/jobforge/orchestrator/internal/common"
	"github.com/jobforge/orchestrator/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"
)

func TestJobSearchHandler_ReturnsNormalizedRecords(t *testing.T) {
	limits := newTestLimits(t, map[string]common.RateLimitEntry{
		jobSearchDailyLimit: {Scope: "user", Max: 5, Window: "24h"},
	})
	board := &fakeJobBoard{records: []JobRecord{
		{Source: "greenhouse", ExternalID: "1", Title: "Go Engineer", Company: "Acme", RelevanceScore: 80},
		{Source: "lever", ExternalID: "2", Title: "SRE", Company: "Acme", RelevanceScore: 60},
	}}
	h := NewJobSearchHandler(limits, newTestAuditor(), board, arbor.NewLogger())

	result, err := h.Execute(context.Background(), &models.JobRequest{
		JobID: "job-1", UserID: "user-1", Payload: map[string]interface{}{"min_relevance_score": 50},
	})
	require.NoError(t, err)
	assert.Equal(t, models.JobStatusCompleted, result.Status)
	assert.Equal(t, 2, result.Result["total_found"])
	assert.Equal(t, 70.0, result.Result["average_score"])
}

func TestJobSearchHandler_DeniedAtDailyLimit(t *testing.T) {
	limits := newTestLimits(t, map[string]common.RateLimitEntry{
		jobSearchDailyLimit: {Scope: "user", Max: 1, Window: "24h"},
	})
	board := &fakeJobBoard{records: []JobRecord{{Source: "greenhouse", ExternalID: "1"}}}
	h := NewJobSearchHandler(limits, newTestAuditor(), board, arbor.NewLogger())
	ctx := context.Background()
	req := &models.JobRequest{JobID: "job-1", UserID: "user-1", Payload: map[string]interface{}{}}

	_, err := h.Execute(ctx, req)
	require.NoError(t, err)

	_, err = h.Execute(ctx, req)
	require.Error(t, err)
	var limitErr *models.LimitDeniedError
	assert.ErrorAs(t, err, &limitErr)
}

func TestJobSearchHandler_PropagatesBoardError(t *testing.T) {
	limits := newTestLimits(t, map[string]common.RateLimitEntry{
		jobSearchDailyLimit: {Scope: "user", Max: 5, Window: "24h"},
	})
	board := &fakeJobBoard{err: errFake}
	h := NewJobSearchHandler(limits, newTestAuditor(), board, arbor.NewLogger())

	_, err := h.Execute(context.Background(), &models.JobRequest{JobID: "job-1", UserID: "user-1", Payload: map[string]interface{}{}})
	require.Error(t, err)
}
