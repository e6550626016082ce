package jobs

import (
	"context"
	"testing"

	"github.com/jobforge/orchestrator/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"
)

func TestProjectAnalysisHandler_RanksAndRecommendsSwaps(t *testing.T) {
	projects := &fakeProjectStore{projects: []Project{
		{ID: "p1", Name: "Static Brochure Site", Technologies: []string{"HTML"}, OnResume: true},
		{ID: "p2", Name: "Distributed Job Queue", Description: "Go priority queue with Kubernetes deploy", Technologies: []string{"Go", "Kubernetes"}},
	}}
	h := NewProjectAnalysisHandler(newTestAuditor(), projects, nil, nil, arbor.NewLogger())

	result, err := h.Execute(context.Background(), &models.JobRequest{
		JobID: "job-1", UserID: "user-1",
		Payload: map[string]interface{}{
			"job_description":       "Looking for a Go engineer",
			"job_keywords":          []interface{}{"go", "kubernetes", "queue"},
			"required_technologies": []interface{}{"go", "kubernetes"},
		},
	})
	require.NoError(t, err)
	assert.Equal(t, models.JobStatusCompleted, result.Status)
	ranked := result.Result["ranked_projects"].([]map[string]interface{})
	require.Len(t, ranked, 2)
	assert.Equal(t, "p2", ranked[0]["project_id"])

	swaps := result.Result["swap_recommendations"].([]map[string]interface{})
	require.Len(t, swaps, 1)
}

func TestProjectAnalysisHandler_RequiresJobDescription(t *testing.T) {
	h := NewProjectAnalysisHandler(newTestAuditor(), &fakeProjectStore{}, nil, nil, arbor.NewLogger())
	_, err := h.Execute(context.Background(), &models.JobRequest{JobID: "job-1", UserID: "user-1", Payload: map[string]interface{}{}})
	require.Error(t, err)
}

func TestProjectAnalysisHandler_DiscoversProjectsWhenRequested(t *testing.T) {
	projects := &fakeProjectStore{projects: []Project{{ID: "p1", Name: "A", OnResume: true}}}
	creds := &fakeCredentialStore{email: "user@example.com", password: "secret"}
	qa := &fakeQAService{answers: []QAAnswer{{Question: "Describe a project involving go.", Answer: "Built a queue."}}}
	h := NewProjectAnalysisHandler(newTestAuditor(), projects, creds, qa, arbor.NewLogger())

	result, err := h.Execute(context.Background(), &models.JobRequest{
		JobID: "job-1", UserID: "user-1",
		Payload: map[string]interface{}{
			"job_description":        "Go role",
			"job_keywords":           []interface{}{"go"},
			"discover_new_projects":  true,
		},
	})
	require.NoError(t, err)
	assert.Equal(t, 1, result.Result["discovered_project_count"])
}

func TestProjectAnalysisHandler_SkipsDiscoveryWithoutCredentials(t *testing.T) {
	projects := &fakeProjectStore{projects: []Project{{ID: "p1", Name: "A", OnResume: true}}}
	creds := &fakeCredentialStore{err: ErrMissingCredentials}
	qa := &fakeQAService{}
	h := NewProjectAnalysisHandler(newTestAuditor(), projects, creds, qa, arbor.NewLogger())

	result, err := h.Execute(context.Background(), &models.JobRequest{
		JobID: "job-1", UserID: "user-1",
		Payload: map[string]interface{}{
			"job_description":       "Go role",
			"discover_new_projects": true,
		},
	})
	require.NoError(t, err)
	assert.Equal(t, 0, result.Result["discovered_project_count"])
}
