package jobs

import (
	"context"
	"fmt"
	"testing"

	"github.com/jobforge/orchestrator/internal/common"
	"github.com/jobforge/orchestrator/internal/models"
	"github.com/jobforge/orchestrator/internal/ratelimit"
	"github.com/jobforge/orchestrator/internal/store"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"
)

func newTestLimits(t *testing.T, limits map[string]common.RateLimitEntry) *ratelimit.Limiter {
	t.Helper()
	l, err := ratelimit.New(store.NewMemoryStore(), arbor.NewLogger(), common.RateLimitConfig{Limits: limits})
	require.NoError(t, err)
	return l
}

func newTestAuditor() *Auditor {
	return NewAuditor(store.NewMemoryStore(), arbor.NewLogger())
}

type fakeJobBoard struct {
	records []JobRecord
	err     error
}

func (f *fakeJobBoard) Search(ctx context.Context, userID string, minRelevanceScore int) ([]JobRecord, error) {
	return f.records, f.err
}

type fakeTailoringService struct {
	url string
	err error
}

func (f *fakeTailoringService) Tailor(ctx context.Context, req TailoringRequest) (string, error) {
	return f.url, f.err
}

type fakeCredentialStore struct {
	email, password string
	err             error
}

func (f *fakeCredentialStore) MimikreeCredentials(ctx context.Context, userID string) (string, string, error) {
	return f.email, f.password, f.err
}

type fakeQAService struct {
	authErr   error
	answers   []QAAnswer
	answerErr error
}

func (f *fakeQAService) Authenticate(ctx context.Context, email, password string) error {
	return f.authErr
}

func (f *fakeQAService) AnswerBatch(ctx context.Context, questions []string) ([]QAAnswer, error) {
	return f.answers, f.answerErr
}

type fakeProjectStore struct {
	projects []Project
	err      error
}

func (f *fakeProjectStore) ProjectsForUser(ctx context.Context, userID string) ([]Project, error) {
	return f.projects, f.err
}

type fakeProfileStore struct {
	profile *models.Profile
	err     error
}

func (f *fakeProfileStore) ProfileForUser(ctx context.Context, userID string) (*models.Profile, error) {
	return f.profile, f.err
}

var errFake = fmt.Errorf("jobs: fake failure")
