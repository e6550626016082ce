package ratelimit

import (
	"context"
	"testing"

	"github.com/jobforge/orchestrator/internal/common"
	"github.com/jobforge/orchestrator/internal/store"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"
)

func newTestLimiter(t *testing.T) (*Limiter, store.Store) {
	t.Helper()
	s := store.NewMemoryStore()
	cfg := common.RateLimitConfig{
		Limits: map[string]common.RateLimitEntry{
			"resume_tailoring_per_user_per_day": {Scope: "user", Max: 2, Window: "24h"},
			"concurrent_job_applications":       {Scope: "concurrent", Max: 2},
			"gemini_requests_per_minute":        {Scope: "global", Max: 5, Window: "1m"},
		},
	}
	l, err := New(s, arbor.NewLogger(), cfg)
	require.NoError(t, err)
	return l, s
}

func TestCheckLimitAllowsWithinWindow(t *testing.T) {
	l, _ := newTestLimiter(t)
	ctx := context.Background()

	res, err := l.CheckLimit(ctx, "resume_tailoring_per_user_per_day", "user-1")
	require.NoError(t, err)
	require.True(t, res.Allowed)

	res, err = l.CheckLimit(ctx, "resume_tailoring_per_user_per_day", "user-1")
	require.NoError(t, err)
	require.True(t, res.Allowed)

	res, err = l.CheckLimit(ctx, "resume_tailoring_per_user_per_day", "user-1")
	require.NoError(t, err)
	require.False(t, res.Allowed)
}

func TestCheckLimitPerScopeKeyIsIndependent(t *testing.T) {
	l, _ := newTestLimiter(t)
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		res, err := l.CheckLimit(ctx, "resume_tailoring_per_user_per_day", "user-1")
		require.NoError(t, err)
		require.True(t, res.Allowed)
	}

	res, err := l.CheckLimit(ctx, "resume_tailoring_per_user_per_day", "user-2")
	require.NoError(t, err)
	require.True(t, res.Allowed, "a different scope key must have its own counter")
}

func TestConcurrentScopeAcquireRelease(t *testing.T) {
	l, _ := newTestLimiter(t)
	ctx := context.Background()

	res1, err := l.CheckLimit(ctx, "concurrent_job_applications", "user-1")
	require.NoError(t, err)
	require.True(t, res1.Allowed)

	res2, err := l.CheckLimit(ctx, "concurrent_job_applications", "user-1")
	require.NoError(t, err)
	require.True(t, res2.Allowed)

	res3, err := l.CheckLimit(ctx, "concurrent_job_applications", "user-1")
	require.NoError(t, err)
	require.False(t, res3.Allowed, "third concurrent slot must be denied")

	require.NoError(t, l.Release(ctx, "concurrent_job_applications", "user-1"))

	res4, err := l.CheckLimit(ctx, "concurrent_job_applications", "user-1")
	require.NoError(t, err)
	require.True(t, res4.Allowed, "releasing a slot must free capacity")
}

func TestCheckLimitUnknownName(t *testing.T) {
	l, _ := newTestLimiter(t)
	_, err := l.CheckLimit(context.Background(), "does_not_exist", "user-1")
	require.Error(t, err)
}
