package quota

import (
	"context"
	"testing"

	"github.com/jobforge/orchestrator/internal/common"
	"github.com/jobforge/orchestrator/internal/models"
	"github.com/jobforge/orchestrator/internal/store"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"
)

func newTestManager(t *testing.T, cfg common.GeminiConfig) *Manager {
	t.Helper()
	s := store.NewMemoryStore()
	return NewManagerWithClient(s, arbor.NewLogger(), cfg, nil)
}

func TestReserveReleaseRoundTrip(t *testing.T) {
	cfg := common.GeminiConfig{MaxPerMinute: 3, MaxPerDay: 100}
	m := newTestManager(t, cfg)
	ctx := context.Background()

	id, err := m.ReserveQuota(ctx, "user-1", models.PriorityNormal)
	require.NoError(t, err)
	require.NotEmpty(t, id)

	ok, info, err := m.CanMakeRequest(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, info.LiveReserved)
	require.True(t, ok)

	require.NoError(t, m.ReleaseQuota(ctx, id))

	ok, info, err = m.CanMakeRequest(ctx)
	require.NoError(t, err)
	require.Equal(t, 0, info.LiveReserved)
	require.Equal(t, 1, info.MinuteUsed)
	require.True(t, ok)
}

func TestReservationLeakFreedomAfterNRoundTrips(t *testing.T) {
	cfg := common.GeminiConfig{MaxPerMinute: 1000, MaxPerDay: 10000}
	m := newTestManager(t, cfg)
	ctx := context.Background()

	const n = 10
	for i := 0; i < n; i++ {
		id, err := m.ReserveQuota(ctx, "user-1", models.PriorityNormal)
		require.NoError(t, err)
		require.NoError(t, m.ReleaseQuota(ctx, id))
	}

	_, info, err := m.CanMakeRequest(ctx)
	require.NoError(t, err)
	require.Equal(t, n, info.MinuteUsed)
	require.Equal(t, 0, info.LiveReserved)
}

func TestReserveQuotaDeniedAtCap(t *testing.T) {
	cfg := common.GeminiConfig{MaxPerMinute: 2, MaxPerDay: 100}
	m := newTestManager(t, cfg)
	ctx := context.Background()

	_, err := m.ReserveQuota(ctx, "user-1", models.PriorityLow)
	require.NoError(t, err)
	_, err = m.ReserveQuota(ctx, "user-1", models.PriorityLow)
	require.NoError(t, err)

	_, err = m.ReserveQuota(ctx, "user-1", models.PriorityLow)
	require.Error(t, err)
	var quotaErr *models.QuotaExceededError
	require.ErrorAs(t, err, &quotaErr)
}

func TestReserveQuotaHeadroomForHighPriority(t *testing.T) {
	cfg := common.GeminiConfig{MaxPerMinute: 2, MaxPerDay: 100}
	m := newTestManager(t, cfg)
	ctx := context.Background()

	_, err := m.ReserveQuota(ctx, "user-1", models.PriorityLow)
	require.NoError(t, err)
	_, err = m.ReserveQuota(ctx, "user-1", models.PriorityLow)
	require.NoError(t, err)

	// At cap: a low-priority caller is denied, but a critical-priority
	// caller may use the headroom margin.
	_, err = m.ReserveQuota(ctx, "user-1", models.PriorityLow)
	require.Error(t, err)

	_, err = m.ReserveQuota(ctx, "user-2", models.PriorityCritical)
	require.NoError(t, err)
}
