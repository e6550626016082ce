package formfill

import (
	"context"
	"testing"

	"github.com/jobforge/orchestrator/internal/models"
	"github.com/jobforge/orchestrator/internal/store"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"
)

func newTestLearnedMapper() *LearnedMapper {
	return NewLearnedMapper(store.NewMemoryStore(), arbor.NewLogger())
}

func TestLearnedMapperLookupMissReturnsFalse(t *testing.T) {
	m := newTestLearnedMapper()
	_, ok := m.Lookup(context.Background(), "user-1", "Favorite color", models.CategoryTextInput)
	require.False(t, ok)
}

func TestLearnedMapperRecordSuccessThenLookupHits(t *testing.T) {
	ctx := context.Background()
	m := newTestLearnedMapper()

	require.NoError(t, m.RecordSuccess(ctx, "user-1", "Preferred Name", models.CategoryTextInput, "preferred_name"))

	pattern, ok := m.Lookup(ctx, "user-1", "Preferred Name", models.CategoryTextInput)
	require.True(t, ok)
	require.Equal(t, "preferred_name", pattern.ProfileField)
	require.InDelta(t, 0.5+(1-0.5)*successAlpha, pattern.Confidence, 1e-9)
	require.Equal(t, 1, pattern.SuccessCount)
}

func TestLearnedMapperConfidenceClimbsTowardOneOnRepeatedSuccess(t *testing.T) {
	ctx := context.Background()
	m := newTestLearnedMapper()

	for i := 0; i < 10; i++ {
		require.NoError(t, m.RecordSuccess(ctx, "user-1", "Preferred Name", models.CategoryTextInput, "preferred_name"))
	}

	pattern, ok := m.Lookup(ctx, "user-1", "Preferred Name", models.CategoryTextInput)
	require.True(t, ok)
	require.Greater(t, pattern.Confidence, 0.95)
	require.Equal(t, 10, pattern.SuccessCount)
}

func TestLearnedMapperFailureDecaysConfidenceBelowThreshold(t *testing.T) {
	ctx := context.Background()
	m := newTestLearnedMapper()

	require.NoError(t, m.RecordSuccess(ctx, "user-1", "Preferred Name", models.CategoryTextInput, "preferred_name"))
	for i := 0; i < 3; i++ {
		require.NoError(t, m.RecordFailure(ctx, "user-1", "Preferred Name", models.CategoryTextInput, "preferred_name"))
	}

	_, ok := m.Lookup(ctx, "user-1", "Preferred Name", models.CategoryTextInput)
	require.False(t, ok, "confidence should have decayed below the 0.5 lookup threshold")
}

func TestLearnedMapperFailureOnUnknownPatternIsNoop(t *testing.T) {
	ctx := context.Background()
	m := newTestLearnedMapper()

	require.NoError(t, m.RecordFailure(ctx, "user-1", "Preferred Name", models.CategoryTextInput, "preferred_name"))

	_, ok := m.Lookup(ctx, "user-1", "Preferred Name", models.CategoryTextInput)
	require.False(t, ok)
}

func TestLearnedMapperPicksHighestConfidenceAmongMultipleCandidates(t *testing.T) {
	ctx := context.Background()
	m := newTestLearnedMapper()

	// A corrected mapping: the field was first (wrongly) mapped to
	// "nickname", then later corrected to "preferred_name". Both candidates
	// persist under the same (label, category); lookup should prefer
	// whichever has accrued the higher confidence.
	require.NoError(t, m.RecordSuccess(ctx, "user-1", "Preferred Name", models.CategoryTextInput, "nickname"))
	for i := 0; i < 5; i++ {
		require.NoError(t, m.RecordSuccess(ctx, "user-1", "Preferred Name", models.CategoryTextInput, "preferred_name"))
	}

	pattern, ok := m.Lookup(ctx, "user-1", "Preferred Name", models.CategoryTextInput)
	require.True(t, ok)
	require.Equal(t, "preferred_name", pattern.ProfileField)
}

func TestLearnedMapperScopesByUserID(t *testing.T) {
	ctx := context.Background()
	m := newTestLearnedMapper()

	require.NoError(t, m.RecordSuccess(ctx, "user-1", "Preferred Name", models.CategoryTextInput, "preferred_name"))

	_, ok := m.Lookup(ctx, "user-2", "Preferred Name", models.CategoryTextInput)
	require.False(t, ok, "patterns learned for one user must not leak to another")
}
