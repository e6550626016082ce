package formfill

import (
	"testing"

	"github.com/jobforge/orchestrator/internal/models"
	"github.com/stretchr/testify/require"
)

func TestCleanEmptyValue(t *testing.T) {
	require.Equal(t, "", Clean("", "First Name", models.CategoryTextInput))
}

func TestCleanRejectsNarrativePhraseInTextInput(t *testing.T) {
	require.Equal(t, "", Clean("I worked as a backend engineer", "Title", models.CategoryTextInput))
	require.Equal(t, "", Clean("During my time at Acme I led a team", "Summary", models.CategoryTextInput))
}

func TestCleanRejectsOverlongSimpleField(t *testing.T) {
	long := "this is a very long answer that exceeds fifty characters for sure"
	require.Equal(t, "", Clean(long, "City", models.CategoryTextInput))
}

func TestCleanRejectsUSStateForWorkAuthorizationLabel(t *testing.T) {
	require.Equal(t, "", Clean("California", "Are you authorized to work in the US?", models.CategoryTextInput))
}

func TestCleanTrimsAndReturnsOtherwise(t *testing.T) {
	require.Equal(t, "Jane", Clean("  Jane  ", "First Name", models.CategoryTextInput))
}

func TestCleanDoesNotOverflowCheckValuesOutsideTextInput(t *testing.T) {
	long := "Yes, I am legally authorized to work in the United States without sponsorship"
	require.Equal(t, long, Clean(long, "Work authorization", models.CategoryDropdown))
}
