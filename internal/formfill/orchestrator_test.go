package formfill

import (
	"testing"

	"github.com/jobforge/orchestrator/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestChooseNextButton_PicksNext(t *testing.T) {
	chosen, ok := ChooseNextButton([]string{"Cancel", "Save and Continue"})
	assert.True(t, ok)
	assert.Equal(t, "Save and Continue", chosen)
}

func TestChooseNextButton_NeverClicksSubmit(t *testing.T) {
	_, ok := ChooseNextButton([]string{"Submit Application", "Review and Submit"})
	assert.False(t, ok)
}

func TestChooseNextButton_SubmitPreemptsAmbiguousText(t *testing.T) {
	// "Continue to Submit" contains both indicators; submit must win.
	_, ok := ChooseNextButton([]string{"Continue to Submit"})
	assert.False(t, ok)
}

func TestChooseNextButton_NoCandidatesReturnsFalse(t *testing.T) {
	_, ok := ChooseNextButton([]string{"Cancel", "Back"})
	assert.False(t, ok)
}

func TestIsCleanCandidate_DropsEmptyLabelAndID(t *testing.T) {
	assert.False(t, isCleanCandidate(&models.FormField{}))
}

func TestIsCleanCandidate_DropsListbox(t *testing.T) {
	f := &models.FormField{StableID: "div_x", Label: "X", FieldCategory: models.CategoryListbox}
	assert.False(t, isCleanCandidate(f))
}

func TestIsCleanCandidate_DropsDisabled(t *testing.T) {
	f := &models.FormField{StableID: "input_x", Label: "X", Attributes: map[string]string{"disabled": ""}}
	assert.False(t, isCleanCandidate(f))
}

func TestIsCleanCandidate_AcceptsNormalField(t *testing.T) {
	f := &models.FormField{StableID: "input_email", Label: "Email", FieldCategory: models.CategoryTextInput}
	assert.True(t, isCleanCandidate(f))
}

func TestRecordFilled_AppendsNewPair(t *testing.T) {
	result := &PageResult{}
	recordFilled(result, "Email", "a@example.com")
	require.Len(t, result.FilledFields, 1)
	assert.Equal(t, FilledField{Label: "Email", Value: "a@example.com"}, result.FilledFields[0])
}

func TestRecordFilled_OverwritesExistingLabel(t *testing.T) {
	result := &PageResult{FilledFields: []FilledField{{Label: "City", Value: "Old"}}}
	recordFilled(result, "City", "Austin")
	require.Len(t, result.FilledFields, 1)
	assert.Equal(t, "Austin", result.FilledFields[0].Value)
}

func TestRecordFilled_EmptyValueClearsPair(t *testing.T) {
	result := &PageResult{FilledFields: []FilledField{{Label: "City", Value: "Austin"}}}
	recordFilled(result, "City", "")
	assert.Empty(t, result.FilledFields)
}

func TestBuildFilledSummary_IncludesPairsAndProfile(t *testing.T) {
	profile := models.NewProfile(map[string]models.ProfileValue{
		"first_name": models.NewScalar("Asha"),
	})
	filled := []FilledField{{Label: "City", Value: "Austin"}}
	summary := buildFilledSummary(filled, profile)
	assert.Contains(t, summary, "City: Austin")
	assert.Contains(t, summary, "first_name: Asha")
}
