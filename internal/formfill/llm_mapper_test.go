package formfill

import (
	"testing"

	"github.com/jobforge/orchestrator/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseBatchResponse_ParsesValidLines(t *testing.T) {
	raw := "input_42|SIMPLE|5 years\n" +
		"select_degree|DROPDOWN|Master's\n" +
		"textarea_why|MANUAL|\n" +
		"div_mystery|NEEDS_HUMAN_INPUT|\n"
	results := ParseBatchResponse(raw)
	require.Len(t, results, 4)
	assert.Equal(t, "input_42", results[0].StableID)
	assert.Equal(t, ClassSimple, results[0].Classification)
	assert.Equal(t, "5 years", results[0].Value)
	assert.Equal(t, ClassNeedsHumanInput, results[3].Classification)
}

func TestParseBatchResponse_SkipsMalformedLines(t *testing.T) {
	raw := "not a valid line\ninput_1|BOGUS_CLASS|value\ninput_2|SIMPLE|ok\n"
	results := ParseBatchResponse(raw)
	require.Len(t, results, 1)
	assert.Equal(t, "input_2", results[0].StableID)
}

func TestTruncateToLimit(t *testing.T) {
	assert.Equal(t, "hello", truncateToLimit("hello", 10))
	assert.Equal(t, "hel", truncateToLimit("hello", 3))
}

func TestManualCharCap(t *testing.T) {
	assert.Equal(t, manualTextareaCharCap, manualCharCap(models.CategoryTextarea))
	assert.Equal(t, manualTextInputCap, manualCharCap(models.CategoryTextInput))
}

func TestParseReviewResult_StripsCodeFence(t *testing.T) {
	raw := "```json\n{\"approved\": true, \"issues\": [], \"confidence\": 0.95}\n```"
	result, err := ParseReviewResult(raw)
	require.NoError(t, err)
	assert.True(t, result.Approved)
	assert.Equal(t, 0.95, result.Confidence)
}

func TestParseCorrections_ParsesArray(t *testing.T) {
	raw := `[{"field_name": "city", "current_value": "", "corrected_value": "Austin", "reason": "missing"}]`
	corrections, err := ParseCorrections(raw)
	require.NoError(t, err)
	require.Len(t, corrections, 1)
	assert.Equal(t, "Austin", corrections[0].CorrectedValue)
}

func TestBuildBatchPrompt_RendersProfileIntoUserPrompt(t *testing.T) {
	profile := models.NewProfile(map[string]models.ProfileValue{
		"first_name":          models.NewScalar("Asha"),
		"nationality":         models.NewScalar("Indian"),
		"require_sponsorship": models.NewScalar("Yes"),
		"visa_status":         models.NewScalar("H-1B"),
	})
	fields := []*models.FormField{{StableID: "input_name", Label: "Full Name", FieldCategory: models.CategoryTextInput}}

	_, userPrompt := BuildBatchPrompt(fields, profile)

	assert.Contains(t, userPrompt, "Asha")
	assert.Contains(t, userPrompt, "require_sponsorship: Yes")
	assert.Contains(t, userPrompt, "visa_status: H-1B")
	assert.Contains(t, userPrompt, "input_name")
}

func TestRenderProfileContext_InfersRaceEthnicityFromNationalityWhenAbsent(t *testing.T) {
	profile := models.NewProfile(map[string]models.ProfileValue{
		"nationality": models.NewScalar("Nigerian"),
	})
	block := renderProfileContext(profile)
	assert.Contains(t, block, "race_ethnicity: not given; infer from nationality (Nigerian)")
}

func TestRenderProfileContext_UsesGivenRaceEthnicityWithoutInferring(t *testing.T) {
	profile := models.NewProfile(map[string]models.ProfileValue{
		"nationality":    models.NewScalar("Nigerian"),
		"race_ethnicity": models.NewScalar("Black or African American"),
	})
	block := renderProfileContext(profile)
	assert.Contains(t, block, "race_ethnicity: Black or African American")
	assert.NotContains(t, block, "infer from nationality")
}

func TestRenderProfileContext_NilProfile(t *testing.T) {
	assert.Equal(t, "Candidate profile: (none provided)", renderProfileContext(nil))
}
