package formfill

import (
	"testing"

	"github.com/jobforge/orchestrator/internal/models"
	"github.com/stretchr/testify/require"
)

func testProfile() *models.Profile {
	return models.NewProfile(map[string]models.ProfileValue{
		"first_name":          models.NewScalar("Jane"),
		"email":               models.NewScalar("jane@example.com"),
		"require_sponsorship": models.NewScalar("No"),
		"willing_to_relocate": models.NewScalar("Yes"),
		"work_experience": models.NewRecords([]models.ProfileRecord{
			{"company": "Acme Corp"},
		}),
		"education": models.NewRecords([]models.ProfileRecord{
			{"end_date": "2099-05"},
		}),
	})
}

func TestMapFieldExactMatch(t *testing.T) {
	m := NewDeterministicMapper()
	fm := m.MapField("First Name", models.CategoryTextInput, testProfile())
	require.Equal(t, models.MethodExact, fm.Method)
	require.Equal(t, "Jane", fm.Value)
	require.Equal(t, 1.0, fm.Confidence)
}

func TestMapFieldPatternMatch(t *testing.T) {
	m := NewDeterministicMapper()
	fm := m.MapField("Your E-Mail", models.CategoryTextInput, testProfile())
	require.Equal(t, models.MethodPattern, fm.Method)
	require.Equal(t, "jane@example.com", fm.Value)
}

func TestMapFieldTermsCheckboxAutoChecksEvenWithHoneypotID(t *testing.T) {
	// MapField sees only the label and category, never the element id, so a
	// honeypot-looking id cannot stop the auto-check.
	m := NewDeterministicMapper()
	fm := m.MapField("I agree to the Terms and Conditions", models.CategoryCheckbox, testProfile())
	require.Equal(t, models.MethodTermsAutocheck, fm.Method)
	require.Equal(t, "true", fm.Value)
}

func TestMapFieldWorkedAtCompanyYes(t *testing.T) {
	m := NewDeterministicMapper()
	fm := m.MapField("Have you ever worked at Acme Corp?", models.CategoryRadio, testProfile())
	require.Equal(t, models.MethodSemantic, fm.Method)
	require.Equal(t, "Yes", fm.Value)
}

func TestMapFieldWorkedAtCompanyNo(t *testing.T) {
	m := NewDeterministicMapper()
	fm := m.MapField("Have you ever worked at Globex Inc?", models.CategoryRadio, testProfile())
	require.Equal(t, models.MethodSemantic, fm.Method)
	require.Equal(t, "No", fm.Value)
}

func TestMapFieldSponsorshipPassThrough(t *testing.T) {
	m := NewDeterministicMapper()
	fm := m.MapField("Do you require visa sponsorship?", models.CategoryRadio, testProfile())
	require.Equal(t, models.MethodPattern, fm.Method)
	require.Equal(t, "No", fm.Value)
}

func TestMapFieldCurrentlyEnrolledFutureGraduation(t *testing.T) {
	m := NewDeterministicMapper()
	fm := m.MapField("Are you currently enrolled in a degree program?", models.CategoryRadio, testProfile())
	require.Equal(t, models.MethodSemantic, fm.Method)
	require.Equal(t, "Yes", fm.Value)
}

func TestMapFieldNeedsAIForUnrecognizedLabel(t *testing.T) {
	m := NewDeterministicMapper()
	fm := m.MapField("Describe a time you overcame a challenge", models.CategoryTextarea, testProfile())
	require.Equal(t, models.MethodNeedsAI, fm.Method)
}

func TestMapDropdownValueExactTableMatch(t *testing.T) {
	m := NewDeterministicMapper()
	opt, ok := m.MapDropdownValue("work_authorization", "Yes", []string{"No", "Yes - Authorized to work in the US"})
	require.True(t, ok)
	require.Equal(t, "Yes - Authorized to work in the US", opt)
}

func TestMapDropdownValueGreenhouseDegreeNormalization(t *testing.T) {
	m := NewDeterministicMapper()
	opt, ok := m.MapDropdownValue("degree", "Bachelor", []string{"High School", "Bachelor of Science", "PhD"})
	require.True(t, ok)
	require.Equal(t, "Bachelor of Science", opt)
}

func TestMapDropdownValueNoMatchBelowThreshold(t *testing.T) {
	m := NewDeterministicMapper()
	_, ok := m.MapDropdownValue("gender", "Xyz", []string{"Completely unrelated option"})
	require.False(t, ok)
}
