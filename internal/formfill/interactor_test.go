package formfill

import (
	"testing"

	"github.com/jobforge/orchestrator/internal/models"
	"github.com/stretchr/testify/assert"
)

func TestParseBoolish(t *testing.T) {
	assert.True(t, parseBoolish("Yes"))
	assert.True(t, parseBoolish("true"))
	assert.True(t, parseBoolish("1"))
	assert.False(t, parseBoolish("No"))
	assert.False(t, parseBoolish(""))
}

func TestResumeFileName(t *testing.T) {
	name := resumeFileName("Jane", "Doe", "Resume", "/tmp/uploads/jane_resume.pdf")
	assert.Equal(t, "Jane_Doe_Resume.pdf", name)
}

func TestResumeFileName_BlankNameFallsBack(t *testing.T) {
	name := resumeFileName("", "", "CoverLetter", "/tmp/letter.docx")
	assert.Equal(t, "Applicant_Applicant_CoverLetter.docx", name)
}

func TestFindBestOption_PicksHighestScoringLabel(t *testing.T) {
	options := []models.FieldOption{
		{Label: "Male", ElementID: "radio_1"},
		{Label: "Female", ElementID: "radio_2"},
		{Label: "Non-binary", ElementID: "radio_3"},
	}
	best := findBestOption("Female", options)
	if assert.NotNil(t, best) {
		assert.Equal(t, "radio_2", best.ElementID)
	}
}

func TestFindBestOption_NoMatchReturnsNil(t *testing.T) {
	options := []models.FieldOption{{Label: "Red"}, {Label: "Blue"}}
	assert.Nil(t, findBestOption("Underwater Basket Weaving", options))
}

func TestSplitCommaList(t *testing.T) {
	assert.Equal(t, []string{"Python", "Go", "Rust"}, splitCommaList("Python, Go,Rust"))
	assert.Equal(t, []string{}, splitCommaList(""))
}

func TestIsMultiselectCategory(t *testing.T) {
	assert.True(t, isMultiselectCategory(models.CategoryGreenhouseDropdownMulti))
	assert.True(t, isMultiselectCategory(models.CategoryWorkdayMultiselect))
	assert.False(t, isMultiselectCategory(models.CategoryDropdown))
}

func TestVendorOf(t *testing.T) {
	assert.Equal(t, VendorGreenhouse, vendorOf(&models.FormField{FieldCategory: models.CategoryGreenhouseDropdown}))
	assert.Equal(t, VendorWorkday, vendorOf(&models.FormField{FieldCategory: models.CategoryWorkdayMultiselect}))
	assert.Equal(t, VendorLever, vendorOf(&models.FormField{FieldCategory: models.CategoryLeverDropdown}))
	assert.Equal(t, VendorAshby, vendorOf(&models.FormField{FieldCategory: models.CategoryAshbyButtonGroup}))
	assert.Equal(t, VendorGeneric, vendorOf(&models.FormField{FieldCategory: models.CategoryDropdown}))
}
