package formfill

import (
	"context"
	"strings"
	"testing"

	"github.com/PuerkitoBio/goquery"
	"github.com/jobforge/orchestrator/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClassifyCategory_Primitives(t *testing.T) {
	assert.Equal(t, models.CategoryFileUpload, ClassifyCategory("input", "file", nil))
	assert.Equal(t, models.CategoryCheckbox, ClassifyCategory("input", "checkbox", nil))
	assert.Equal(t, models.CategoryRadio, ClassifyCategory("input", "radio", nil))
	assert.Equal(t, models.CategoryTextarea, ClassifyCategory("textarea", "", nil))
	assert.Equal(t, models.CategoryTextInput, ClassifyCategory("input", "text", nil))
	assert.Equal(t, models.CategoryDropdown, ClassifyCategory("select", "", map[string]string{}))
}

func TestClassifyCategory_VendorWidgets(t *testing.T) {
	gh := ClassifyCategory("div", "", map[string]string{"role": "combobox", "aria-haspopup": "listbox"})
	assert.Equal(t, models.CategoryGreenhouseDropdown, gh)

	ghMulti := ClassifyCategory("div", "", map[string]string{"role": "combobox", "aria-haspopup": "listbox", "aria-multiselectable": "true"})
	assert.Equal(t, models.CategoryGreenhouseDropdownMulti, ghMulti)

	wd := ClassifyCategory("div", "", map[string]string{"data-automation-id": "someDropdown"})
	assert.Equal(t, models.CategoryWorkdayDropdown, wd)

	lever := ClassifyCategory("select", "", map[string]string{"class": "lever-application-field"})
	assert.Equal(t, models.CategoryLeverDropdown, lever)

	ashby := ClassifyCategory("button", "", map[string]string{"role": "button", "data-testid": "option-x"})
	assert.Equal(t, models.CategoryAshbyButtonGroup, ashby)
}

func TestStableID_PrefersID(t *testing.T) {
	assert.Equal(t, "input_email", StableID("input", "email", "other", "Email Address"))
}

func TestStableID_FallsBackToName(t *testing.T) {
	assert.Equal(t, "input_phone", StableID("input", "", "phone", "Phone Number"))
}

func TestStableID_FallsBackToLabelHash_Stable(t *testing.T) {
	first := StableID("input", "", "", "What is your favorite color?")
	second := StableID("input", "", "", "What is your favorite color?")
	assert.Equal(t, first, second)
	assert.True(t, strings.HasPrefix(first, "input_"))
}

func TestStaticDetector_DetectsLabeledFields(t *testing.T) {
	html := `
	<form>
		<label for="first_name">First Name</label>
		<input type="text" id="first_name" name="first_name" required>
		<label for="resume">Resume</label>
		<input type="file" id="resume" name="resume">
		<select id="country" name="country">
			<option>USA</option>
			<option>Canada</option>
		</select>
	</form>`
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	require.NoError(t, err)

	detector := NewStaticDetector(doc)
	fields, err := detector.DetectFields(context.Background())
	require.NoError(t, err)
	require.Len(t, fields, 3)

	var byID = map[string]*models.FormField{}
	for _, f := range fields {
		byID[f.ID] = f
	}

	assert.Equal(t, "First Name", byID["first_name"].Label)
	assert.True(t, byID["first_name"].Required)
	assert.Equal(t, models.CategoryFileUpload, byID["resume"].FieldCategory)
	assert.Equal(t, models.CategoryDropdown, byID["country"].FieldCategory)
}
