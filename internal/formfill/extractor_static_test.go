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

func TestStaticExtractor_TextInputLabelFor(t *testing.T) {
	html := `<label for="city">What city do you live in?</label><input type="text" id="city">`
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	require.NoError(t, err)

	extractor := NewStaticExtractor(doc)
	field := &models.FormField{StableID: "input_city", FieldCategory: models.CategoryTextInput, Handle: NewStaticElementHandle("#city")}
	qc, err := extractor.ExtractQuestion(context.Background(), field)
	require.NoError(t, err)
	assert.Equal(t, "What city do you live in?", qc.Question)
	assert.Equal(t, "label_for", qc.QuestionSource)
}

func TestStaticExtractor_RadioGroupFromFieldsetLegend(t *testing.T) {
	html := `
	<fieldset>
		<legend>Are you authorized to work in the US?</legend>
		<label for="auth_yes">Yes</label><input type="radio" id="auth_yes" name="auth" value="yes">
		<label for="auth_no">No</label><input type="radio" id="auth_no" name="auth" value="no">
	</fieldset>`
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	require.NoError(t, err)

	extractor := NewStaticExtractor(doc)
	field := &models.FormField{StableID: "input_auth_yes", FieldCategory: models.CategoryRadio, Handle: NewStaticElementHandle("#auth_yes")}
	qc, err := extractor.ExtractQuestion(context.Background(), field)
	require.NoError(t, err)
	assert.Equal(t, "Are you authorized to work in the US?", qc.Question)
	assert.Equal(t, "fieldset_legend", qc.QuestionSource)
	assert.Equal(t, "Yes", qc.OptionLabel)
	require.Len(t, qc.AllOptions, 2)
}
