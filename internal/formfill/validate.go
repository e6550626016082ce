package formfill

import (
	"regexp"
	"strings"

	"github.com/jobforge/orchestrator/internal/models"
)

var narrativePhrases = []string{
	"as a", "i am", "during my time", "my experience", "i have",
	"i worked", "my role", "in my position", "my background",
}

var workAuthLabelRe = regexp.MustCompile(`(?i)work authorization|authorized to work`)

var usStates = []string{
	"alabama", "alaska", "arizona", "arkansas", "california", "colorado",
	"connecticut", "delaware", "florida", "georgia", "hawaii", "idaho",
	"illinois", "indiana", "iowa", "kansas", "kentucky", "louisiana",
	"maine", "maryland", "massachusetts", "michigan", "minnesota",
	"mississippi", "missouri", "montana", "nebraska", "nevada",
	"new hampshire", "new jersey", "new mexico", "new york",
	"north carolina", "north dakota", "ohio", "oklahoma", "oregon",
	"pennsylvania", "rhode island", "south carolina", "south dakota",
	"tennessee", "texas", "utah", "vermont", "virginia", "washington",
	"west virginia", "wisconsin", "wyoming",
}

func isTextInputLike(category models.FieldCategory) bool {
	return category == models.CategoryTextInput || category == models.CategoryTextarea
}

// Clean sanitizes a candidate field value per §4.4. An empty return signals
// the caller to treat the field as needing human input.
func Clean(value, fieldLabel string, category models.FieldCategory) string {
	if value == "" {
		return ""
	}

	if isTextInputLike(category) {
		lower := strings.ToLower(value)
		for _, phrase := range narrativePhrases {
			if strings.Contains(lower, phrase) {
				return ""
			}
		}
		if len(value) > 50 {
			return ""
		}
	}

	if workAuthLabelRe.MatchString(fieldLabel) {
		lower := strings.ToLower(value)
		for _, state := range usStates {
			if strings.Contains(lower, state) {
				return ""
			}
		}
	}

	return strings.TrimSpace(value)
}
