package formfill

import (
	"context"
	"regexp"
	"strings"

	"github.com/jobforge/orchestrator/internal/models"
)

// questionIndicators mirrors looksLikeQuestion() from the original
// question_extractor.py: a chunk of text "looks like a question" if it's at
// least 5 characters and contains one of these phrasings (or ends with '?',
// itself one of the entries).
var questionIndicators = []string{
	"?", "are you", "do you", "have you", "will you", "can you",
	"please select", "please indicate", "please choose",
	"which", "what", "when", "where", "how", "why",
	"select your", "select the", "indicate your", "choose your",
}

func looksLikeQuestion(text string) bool {
	if len(text) < 5 {
		return false
	}
	lower := strings.ToLower(text)
	for _, indicator := range questionIndicators {
		if strings.Contains(lower, indicator) {
			return true
		}
	}
	return false
}

var whitespaceRe = regexp.MustCompile(`\s+`)

func cleanText(s string) string {
	return strings.TrimSpace(whitespaceRe.ReplaceAllString(s, " "))
}

// QuestionContext is the result of extracting a control's associated
// question and, for radio groups, its sibling options, per §4.7.
type QuestionContext struct {
	Question       string
	QuestionSource string
	OptionLabel    string
	AllOptions     []models.FieldOption
}

// QuestionExtractor climbs the DOM around a control to find the question it
// answers. Two implementations: ChromedpExtractor against a live page, and
// StaticExtractor, which implements a subset of the same heuristics against
// parsed HTML fixtures so they are unit-testable without a browser.
type QuestionExtractor interface {
	ExtractQuestion(ctx context.Context, field *models.FormField) (QuestionContext, error)
}
