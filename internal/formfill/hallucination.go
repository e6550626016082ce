package formfill

import (
	"regexp"
	"strings"
)

// hallucinationMarkers are the obvious placeholder/unfilled-template
// fragments original_source/Agents/validation/hallucination_detector.py
// flags: text an LLM left templated rather than actually generated.
var hallucinationMarkers = []string{
	"[insert", "todo", "lorem ipsum", "<company>", "<name>", "[company name]",
	"[your name]", "[insert company]", "xxx", "placeholder text",
}

var unresolvedTemplateRe = regexp.MustCompile(`\{\{.*?\}\}`)

// DetectHallucination flags an AI-sourced field value that still contains a
// placeholder marker or an unresolved `{{...}}` template token, run by the
// orchestrator on each AI-sourced value before it is written to the field;
// a flagged value is discarded and the field marked as needing a human.
func DetectHallucination(value string) (bool, string) {
	lower := strings.ToLower(value)
	for _, marker := range hallucinationMarkers {
		if strings.Contains(lower, marker) {
			return true, "contains placeholder marker: " + marker
		}
	}
	if unresolvedTemplateRe.MatchString(value) {
		return true, "contains unresolved template braces"
	}
	return false, ""
}
