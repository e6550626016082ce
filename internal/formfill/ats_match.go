package formfill

import "strings"

// degreeAliases normalizes long-form degree option text down to the short
// form a profile value is likely to carry, per §4.8's "degree-normalized"
// Greenhouse matching step.
var degreeAliases = []struct {
	long  string
	short string
}{
	{"master of science", "master's"},
	{"master of arts", "master's"},
	{"master of business administration", "master's"},
	{"masters degree", "master's"},
	{"master's degree", "master's"},
	{"bachelor of science", "bachelor's"},
	{"bachelor of arts", "bachelor's"},
	{"bachelors degree", "bachelor's"},
	{"bachelor's degree", "bachelor's"},
	{"doctor of philosophy", "doctorate"},
	{"ph.d.", "doctorate"},
	{"phd", "doctorate"},
	{"doctoral degree", "doctorate"},
	{"associate degree", "associate's"},
	{"associate's degree", "associate's"},
	{"associates degree", "associate's"},
	{"high school diploma", "high school"},
	{"secondary school", "high school"},
}

// normalizeDegree maps a degree-shaped string to its canonical short form,
// or returns the lower-cased input unchanged if it doesn't match a known
// long form.
func normalizeDegree(s string) string {
	lower := strings.ToLower(strings.TrimSpace(s))
	for _, alias := range degreeAliases {
		if strings.Contains(lower, alias.long) {
			return alias.short
		}
	}
	return lower
}

// scoreGreenhouseOption scores how well an option's visible text matches the
// desired value, per §4.8 step 6: exact-lower (1.0), degree-normalized
// equality (0.95), token-overlap >= 0.5 over the stop-word-trimmed set
// (0.85), substring containment scaled by length ratio, in that order of
// preference. The caller clicks the option with the max score if it's >= 0.3.
func scoreGreenhouseOption(value, optionText string) float64 {
	v := strings.ToLower(strings.TrimSpace(value))
	o := strings.ToLower(strings.TrimSpace(optionText))
	if v == "" || o == "" {
		return 0
	}
	if v == o {
		return 1.0
	}
	if normalizeDegree(v) == normalizeDegree(o) {
		return 0.95
	}

	vWords := tokenize(v)
	oWords := tokenize(o)
	if len(vWords) > 0 && len(oWords) > 0 {
		overlap := 0
		for w := range vWords {
			if oWords[w] {
				overlap++
			}
		}
		ratio := float64(overlap) / float64(len(vWords))
		if ratio >= 0.5 {
			return 0.85
		}
	}

	if strings.Contains(o, v) {
		return float64(len(v)) / float64(len(o))
	}
	if strings.Contains(v, o) {
		return float64(len(o)) / float64(len(v))
	}
	return 0
}

// bestGreenhouseOption returns the option text with the highest score
// against value and that score, or "" with the best score seen if nothing
// clears the 0.3 threshold.
func bestGreenhouseOption(value string, options []string) (string, float64) {
	var best string
	var bestScore float64
	for _, opt := range options {
		score := scoreGreenhouseOption(value, opt)
		if score > bestScore {
			bestScore = score
			best = opt
		}
	}
	if bestScore < 0.3 {
		return "", bestScore
	}
	return best, bestScore
}
