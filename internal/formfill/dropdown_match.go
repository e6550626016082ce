package formfill

import (
	"strings"
)

var stopWords = map[string]bool{
	"a": true, "an": true, "the": true, "of": true, "in": true, "on": true,
	"at": true, "to": true, "for": true, "with": true, "-": true, "/": true,
	"(": true, ")": true,
}

// MapDropdownValue resolves a profile value to the best matching dropdown
// option, trying the predefined mapping table first and falling back to
// fuzzy scoring, ported from map_dropdown_value/_fuzzy_match_dropdown in
// deterministic_field_mapper.py (exact/substring/Jaccard/char-overlap, 0.7
// similarity threshold).
func (m *DeterministicMapper) MapDropdownValue(fieldType string, profileValue string, availableOptions []string) (string, bool) {
	if profileValue == "" || len(availableOptions) == 0 {
		return "", false
	}

	validOptions := make([]string, 0, len(availableOptions))
	for _, o := range availableOptions {
		if strings.TrimSpace(o) != "" {
			validOptions = append(validOptions, o)
		}
	}
	if len(validOptions) == 0 {
		return "", false
	}

	if mappings, ok := m.dropdown[fieldType]; ok {
		if possibleMatches, ok := mappings[profileValue]; ok {
			for _, option := range validOptions {
				if containsString(possibleMatches, option) {
					return option, true
				}
			}
			for _, option := range validOptions {
				lowerOption := strings.ToLower(option)
				for _, match := range possibleMatches {
					lowerMatch := strings.ToLower(match)
					if strings.Contains(lowerOption, lowerMatch) || strings.Contains(lowerMatch, lowerOption) {
						return option, true
					}
				}
			}
		}
	}

	bestMatch, bestScore := fuzzyMatchDropdown(profileValue, validOptions)
	if bestMatch != "" && bestScore > 0.7 {
		return bestMatch, true
	}
	return "", false
}

func containsString(list []string, target string) bool {
	for _, s := range list {
		if s == target {
			return true
		}
	}
	return false
}

func fuzzyMatchDropdown(profileValue string, options []string) (string, float64) {
	profileStr := strings.ToLower(strings.TrimSpace(profileValue))
	var bestMatch string
	var bestScore float64

	for _, option := range options {
		optionLower := strings.ToLower(strings.TrimSpace(option))

		if profileStr == optionLower {
			return option, 1.0
		}

		if strings.Contains(optionLower, profileStr) {
			score := float64(len(profileStr)) / float64(len(optionLower))
			if score > bestScore {
				bestScore = score
				bestMatch = option
			}
			continue
		}
		if strings.Contains(profileStr, optionLower) {
			score := float64(len(optionLower)) / float64(len(profileStr))
			if score > bestScore {
				bestScore = score
				bestMatch = option
			}
			continue
		}

		profileWords := tokenize(profileStr)
		optionWords := tokenize(optionLower)
		if len(profileWords) > 0 && len(optionWords) > 0 {
			jaccard := jaccardScore(profileWords, optionWords)
			if keyWordsMatch(profileWords, optionWords) {
				jaccard *= 1.2
			}
			if jaccard > bestScore {
				bestScore = jaccard
				bestMatch = option
			}
		}

		charScore := charOverlapScore(profileStr, optionLower)
		if charScore > bestScore {
			bestScore = charScore
			bestMatch = option
		}
	}
	return bestMatch, bestScore
}

func tokenize(s string) map[string]bool {
	words := make(map[string]bool)
	for _, w := range strings.Fields(s) {
		if !stopWords[w] {
			words[w] = true
		}
	}
	return words
}

func jaccardScore(a, b map[string]bool) float64 {
	intersection := 0
	union := make(map[string]bool, len(a)+len(b))
	for w := range a {
		union[w] = true
		if b[w] {
			intersection++
		}
	}
	for w := range b {
		union[w] = true
	}
	if len(union) == 0 {
		return 0
	}
	return float64(intersection) / float64(len(union))
}

func keyWordsMatch(profileWords, optionWords map[string]bool) bool {
	for w := range profileWords {
		if len(w) > 3 && optionWords[w] {
			return true
		}
	}
	return false
}

func charOverlapScore(a, b string) float64 {
	set := make(map[rune]bool, len(b))
	for _, c := range b {
		set[c] = true
	}
	matching := 0
	for _, c := range a {
		if set[c] {
			matching++
		}
	}
	maxLen := len(a)
	if len(b) > maxLen {
		maxLen = len(b)
	}
	if maxLen == 0 {
		return 0
	}
	return float64(matching) / float64(maxLen)
}
