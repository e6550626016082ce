package formfill

import (
	"context"
	"encoding/json"
	"time"

	"github.com/jobforge/orchestrator/internal/models"
	"github.com/jobforge/orchestrator/internal/store"
	"github.com/ternarybob/arbor"
)

const (
	learnedPatternPrefix = "formfill:learned:"
	lookupThreshold       = 0.5
	successAlpha          = 0.3
	failureAlpha          = 0.5
)

// LearnedMapper persists and looks up (label, category) -> profile-field
// mappings with a confidence score that decays toward 1 on success and
// toward 0 on failure, per §4.6. A given (label, category) may accumulate
// more than one candidate profile_field over time (the same question phrased
// once mapped to the wrong field and later corrected); Lookup returns
// whichever candidate currently has the highest confidence. Backed by the
// same Store abstraction as C1 rate limiting and C2 quota reservations,
// standing in for the spec's Redis-equivalent persistence.
type LearnedMapper struct {
	store  store.Store
	logger arbor.ILogger
}

// NewLearnedMapper builds a LearnedMapper over the given store.
func NewLearnedMapper(s store.Store, logger arbor.ILogger) *LearnedMapper {
	return &LearnedMapper{store: s, logger: logger}
}

func recordKey(p models.LearnedPattern) string {
	return learnedPatternPrefix + p.Key()
}

func candidatePrefix(userID, labelNormalized, fieldCategory string) string {
	return learnedPatternPrefix + userID + "|" + labelNormalized + "|" + fieldCategory + "|"
}

// Lookup returns the highest-confidence learned mapping for a (label,
// category) pair scoped to userID, provided its confidence clears the 0.5
// threshold.
func (m *LearnedMapper) Lookup(ctx context.Context, userID, label string, category models.FieldCategory) (models.LearnedPattern, bool) {
	normalized := normalizeLabel(label)
	candidates, err := m.store.Scan(ctx, candidatePrefix(userID, normalized, string(category)))
	if err != nil || len(candidates) == 0 {
		return models.LearnedPattern{}, false
	}

	var best models.LearnedPattern
	found := false
	for _, raw := range candidates {
		var pattern models.LearnedPattern
		if err := json.Unmarshal(raw, &pattern); err != nil {
			continue
		}
		if pattern.Confidence >= lookupThreshold && (!found || pattern.Confidence > best.Confidence) {
			best = pattern
			found = true
		}
	}
	return best, found
}

// RecordSuccess upserts (or creates) the (label, category, profile_field)
// pattern and nudges its confidence toward 1 via
// c <- c + (1-c) * successAlpha.
func (m *LearnedMapper) RecordSuccess(ctx context.Context, userID, label string, category models.FieldCategory, profileField string) error {
	return m.update(ctx, userID, label, category, profileField, true)
}

// RecordFailure nudges an existing pattern's confidence toward 0 via
// c <- c * (1-failureAlpha). A failure against a pattern that doesn't yet
// exist is a no-op: there's nothing to decay.
func (m *LearnedMapper) RecordFailure(ctx context.Context, userID, label string, category models.FieldCategory, profileField string) error {
	return m.update(ctx, userID, label, category, profileField, false)
}

func (m *LearnedMapper) update(ctx context.Context, userID, label string, category models.FieldCategory, profileField string, success bool) error {
	normalized := normalizeLabel(label)
	pattern := models.LearnedPattern{
		UserID:          userID,
		LabelNormalized: normalized,
		FieldCategory:   string(category),
		ProfileField:    profileField,
	}
	key := recordKey(pattern)

	raw, err := m.store.Get(ctx, key)
	exists := err == nil
	if exists {
		if jsonErr := json.Unmarshal(raw, &pattern); jsonErr != nil {
			exists = false
		}
	}

	if !exists {
		if !success {
			return nil
		}
		pattern = models.LearnedPattern{
			UserID:          userID,
			LabelNormalized: normalized,
			FieldCategory:   string(category),
			ProfileField:    profileField,
			Confidence:      0.5,
		}
	}

	if success {
		pattern.Confidence = pattern.Confidence + (1-pattern.Confidence)*successAlpha
		pattern.SuccessCount++
	} else {
		pattern.Confidence = pattern.Confidence * (1 - failureAlpha)
		pattern.FailureCount++
	}
	pattern.LastUsedAt = time.Now().UTC()

	raw, err = json.Marshal(pattern)
	if err != nil {
		return err
	}
	// Learned patterns persist indefinitely (no TTL) — they represent
	// accumulated knowledge, not transient rate-limit state.
	return m.store.Set(ctx, key, raw, 0)
}
