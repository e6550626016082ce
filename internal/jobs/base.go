package jobs

import (
	"context"
	"fmt"
	"time"

	"github.com/jobforge/orchestrator/internal/models"
	"github.com/jobforge/orchestrator/internal/quota"
	"github.com/jobforge/orchestrator/internal/ratelimit"
	"github.com/ternarybob/arbor"
)

// base holds the dependencies every C12 handler shares: the rate limiter
// (C1), the quota manager (C2), and the audit sink. Concrete handlers embed
// it and add their own external collaborators.
type base struct {
	limits *ratelimit.Limiter
	quota  *quota.Manager
	audit  *Auditor
	logger arbor.ILogger
}

// checkDailyLimit runs the per-user-per-day admission check spec §4.12 step
// (b) names, translating a denial into the wording spec §7 specifies for
// JobResult.Error ("...limit exceeded...try again in N seconds").
func (b *base) checkDailyLimit(ctx context.Context, limitName, userID string) error {
	result, err := b.limits.CheckLimit(ctx, limitName, userID)
	if err != nil {
		return fmt.Errorf("jobs: checking %s: %w", limitName, err)
	}
	if !result.Allowed {
		return &models.LimitDeniedError{LimitName: limitName, RetryAfter: result.RetryAfter.Seconds()}
	}
	return nil
}

// reserveGemini runs step (c): check global Gemini quota, then reserve.
// Callers must defer release(ctx, reservationID) on every exit path.
func (b *base) reserveGemini(ctx context.Context, userID string, priority models.JobPriority) (string, error) {
	ok, info, err := b.quota.CanMakeRequest(ctx)
	if err != nil {
		return "", fmt.Errorf("jobs: checking gemini quota: %w", err)
	}
	if !ok {
		return "", &models.QuotaExceededError{Reason: fmt.Sprintf("minute=%d/%d day=%d/%d", info.MinuteUsed, info.MinuteCap, info.DayUsed, info.DayCap)}
	}
	reservationID, err := b.quota.ReserveQuota(ctx, userID, priority)
	if err != nil {
		return "", err
	}
	return reservationID, nil
}

// release is always-deferred step (g): release the quota reservation on
// every exit path, logging rather than propagating a release failure since
// the job's own outcome has already been decided by the time this runs.
func (b *base) release(ctx context.Context, reservationID string) {
	if reservationID == "" {
		return
	}
	if err := b.quota.ReleaseQuota(ctx, reservationID); err != nil {
		b.logger.Warn().Err(err).Str("reservation_id", reservationID).Msg("jobs: failed to release quota reservation")
	}
}

// payloadStringOr extracts an optional string field with a default, per
// spec §6's per-type defaults (e.g. job_title defaults to "Unknown
// Position").
func payloadStringOr(payload map[string]interface{}, key, fallback string) string {
	if v, ok := payload[key]; ok {
		if s, ok := v.(string); ok && s != "" {
			return s
		}
	}
	return fallback
}

func payloadBool(payload map[string]interface{}, key string) bool {
	if v, ok := payload[key]; ok {
		if b, ok := v.(bool); ok {
			return b
		}
	}
	return false
}

func payloadStringSlice(payload map[string]interface{}, key string) []string {
	v, ok := payload[key]
	if !ok {
		return nil
	}
	raw, ok := v.([]interface{})
	if !ok {
		return nil
	}
	out := make([]string, 0, len(raw))
	for _, item := range raw {
		if s, ok := item.(string); ok {
			out = append(out, s)
		}
	}
	return out
}

// elapsed is a small helper so every handler reports duration the same way.
func elapsed(start time.Time) float64 {
	return time.Since(start).Seconds()
}
