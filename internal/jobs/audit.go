package jobs

import (
	"context"
	"encoding/json"
	"time"

	"github.com/jobforge/orchestrator/internal/common"
	"github.com/jobforge/orchestrator/internal/store"
	"github.com/ternarybob/arbor"
)

// AuditEventType enumerates the security-audit event kinds C12 emits, per
// spec §4.12 step (f). Grounded on the "security_manager.SECURITY_EVENTS"
// table referenced throughout original_source/server/job_handlers.py.
type AuditEventType string

const (
	AuditDataAccess AuditEventType = "data_access"
	AuditAPIAbuse   AuditEventType = "api_abuse"
)

// AuditEvent is the structured record spec §4.12 names:
// {event_type, user_id, action, duration_seconds, relevant_payload}.
type AuditEvent struct {
	EventID         string                 `json:"event_id"`
	EventType       AuditEventType         `json:"event_type"`
	UserID          string                 `json:"user_id"`
	Action          string                 `json:"action"`
	DurationSeconds float64                `json:"duration_seconds"`
	RelevantPayload map[string]interface{} `json:"relevant_payload,omitempty"`
	Timestamp       time.Time              `json:"timestamp"`
}

const (
	auditKeyPrefix = "audit:event:"
	auditTTL       = 24 * time.Hour
)

// Auditor persists security-audit events and mirrors them into the
// structured logger, the same dual sink the teacher's own services use for
// anything an operator might need to both query and tail live.
type Auditor struct {
	store  store.Store
	logger arbor.ILogger
}

// NewAuditor builds an Auditor over the shared store.
func NewAuditor(s store.Store, logger arbor.ILogger) *Auditor {
	return &Auditor{store: s, logger: logger}
}

// Record persists ev and logs it at info (data access) or warn (API abuse)
// level. Persistence failures are logged but never propagate — an audit
// trail gap must not fail the job whose outcome it's recording.
func (a *Auditor) Record(ctx context.Context, ev AuditEvent) {
	ev.EventID = common.NewPrefixedID("audit")
	ev.Timestamp = time.Now().UTC()

	entry := a.logger.Info()
	if ev.EventType == AuditAPIAbuse {
		entry = a.logger.Warn()
	}
	entry.Str("event_type", string(ev.EventType)).
		Str("user_id", ev.UserID).
		Str("action", ev.Action).
		Float64("duration_seconds", ev.DurationSeconds).
		Msg("security audit event")

	raw, err := json.Marshal(ev)
	if err != nil {
		a.logger.Warn().Err(err).Msg("audit: marshaling event")
		return
	}
	if err := a.store.Set(ctx, auditKeyPrefix+ev.EventID, raw, auditTTL); err != nil {
		a.logger.Warn().Err(err).Msg("audit: persisting event")
	}
}
