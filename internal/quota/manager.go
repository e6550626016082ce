// Package quota implements C2: the reservation protocol over the Gemini
// per-minute/per-day budget, plus a retrying wrapper around the real
// genai.Client for the calls that protocol guards.
package quota

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jobforge/orchestrator/internal/common"
	"github.com/jobforge/orchestrator/internal/models"
	"github.com/jobforge/orchestrator/internal/store"
	"github.com/ternarybob/arbor"
)

const (
	reservationPrefix = "quota:reservation:"
	reservationTTL    = 60 * time.Second
	minuteWindow      = 60 * time.Second
	dayWindow         = 24 * time.Hour

	// headroomPriority is the priority threshold (inclusive, lower value =
	// higher priority) allowed to overcommit the per-minute cap by
	// headroomSlots, so a burst of critical jobs isn't starved by ordinary
	// traffic sitting exactly at the cap.
	headroomPriority = models.PriorityHigh
	headroomSlots    = 2
)

// AdmissionInfo is returned by CanMakeRequest.
type AdmissionInfo struct {
	MinuteUsed    int
	MinuteCap     int
	LiveReserved  int
	DayUsed       int
	DayCap        int
}

// Manager implements the reserve/release protocol described in §4.2. All
// operations are pure store reads/writes; the network call itself lives in
// Invoke, gated by a reservation the caller already holds.
type Manager struct {
	store  store.Store
	logger arbor.ILogger
	cfg    common.GeminiConfig
	client *Client
}

// NewManager builds a quota Manager backed by a real Gemini client.
func NewManager(s store.Store, logger arbor.ILogger, cfg common.GeminiConfig) (*Manager, error) {
	client, err := NewClient(context.Background(), logger, cfg)
	if err != nil {
		return nil, err
	}
	return NewManagerWithClient(s, logger, cfg, client), nil
}

// NewManagerWithClient builds a Manager around an already-constructed
// client, letting tests exercise the reservation protocol (pure store
// operations) without a real API key.
func NewManagerWithClient(s store.Store, logger arbor.ILogger, cfg common.GeminiConfig, client *Client) *Manager {
	return &Manager{store: s, logger: logger, cfg: cfg, client: client}
}

func minuteKey(now time.Time) string {
	return fmt.Sprintf("quota:minute:%d", now.Unix()/60)
}

func dayKey(now time.Time) string {
	return fmt.Sprintf("quota:day:%s", now.UTC().Format("2006-01-02"))
}

// CanMakeRequest reports whether a new request would fit the per-minute and
// per-day budgets, per §4.2: true iff (live minute counter + live
// reservations) < per-minute cap AND per-day counter < per-day cap.
func (m *Manager) CanMakeRequest(ctx context.Context) (bool, AdmissionInfo, error) {
	now := time.Now()
	info := AdmissionInfo{MinuteCap: m.cfg.MaxPerMinute, DayCap: m.cfg.MaxPerDay}

	info.MinuteUsed = m.readCounter(ctx, minuteKey(now))
	info.DayUsed = m.readCounter(ctx, dayKey(now))

	live, err := m.store.Scan(ctx, reservationPrefix)
	if err != nil {
		return false, info, fmt.Errorf("quota: scanning reservations: %w", err)
	}
	info.LiveReserved = len(live)

	ok := (info.MinuteUsed+info.LiveReserved) < info.MinuteCap && info.DayUsed < info.DayCap
	return ok, info, nil
}

func (m *Manager) readCounter(ctx context.Context, key string) int {
	raw, err := m.store.Get(ctx, key)
	if err != nil {
		return 0
	}
	var n int
	fmt.Sscanf(string(raw), "%d", &n)
	return n
}

// ReserveQuota atomically appends a reservation, per §4.2. Higher-priority
// callers (priority <= headroomPriority) may overcommit the per-minute cap
// by headroomSlots; lower-priority callers may not.
func (m *Manager) ReserveQuota(ctx context.Context, userID string, priority models.JobPriority) (string, error) {
	ok, info, err := m.CanMakeRequest(ctx)
	if err != nil {
		return "", err
	}
	if !ok {
		if priority <= headroomPriority && (info.MinuteUsed+info.LiveReserved) < info.MinuteCap+headroomSlots && info.DayUsed < info.DayCap {
			// Allowed under priority headroom.
		} else {
			return "", &models.QuotaExceededError{Reason: fmt.Sprintf("minute=%d/%d day=%d/%d live=%d", info.MinuteUsed, info.MinuteCap, info.DayUsed, info.DayCap, info.LiveReserved)}
		}
	}

	now := time.Now()
	reservation := models.QuotaReservation{
		ReservationID: uuid.New().String(),
		UserID:        userID,
		Priority:      priority,
		ReservedAt:    now,
		ExpiresAt:     now.Add(reservationTTL),
	}

	if err := m.store.Set(ctx, reservationPrefix+reservation.ReservationID, []byte(reservation.ReservationID), reservationTTL); err != nil {
		return "", fmt.Errorf("quota: persisting reservation: %w", err)
	}
	return reservation.ReservationID, nil
}

// ReleaseQuota removes the reservation and increments the live per-minute
// and per-day counters by 1, per §4.2. Safe to call on an already-expired
// reservation id (no-op on the delete, counters still increment since the
// caller did perform work).
func (m *Manager) ReleaseQuota(ctx context.Context, reservationID string) error {
	if err := m.store.Delete(ctx, reservationPrefix+reservationID); err != nil {
		m.logger.Warn().Err(err).Str("reservation_id", reservationID).Msg("failed to delete quota reservation")
	}
	now := time.Now()
	if _, err := m.store.Incr(ctx, minuteKey(now), 1, minuteWindow); err != nil {
		return fmt.Errorf("quota: incrementing minute counter: %w", err)
	}
	if _, err := m.store.Incr(ctx, dayKey(now), 1, dayWindow); err != nil {
		return fmt.Errorf("quota: incrementing day counter: %w", err)
	}
	return nil
}

// Invoke performs the guarded Gemini call. Callers must already hold a
// reservation (from ReserveQuota) and must call ReleaseQuota exactly once
// regardless of outcome.
func (m *Manager) Invoke(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	return m.client.Generate(ctx, systemPrompt, userPrompt)
}

// InvokeBatch performs a guarded call against the batch-classification model
// (C10 uses a cheaper/faster model than the final-review pass).
func (m *Manager) InvokeBatch(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	return m.client.GenerateWithModel(ctx, m.cfg.BatchModel, systemPrompt, userPrompt)
}

// InvokeGuarded wraps Invoke in the full reserve/release protocol, so a
// caller that doesn't otherwise hold a reservation (C10's per-field and
// per-page LLM calls) never risks calling Invoke unguarded.
func (m *Manager) InvokeGuarded(ctx context.Context, userID string, priority models.JobPriority, systemPrompt, userPrompt string) (string, error) {
	reservationID, err := m.reserveForInvoke(ctx, userID, priority)
	if err != nil {
		return "", err
	}
	defer m.releaseQuiet(ctx, reservationID)
	return m.Invoke(ctx, systemPrompt, userPrompt)
}

// InvokeBatchGuarded is InvokeGuarded's counterpart for InvokeBatch.
func (m *Manager) InvokeBatchGuarded(ctx context.Context, userID string, priority models.JobPriority, systemPrompt, userPrompt string) (string, error) {
	reservationID, err := m.reserveForInvoke(ctx, userID, priority)
	if err != nil {
		return "", err
	}
	defer m.releaseQuiet(ctx, reservationID)
	return m.InvokeBatch(ctx, systemPrompt, userPrompt)
}

func (m *Manager) reserveForInvoke(ctx context.Context, userID string, priority models.JobPriority) (string, error) {
	ok, info, err := m.CanMakeRequest(ctx)
	if err != nil {
		return "", fmt.Errorf("quota: checking admission: %w", err)
	}
	if !ok {
		return "", &models.QuotaExceededError{Reason: fmt.Sprintf("minute=%d/%d day=%d/%d", info.MinuteUsed, info.MinuteCap, info.DayUsed, info.DayCap)}
	}
	return m.ReserveQuota(ctx, userID, priority)
}

func (m *Manager) releaseQuiet(ctx context.Context, reservationID string) {
	if reservationID == "" {
		return
	}
	if err := m.ReleaseQuota(ctx, reservationID); err != nil {
		m.logger.Warn().Err(err).Str("reservation_id", reservationID).Msg("quota: failed to release reservation after guarded invoke")
	}
}
