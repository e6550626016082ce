package jobs

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/jobforge/orchestrator/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"
)

func TestAuditorRecord_PersistsEvent(t *testing.T) {
	s := store.NewMemoryStore()
	a := NewAuditor(s, arbor.NewLogger())
	ctx := context.Background()

	a.Record(ctx, AuditEvent{EventType: AuditDataAccess, UserID: "user-1", Action: "job_search", DurationSeconds: 1.5})

	entries, err := s.Scan(ctx, auditKeyPrefix)
	require.NoError(t, err)
	require.Len(t, entries, 1)

	var ev AuditEvent
	for _, raw := range entries {
		require.NoError(t, json.Unmarshal(raw, &ev))
	}
	assert.Equal(t, "user-1", ev.UserID)
	assert.Equal(t, AuditDataAccess, ev.EventType)
	assert.NotEmpty(t, ev.EventID)
}
