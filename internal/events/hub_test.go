package events

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"
)

func TestHubPublish_DeliversToConnectedClient(t *testing.T) {
	hub := NewHub(arbor.NewLogger())
	server := httptest.NewServer(http.HandlerFunc(hub.HandleWebSocket))
	defer server.Close()

	wsURL := "ws" + strings.TrimPrefix(server.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	defer conn.Close()

	// Give the server goroutine time to register the connection.
	time.Sleep(50 * time.Millisecond)

	hub.Publish(JobStatusEvent{JobID: "job-1", UserID: "user-1", Status: "COMPLETED"})

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, data, err := conn.ReadMessage()
	require.NoError(t, err)
	require.Contains(t, string(data), "job-1")
	require.Contains(t, string(data), "job_status")
}

func TestHubPublish_NoClientsDoesNotPanic(t *testing.T) {
	hub := NewHub(arbor.NewLogger())
	hub.Publish(JobStatusEvent{JobID: "job-1", Status: "FAILED"})
}
