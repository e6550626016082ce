package events

import (
	"encoding/json"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"
	"github.com/ternarybob/arbor"
)

// JobStatusEvent is the payload pushed to every subscriber each time a job
// transitions state, letting a front-end track progress without polling
// GetJobStatus. Mirrors the fields spec §7 documents on JobResult.
type JobStatusEvent struct {
	JobID    string  `json:"job_id"`
	UserID   string  `json:"user_id"`
	Status   string  `json:"status"`
	Error    string  `json:"error,omitempty"`
	Progress float64 `json:"progress,omitempty"`
}

type message struct {
	Type    string      `json:"type"`
	Payload interface{} `json:"payload"`
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// Hub fans job-status events out to every connected WebSocket client. It is
// the one integration point spec §1's out-of-scope web front-end would
// subscribe through; this module only publishes.
type Hub struct {
	logger  arbor.ILogger
	mu      sync.RWMutex
	clients map[*websocket.Conn]*sync.Mutex
}

// NewHub builds an empty Hub.
func NewHub(logger arbor.ILogger) *Hub {
	return &Hub{logger: logger, clients: make(map[*websocket.Conn]*sync.Mutex)}
}

// HandleWebSocket upgrades an incoming HTTP request to a WebSocket connection
// and registers it as a subscriber until the client disconnects. Exposed for
// a REST layer to mount at whatever path it chooses.
func (h *Hub) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Error().Err(err).Msg("events: failed to upgrade websocket connection")
		return
	}

	h.mu.Lock()
	h.clients[conn] = &sync.Mutex{}
	count := len(h.clients)
	h.mu.Unlock()
	h.logger.Debug().Int("clients", count).Msg("events: client connected")

	defer func() {
		h.mu.Lock()
		delete(h.clients, conn)
		remaining := len(h.clients)
		h.mu.Unlock()
		conn.Close()
		h.logger.Debug().Int("clients", remaining).Msg("events: client disconnected")
	}()

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			break
		}
	}
}

// Publish broadcasts a job status change to every connected client. Safe to
// call with zero clients connected.
func (h *Hub) Publish(event JobStatusEvent) {
	data, err := json.Marshal(message{Type: "job_status", Payload: event})
	if err != nil {
		h.logger.Warn().Err(err).Str("job_id", event.JobID).Msg("events: failed to marshal job status event")
		return
	}

	h.mu.RLock()
	targets := make(map[*websocket.Conn]*sync.Mutex, len(h.clients))
	for conn, mu := range h.clients {
		targets[conn] = mu
	}
	h.mu.RUnlock()

	for conn, mu := range targets {
		mu.Lock()
		err := conn.WriteMessage(websocket.TextMessage, data)
		mu.Unlock()
		if err != nil {
			h.logger.Warn().Err(err).Msg("events: failed to push job status to client")
		}
	}
}
