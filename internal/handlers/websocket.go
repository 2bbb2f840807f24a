package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/visionone/internal/models"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true // Allow all origins for local development
	},
}

// Message types pushed to dashboard clients
const (
	MessageLatest = "latest"
	MessageStatus = "status"
)

// WSMessage is the envelope for every websocket push
type WSMessage struct {
	Type    string      `json:"type"`
	Payload interface{} `json:"payload"`
}

// StatusUpdate is sent once to each client on connect
type StatusUpdate struct {
	Service          string `json:"service"`
	ReportsDir       string `json:"reports_dir"`
	ServerInstanceID string `json:"server_instance_id"` // Changes on restart so clients can resync
}

// LatestSource reports the newest report file and loads it
type LatestSource interface {
	Dir() string
	LatestStamp() (string, time.Time, error)
	Latest() (*models.StoredReport, error)
}

type WebSocketHandler struct {
	logger           arbor.ILogger
	source           LatestSource
	clients          map[*websocket.Conn]*sync.Mutex // Per-connection write lock
	mu               sync.RWMutex
	serverInstanceID string

	stampMu    sync.Mutex
	lastName   string
	lastModified time.Time
}

func NewWebSocketHandler(source LatestSource, logger arbor.ILogger) *WebSocketHandler {
	h := &WebSocketHandler{
		logger:           logger,
		source:           source,
		clients:          make(map[*websocket.Conn]*sync.Mutex),
		serverInstanceID: uuid.New().String(),
	}

	logger.Info().Str("server_instance_id", h.serverInstanceID).Msg("WebSocket handler initialized with server instance ID")
	return h
}

// HandleWebSocket registers the client, sends status and the current latest report,
// then reads until the client goes away.
func (h *WebSocketHandler) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Error().Err(err).Msg("Failed to upgrade WebSocket connection")
		return
	}

	mutex := &sync.Mutex{}
	h.mu.Lock()
	h.clients[conn] = mutex
	clientCount := len(h.clients)
	h.mu.Unlock()

	h.logger.Debug().Msgf("WebSocket client connected (total: %d)", clientCount)

	h.send(conn, mutex, WSMessage{
		Type: MessageStatus,
		Payload: StatusUpdate{
			Service:          "ONLINE",
			ReportsDir:       h.source.Dir(),
			ServerInstanceID: h.serverInstanceID,
		},
	})
	if latest, err := h.source.Latest(); err == nil {
		h.send(conn, mutex, WSMessage{Type: MessageLatest, Payload: latest})
	}

	defer func() {
		h.mu.Lock()
		delete(h.clients, conn)
		remaining := len(h.clients)
		h.mu.Unlock()

		conn.Close()
		h.logger.Debug().Msgf("WebSocket client disconnected (remaining: %d)", remaining)
	}()

	// Read messages from client (keep connection alive)
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				h.logger.Warn().Err(err).Msg("WebSocket error")
			}
			break
		}
	}
}

func (h *WebSocketHandler) send(conn *websocket.Conn, mutex *sync.Mutex, msg WSMessage) {
	data, err := json.Marshal(msg)
	if err != nil {
		h.logger.Error().Err(err).Str("type", msg.Type).Msg("Failed to marshal websocket message")
		return
	}

	mutex.Lock()
	err = conn.WriteMessage(websocket.TextMessage, data)
	mutex.Unlock()

	if err != nil {
		h.logger.Warn().Err(err).Str("type", msg.Type).Msg("Failed to send to client")
	}
}

// Broadcast sends msg to all connected clients
func (h *WebSocketHandler) Broadcast(msg WSMessage) {
	h.mu.RLock()
	conns := make([]*websocket.Conn, 0, len(h.clients))
	mutexes := make([]*sync.Mutex, 0, len(h.clients))
	for conn, mutex := range h.clients {
		conns = append(conns, conn)
		mutexes = append(mutexes, mutex)
	}
	h.mu.RUnlock()

	for i, conn := range conns {
		h.send(conn, mutexes[i], msg)
	}
}

// ClientCount returns the number of connected clients
func (h *WebSocketHandler) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// StartLatestBroadcaster polls the newest report every interval and pushes it
// to clients whenever its file name or modification time changes.
func (h *WebSocketHandler) StartLatestBroadcaster(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = 2 * time.Second
	}

	// Existing reports are sent on connect; only changes are broadcast
	h.checkLatest()

	ticker := time.NewTicker(interval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if h.checkLatest() && h.ClientCount() > 0 {
					h.broadcastLatest()
				}
			}
		}
	}()
}

// checkLatest records the newest report stamp and reports whether it changed
func (h *WebSocketHandler) checkLatest() bool {
	name, modTime, err := h.source.LatestStamp()
	if err != nil {
		h.logger.Warn().Err(err).Msg("Failed to poll reports directory")
		return false
	}

	h.stampMu.Lock()
	defer h.stampMu.Unlock()

	if name == h.lastName && modTime.Equal(h.lastModified) {
		return false
	}
	h.lastName = name
	h.lastModified = modTime
	return name != ""
}

func (h *WebSocketHandler) broadcastLatest() {
	latest, err := h.source.Latest()
	if err != nil {
		h.logger.Warn().Err(err).Msg("Failed to load latest report for broadcast")
		return
	}
	h.logger.Debug().Str("file", latest.Filename).Msg("Broadcasting latest report")
	h.Broadcast(WSMessage{Type: MessageLatest, Payload: latest})
}
