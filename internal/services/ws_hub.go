package services

import (
	"encoding/json"
	"sync"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/mingjobo/piximagegenerator/internal/models"
)

// WSMessage represents a WebSocket message sent to gallery viewers
type WSMessage struct {
	Event string       `json:"event"`
	Work  *models.Work `json:"work,omitempty"`
}

// WSHub manages the WebSocket connections of gallery viewers. The gallery
// is global, so every message is broadcast to everyone; connections that
// fail a write are dropped on the spot.
type WSHub struct {
	mu          sync.RWMutex
	connections map[*websocket.Conn]struct{}
}

// NewWSHub creates a new WebSocket hub
func NewWSHub() *WSHub {
	return &WSHub{
		connections: make(map[*websocket.Conn]struct{}),
	}
}

// Register adds a viewer connection
func (h *WSHub) Register(conn *websocket.Conn) {
	h.mu.Lock()
	h.connections[conn] = struct{}{}
	count := len(h.connections)
	h.mu.Unlock()

	log.Info().Int("viewers", count).Msg("WebSocket viewer connected")
}

// Unregister removes and closes a viewer connection
func (h *WSHub) Unregister(conn *websocket.Conn) {
	h.mu.Lock()
	if _, exists := h.connections[conn]; exists {
		conn.Close()
		delete(h.connections, conn)
	}
	count := len(h.connections)
	h.mu.Unlock()

	log.Info().Int("viewers", count).Msg("WebSocket viewer disconnected")
}

// BroadcastWorkCreated pushes a freshly generated work to every viewer
func (h *WSHub) BroadcastWorkCreated(work *models.Work) {
	data, err := json.Marshal(WSMessage{Event: "work_created", Work: work})
	if err != nil {
		log.Error().Err(err).Msg("Failed to marshal broadcast")
		return
	}

	h.mu.RLock()
	conns := make([]*websocket.Conn, 0, len(h.connections))
	for conn := range h.connections {
		conns = append(conns, conn)
	}
	h.mu.RUnlock()

	for _, conn := range conns {
		if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
			log.Debug().Err(err).Msg("Dropping dead WebSocket viewer")
			h.Unregister(conn)
		}
	}
}

// ViewerCount reports the number of connected viewers
func (h *WSHub) ViewerCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.connections)
}
