package handlers

import (
	"net/http"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/mingjobo/piximagegenerator/internal/services"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // the gallery is public
	},
}

// WebSocketHandler upgrades gallery viewers onto the live-update hub
type WebSocketHandler struct {
	hub         *services.WSHub
	userService *services.UserService
}

// NewWebSocketHandler creates a new WebSocket handler
func NewWebSocketHandler(hub *services.WSHub, userService *services.UserService) *WebSocketHandler {
	return &WebSocketHandler{hub: hub, userService: userService}
}

// HandleWebSocket handles GET /ws. A token is optional: anonymous viewers
// receive broadcasts too, authenticated ones are just logged by uuid.
func (h *WebSocketHandler) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	userUUID := ""
	if token := r.URL.Query().Get("token"); token != "" {
		uid, err := h.userService.ValidateJWT(token)
		if err != nil {
			respondError(w, "invalid token", http.StatusUnauthorized)
			return
		}
		userUUID = uid
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Error().Err(err).Msg("Failed to upgrade WebSocket connection")
		return
	}

	h.hub.Register(conn)
	defer h.hub.Unregister(conn)

	if userUUID != "" {
		log.Debug().Str("user_uuid", userUUID).Msg("Authenticated viewer connected")
	}

	// Reads only serve to detect the close; broadcasts flow the other way.
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}
