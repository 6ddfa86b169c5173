package handlers

import (
	"net/http"

	"github.com/gorilla/websocket"

	"github.com/nikhil/worktrack/internal/logger"
	"github.com/nikhil/worktrack/internal/middleware"
	"github.com/nikhil/worktrack/internal/realtime"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// WebSocketHandler handles WebSocket connections
type WebSocketHandler struct {
	hub *realtime.Hub
	Log *logger.Logger
}

// NewWebSocketHandler creates a new WebSocket handler
func NewWebSocketHandler(hub *realtime.Hub, log *logger.Logger) *WebSocketHandler {
	return &WebSocketHandler{hub: hub, Log: log}
}

// HandleWebSocket upgrades the connection and subscribes it to the caller's timer events.
func (h *WebSocketHandler) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		respondWithError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.Log.WithContext(r.Context()).Warn("Error upgrading connection", "error", err)
		return
	}

	client := realtime.NewClient(h.hub, conn, userID)
	if !h.hub.Attach(client) {
		conn.Close()
		return
	}

	go client.WritePump()
	go client.ReadPump()
}
