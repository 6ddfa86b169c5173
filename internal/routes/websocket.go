package routes

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/nikhil/worktrack/internal/handlers"
	"github.com/nikhil/worktrack/internal/middleware"
)

// RegisterWebSocketRoutes registers all WebSocket related routes
func RegisterWebSocketRoutes(router *mux.Router, deps *Dependencies) {
	wsHandler := handlers.NewWebSocketHandler(deps.Hub, deps.Log)

	// WebSocket endpoint with authentication via query parameter
	router.Handle("/ws", middleware.WebSocketAuthMiddleware(deps.JWTSecret)(http.HandlerFunc(wsHandler.HandleWebSocket))).Methods("GET", "OPTIONS")
}
