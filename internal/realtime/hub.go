// Package realtime pushes timer changes to a user's open websocket sessions.
package realtime

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/nikhil/worktrack/internal/logger"
	"github.com/nikhil/worktrack/internal/metrics"
	"github.com/nikhil/worktrack/internal/models"
)

// Hub maintains the set of connected clients, keyed by user.
type Hub struct {
	// Register requests from the clients.
	Register chan *Client

	// Unregister requests from clients.
	Unregister chan *Client

	clients map[*Client]bool
	users   map[int64][]*Client
	done    chan struct{}
	stop    sync.Once
	mu      sync.RWMutex
	Log     *logger.Logger
}

// NewHub creates a new Hub instance
func NewHub(log *logger.Logger) *Hub {
	if log == nil {
		log = logger.NewLogger("realtime-hub")
	}
	return &Hub{
		Register:   make(chan *Client),
		Unregister: make(chan *Client),
		clients:    make(map[*Client]bool),
		users:      make(map[int64][]*Client),
		done:       make(chan struct{}),
		Log:        log,
	}
}

// Run handles registrations until ctx is cancelled, then closes every client.
func (h *Hub) Run(ctx context.Context) error {
	for {
		select {
		case client := <-h.Register:
			h.add(client)
		case client := <-h.Unregister:
			h.remove(client)
		case <-ctx.Done():
			h.stop.Do(func() { close(h.done) })
			h.closeAll()
			return ctx.Err()
		}
	}
}

// Attach registers client. It returns false once the hub has stopped.
func (h *Hub) Attach(client *Client) bool {
	select {
	case h.Register <- client:
		return true
	case <-h.done:
		return false
	}
}

func (h *Hub) detach(client *Client) {
	select {
	case h.Unregister <- client:
	case <-h.done:
	}
}

func (h *Hub) add(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.clients[client] = true
	h.users[client.UserID] = append(h.users[client.UserID], client)
	metrics.WebSocketConnections.Inc()
	h.Log.WithUser(client.UserID).Debug("Websocket client registered", "connections", len(h.users[client.UserID]))
}

func (h *Hub) remove(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[client]; !ok {
		return
	}
	delete(h.clients, client)

	conns := h.users[client.UserID]
	for i, c := range conns {
		if c == client {
			conns = append(conns[:i], conns[i+1:]...)
			break
		}
	}
	if len(conns) == 0 {
		delete(h.users, client.UserID)
	} else {
		h.users[client.UserID] = conns
	}

	close(client.Send)
	metrics.WebSocketConnections.Dec()
}

func (h *Hub) closeAll() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for client := range h.clients {
		close(client.Send)
		metrics.WebSocketConnections.Dec()
	}
	h.clients = make(map[*Client]bool)
	h.users = make(map[int64][]*Client)
}

// IsUserConnected checks if a user has any active connections
func (h *Hub) IsUserConnected(userID int64) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.users[userID]) > 0
}

// SendToUser queues message on every connection of the user and returns how
// many accepted it. A connection with a full buffer misses the message.
func (h *Hub) SendToUser(userID int64, message []byte) int {
	h.mu.RLock()
	defer h.mu.RUnlock()

	sent := 0
	for _, client := range h.users[userID] {
		select {
		case client.Send <- message:
			sent++
		default:
			h.Log.WithUser(userID).Warn("Websocket send buffer full, dropping message")
		}
	}
	return sent
}

// TimerChanged forwards a committed timer change to the owner's sessions.
func (h *Hub) TimerChanged(event models.TimerEvent) {
	payload, err := json.Marshal(event)
	if err != nil {
		h.Log.WithUser(event.UserID).Error("Failed to encode timer event", "type", event.Type, "error", err)
		return
	}
	h.SendToUser(event.UserID, payload)
}
