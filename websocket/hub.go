package websocket

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"marketplace-server/models"
)

// Client represents one WebSocket connection of a user
type Client struct {
	Hub    *Hub
	UserID uint
	Role   models.UserRole
	Conn   *websocket.Conn
	Send   chan []byte
}

// Hub fans notifications out to the live connections of each user
type Hub struct {
	// Connections per user; a user may be connected from several devices
	clients map[uint]map[*Client]bool

	// Register requests from clients
	Register chan *Client

	// Unregister requests from clients
	Unregister chan *Client

	// Message handlers for client-originated messages
	MessageHandlers map[string]MessageHandler

	// Closed once Run returns
	done chan struct{}

	logger *zap.Logger
	mu     sync.RWMutex
}

// Message is the envelope written to and read from connections
type Message struct {
	Type      string      `json:"type"`
	Timestamp time.Time   `json:"timestamp"`
	Data      interface{} `json:"data,omitempty"`
}

// MessageHandler handles different types of messages
type MessageHandler func(*Client, *Message) error

// NewHub creates a new WebSocket hub
func NewHub(logger *zap.Logger) *Hub {
	if logger == nil {
		logger = zap.NewNop()
	}
	hub := &Hub{
		clients:         make(map[uint]map[*Client]bool),
		Register:        make(chan *Client),
		Unregister:      make(chan *Client),
		MessageHandlers: make(map[string]MessageHandler),
		done:            make(chan struct{}),
		logger:          logger,
	}
	hub.MessageHandlers["ping"] = hub.handlePing
	return hub
}

// Run processes registrations until ctx is cancelled, then closes every connection. Send queues
// stay open so pumps still running during shutdown never write to a closed channel.
func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)
	for {
		select {
		case client := <-h.Register:
			h.mu.Lock()
			if h.clients[client.UserID] == nil {
				h.clients[client.UserID] = make(map[*Client]bool)
			}
			h.clients[client.UserID][client] = true
			h.mu.Unlock()
			h.logger.Debug("websocket client registered", zap.Uint("user_id", client.UserID))

		case client := <-h.Unregister:
			h.remove(client)
			h.logger.Debug("websocket client unregistered", zap.Uint("user_id", client.UserID))

		case <-ctx.Done():
			h.mu.Lock()
			for userID, conns := range h.clients {
				for client := range conns {
					if client.Conn != nil {
						client.Conn.Close()
					}
				}
				delete(h.clients, userID)
			}
			h.mu.Unlock()
			h.logger.Debug("websocket hub stopped")
			return
		}
	}
}

// Done is closed once the hub has stopped.
func (h *Hub) Done() <-chan struct{} {
	return h.done
}

// register hands client to Run. It reports false when the hub has stopped.
func (h *Hub) register(client *Client) bool {
	select {
	case h.Register <- client:
		return true
	case <-h.done:
		return false
	}
}

// unregister hands client to Run, or returns at once when the hub has stopped.
func (h *Hub) unregister(client *Client) {
	select {
	case h.Unregister <- client:
	case <-h.done:
	}
}

func (h *Hub) remove(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	conns, ok := h.clients[client.UserID]
	if !ok || !conns[client] {
		return
	}
	delete(conns, client)
	close(client.Send)
	if len(conns) == 0 {
		delete(h.clients, client.UserID)
	}
}

// SendToUser queues message on every connection of the user and reports whether any
// connection accepted it
func (h *Hub) SendToUser(userID uint, message *Message) bool {
	data, err := json.Marshal(message)
	if err != nil {
		h.logger.Error("failed to marshal websocket message", zap.Error(err))
		return false
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	delivered := false
	for client := range h.clients[userID] {
		select {
		case client.Send <- data:
			delivered = true
		default:
			h.logger.Warn("websocket send buffer full", zap.Uint("user_id", userID))
		}
	}
	return delivered
}

// PushNotification delivers a persisted notification to the receiver's connections
func (h *Hub) PushNotification(receiverID uint, notification *models.Notification) bool {
	return h.SendToUser(receiverID, &Message{
		Type:      "notification",
		Timestamp: time.Now(),
		Data:      notification,
	})
}

// IsUserConnected checks if a user is currently connected
func (h *Hub) IsUserConnected(userID uint) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients[userID]) > 0
}

// ConnectedUsers returns the number of users with at least one connection
func (h *Hub) ConnectedUsers() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// handlePing handles ping messages for connection health
func (h *Hub) handlePing(client *Client, message *Message) error {
	return client.SendMessage(&Message{Type: "pong", Timestamp: time.Now()})
}
