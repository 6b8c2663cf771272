package websocket

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/cleberrangel/minute-allocation-api/internal/logger"
	"github.com/cleberrangel/minute-allocation-api/internal/metrics"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

// Hub maintains the set of active clients and broadcasts messages to them
type Hub struct {
	clients map[*Client]bool

	broadcast  chan []byte
	register   chan *Client
	unregister chan *Client

	mutex sync.RWMutex

	metrics *metrics.Metrics
	logger  *zerolog.Logger
}

// Message is the envelope of every message pushed to clients
type Message struct {
	Type      string      `json:"type"`
	Data      interface{} `json:"data,omitempty"`
	Timestamp time.Time   `json:"timestamp"`
}

// Message types
const (
	TypeConnection = "connection"
	TypePong       = "pong"
)

const (
	// Time allowed to write a message to the peer
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer
	maxMessageSize = 512

	// Pending broadcasts before new ones are dropped
	broadcastBuffer = 256
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// NewHub creates a new WebSocket hub
func NewHub(m *metrics.Metrics) *Hub {
	return &Hub{
		clients:    make(map[*Client]bool),
		broadcast:  make(chan []byte, broadcastBuffer),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		metrics:    m,
		logger:     logger.Global(),
	}
}

// Run starts the hub's main loop and closes every client when ctx ends
func (h *Hub) Run(ctx context.Context) {
	for {
		select {
		case client := <-h.register:
			h.registerClient(client)

		case client := <-h.unregister:
			h.unregisterClient(client)

		case message := <-h.broadcast:
			h.broadcastMessage(message)

		case <-ctx.Done():
			h.closeAll()
			return
		}
	}
}

// Broadcast queues a message for every connected client. It never blocks:
// when the queue is full the message is dropped.
func (h *Hub) Broadcast(messageType string, data interface{}) {
	payload, err := json.Marshal(Message{
		Type:      messageType,
		Data:      data,
		Timestamp: time.Now().UTC(),
	})
	if err != nil {
		h.logger.Error().Err(err).Str("type", messageType).Msg("Failed to marshal broadcast message")
		return
	}

	select {
	case h.broadcast <- payload:
	default:
		h.logger.Warn().Str("type", messageType).Msg("Broadcast queue full, message dropped")
	}
}

func (h *Hub) registerClient(client *Client) {
	h.mutex.Lock()
	h.clients[client] = true
	count := len(h.clients)
	h.mutex.Unlock()

	h.metrics.IncrementWSConnection()

	h.logger.Info().
		Str("client_ip", client.RemoteAddr).
		Int("connections", count).
		Msg("WebSocket client registered")

	client.SendMessage(Message{
		Type:      TypeConnection,
		Data:      map[string]string{"status": "connected"},
		Timestamp: time.Now().UTC(),
	})
}

func (h *Hub) unregisterClient(client *Client) {
	h.mutex.Lock()
	defer h.mutex.Unlock()

	if _, ok := h.clients[client]; !ok {
		return
	}
	h.removeLocked(client)

	h.logger.Info().
		Str("client_ip", client.RemoteAddr).
		Int("connections", len(h.clients)).
		Msg("WebSocket client unregistered")
}

// removeLocked drops a client; h.mutex must be held for writing
func (h *Hub) removeLocked(client *Client) {
	delete(h.clients, client)
	client.closeSend()
	h.metrics.DecrementWSConnection()
}

func (h *Hub) broadcastMessage(message []byte) {
	h.mutex.Lock()
	defer h.mutex.Unlock()

	for client := range h.clients {
		select {
		case client.Send <- message:
			h.metrics.IncrementWSMessageOut()
		default:
			h.logger.Warn().
				Str("client_ip", client.RemoteAddr).
				Msg("Client too slow, closing connection")
			h.removeLocked(client)
		}
	}
}

func (h *Hub) closeAll() {
	h.mutex.Lock()
	defer h.mutex.Unlock()

	for client := range h.clients {
		h.removeLocked(client)
	}
}

// ConnectionCount returns the number of active connections
func (h *Hub) ConnectionCount() int {
	h.mutex.RLock()
	defer h.mutex.RUnlock()
	return len(h.clients)
}
