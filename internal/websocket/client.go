package websocket

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/cleberrangel/minute-allocation-api/internal/logger"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

// Client is a middleman between the websocket connection and the hub
type Client struct {
	conn *websocket.Conn

	// Buffered channel of outbound messages
	Send chan []byte

	Hub         *Hub
	RemoteAddr  string
	ConnectedAt time.Time

	closeOnce sync.Once
}

// NewClient creates a client not yet attached to a connection
func NewClient(hub *Hub, remoteAddr string) *Client {
	return &Client{
		Send:        make(chan []byte, 256),
		Hub:         hub,
		RemoteAddr:  remoteAddr,
		ConnectedAt: time.Now(),
	}
}

// ServeWS upgrades the request and streams hub messages to the peer
func (h *Hub) ServeWS(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		logger.FromGin(c).Error().Err(err).Msg("Failed to upgrade WebSocket connection")
		return
	}

	client := NewClient(h, c.ClientIP())
	client.conn = conn

	logger.AuditWebSocket(c.Request.Context(), logger.AuditActionWSConnect, client.RemoteAddr, nil)

	h.register <- client

	go client.writePump()
	go client.readPump()
}

// readPump pumps messages from the websocket connection to the hub. It is
// the only reader of the connection.
func (c *Client) readPump() {
	defer func() {
		c.Hub.unregister <- c
		c.conn.Close()
		logger.Global().Debug().Str("client_ip", c.RemoteAddr).
			Dur("connected_for", time.Since(c.ConnectedAt)).
			Msg("WebSocket read loop finished")
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.Hub.logger.Error().
					Err(err).
					Str("client_ip", c.RemoteAddr).
					Msg("WebSocket connection closed unexpectedly")
			}
			break
		}

		c.handleMessage(message)
	}
}

// writePump pumps messages from the hub to the websocket connection. It is
// the only writer of the connection.
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.Send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				// The hub closed the channel
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// handleMessage answers application level pings; the feed is one way
func (c *Client) handleMessage(data []byte) {
	var msg Message
	if err := json.Unmarshal(data, &msg); err != nil {
		c.Hub.logger.Debug().
			Err(err).
			Str("client_ip", c.RemoteAddr).
			Msg("Ignoring malformed client message")
		return
	}

	if msg.Type == "ping" {
		c.SendMessage(Message{Type: TypePong, Timestamp: time.Now().UTC()})
	}
}

// SendMessage sends a message to this specific client without blocking
func (c *Client) SendMessage(message interface{}) {
	data, err := json.Marshal(message)
	if err != nil {
		c.Hub.logger.Error().
			Err(err).
			Str("client_ip", c.RemoteAddr).
			Msg("Failed to marshal message for client")
		return
	}

	select {
	case c.Send <- data:
	default:
		c.Hub.logger.Warn().
			Str("client_ip", c.RemoteAddr).
			Msg("Client send channel is full, message dropped")
	}
}

func (c *Client) closeSend() {
	c.closeOnce.Do(func() { close(c.Send) })
}

// IsWebSocketUpgrade reports whether r asks for a websocket upgrade
func IsWebSocketUpgrade(r *http.Request) bool {
	return websocket.IsWebSocketUpgrade(r)
}
