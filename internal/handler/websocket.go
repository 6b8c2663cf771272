package handler

import (
	"net/http"

	"github.com/cleberrangel/minute-allocation-api/internal/websocket"
	"github.com/gin-gonic/gin"
)

// WebSocketHandler handles WebSocket-related HTTP requests
type WebSocketHandler struct {
	hub *websocket.Hub
}

// NewWebSocketHandler creates a new WebSocket handler
func NewWebSocketHandler(hub *websocket.Hub) *WebSocketHandler {
	return &WebSocketHandler{
		hub: hub,
	}
}

// HandleConnection upgrades the request and subscribes it to the allocation feed
// @Summary      Feed de alocações
// @Description  Recebe {"type":"allocation.created","data":...} a cada alocação criada
// @Tags         allocations
// @Security     BearerAuth
// @Router       /api/v1/allocations/stream [get]
func (h *WebSocketHandler) HandleConnection(c *gin.Context) {
	if !websocket.IsWebSocketUpgrade(c.Request) {
		c.JSON(http.StatusBadRequest, gin.H{
			"success": false,
			"error":   "requisição não é um upgrade websocket",
			"code":    "WEBSOCKET_UPGRADE_REQUIRED",
		})
		return
	}
	h.hub.ServeWS(c)
}

// GetConnectionStats returns WebSocket connection statistics
func (h *WebSocketHandler) GetConnectionStats(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data": gin.H{
			"total_connections": h.hub.ConnectionCount(),
		},
	})
}
