package middleware

import (
	"net/http"
	"strings"
	"time"

	"github.com/cleberrangel/minute-allocation-api/internal/logger"
	"github.com/cleberrangel/minute-allocation-api/internal/metrics"
	"github.com/gin-gonic/gin"
)

// MetricsMiddleware tracks request metrics
func MetricsMiddleware(m *metrics.Metrics) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		c.Next()

		latency := time.Since(start).Milliseconds()
		statusCode := c.Writer.Status()

		m.IncrementRequests(statusCode < 400, latency)

		// rotas desconhecidas ficam agrupadas para não criar uma série por URL
		path := c.FullPath()
		if path == "" {
			path = "unmatched"
		}
		m.TrackEndpoint(path, c.Request.Method, statusCode, latency)
	}
}

// AuditMiddleware logs audit events for state-changing operations under prefix
func AuditMiddleware(prefix string) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path

		c.Next()

		method := c.Request.Method
		if !strings.HasPrefix(path, prefix) {
			return
		}
		if method != http.MethodPost && method != http.MethodPut && method != http.MethodDelete {
			return
		}

		logger.AuditRequest(
			c.Request.Context(),
			method,
			path,
			c.Writer.Status(),
			time.Since(start).Milliseconds(),
			c.ClientIP(),
		)
	}
}
