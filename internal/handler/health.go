package handler

import (
	"fmt"
	"net/http"
	"time"

	"github.com/cleberrangel/minute-allocation-api/internal/metrics"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// memoryLimitMB é o limite de heap usado nos health checks
const memoryLimitMB = 512

// ConnectionCounter informa quantos clientes websocket estão conectados
type ConnectionCounter interface {
	ConnectionCount() int
}

// HealthHandler handles health check and metrics endpoints
type HealthHandler struct {
	db        metrics.Pinger
	hub       ConnectionCounter
	metrics   *metrics.Metrics
	registry  *prometheus.Registry
	version   string
	startTime time.Time
}

// NewHealthHandler creates a new health handler
func NewHealthHandler(db metrics.Pinger, hub ConnectionCounter, m *metrics.Metrics, registry *prometheus.Registry, version string) *HealthHandler {
	if m == nil {
		m = metrics.Get()
	}
	return &HealthHandler{
		db:        db,
		hub:       hub,
		metrics:   m,
		registry:  registry,
		version:   version,
		startTime: time.Now(),
	}
}

// LivenessCheck returns basic liveness status
// @Summary Liveness check
// @Tags health
// @Produce json
// @Success 200 {object} map[string]string
// @Router /health/live [get]
func (h *HealthHandler) LivenessCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "ok",
	})
}

// ReadinessCheck returns readiness status including dependencies
// @Summary Readiness check
// @Tags health
// @Produce json
// @Success 200 {object} metrics.HealthCheck
// @Failure 503 {object} metrics.HealthCheck
// @Router /health/ready [get]
func (h *HealthHandler) ReadinessCheck(c *gin.Context) {
	components := map[string]metrics.HealthStatus{
		"database": metrics.CheckDatabaseHealth(c.Request.Context(), h.db),
		"memory":   metrics.CheckMemoryHealth(memoryLimitMB),
	}
	h.respond(c, components)
}

// DetailedHealthCheck returns comprehensive health information
// @Summary Detailed health check
// @Tags health
// @Produce json
// @Success 200 {object} metrics.HealthCheck
// @Failure 503 {object} metrics.HealthCheck
// @Router /health [get]
func (h *HealthHandler) DetailedHealthCheck(c *gin.Context) {
	components := map[string]metrics.HealthStatus{
		"database": metrics.CheckDatabaseHealth(c.Request.Context(), h.db),
		"memory":   metrics.CheckMemoryHealth(memoryLimitMB),
	}
	if h.hub != nil {
		components["websocket"] = metrics.HealthStatus{
			Status:  metrics.StatusHealthy,
			Message: fmt.Sprintf("%d clients connected", h.hub.ConnectionCount()),
		}
	}
	components["allocations"] = h.checkRejectionRate()

	h.respond(c, components)
}

func (h *HealthHandler) respond(c *gin.Context, components map[string]metrics.HealthStatus) {
	overallStatus := metrics.DetermineOverallStatus(components)

	statusCode := http.StatusOK
	if overallStatus == metrics.StatusUnhealthy {
		statusCode = http.StatusServiceUnavailable
	}

	c.JSON(statusCode, metrics.HealthCheck{
		Status:     overallStatus,
		Version:    h.version,
		Uptime:     time.Since(h.startTime).String(),
		Timestamp:  time.Now().UTC().Format(time.RFC3339),
		Components: components,
	})
}

// checkRejectionRate marca o serviço como degradado quando a maioria das
// requisições é rejeitada pelo motor
func (h *HealthHandler) checkRejectionRate() metrics.HealthStatus {
	snapshot := h.metrics.Snapshot()
	a := snapshot.Allocations

	rejected := a.Invalid + a.Infeasible
	total := a.Created + a.Previewed + rejected
	if total >= 20 && rejected*2 > total {
		return metrics.HealthStatus{
			Status:  metrics.StatusDegraded,
			Message: "high allocation rejection rate",
		}
	}
	return metrics.HealthStatus{Status: metrics.StatusHealthy}
}

// GetMetrics returns application metrics
// @Summary Get application metrics
// @Tags metrics
// @Produce json
// @Success 200 {object} metrics.MetricsSnapshot
// @Router /api/v1/metrics [get]
func (h *HealthHandler) GetMetrics(c *gin.Context) {
	c.JSON(http.StatusOK, h.metrics.Snapshot())
}

// Prometheus exposes the registry in the text exposition format
func (h *HealthHandler) Prometheus() gin.HandlerFunc {
	registry := h.registry
	if registry == nil {
		registry = metrics.NewRegistry(h.metrics)
	}
	return gin.WrapH(promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
}
