package handler

import (
	"github.com/cleberrangel/minute-allocation-api/internal/metrics"
	"github.com/cleberrangel/minute-allocation-api/internal/middleware"
	"github.com/gin-gonic/gin"
)

// RouterConfig reúne os handlers e middlewares montados no router
type RouterConfig struct {
	Allocations *AllocationHandler
	Health      *HealthHandler
	WebSocket   *WebSocketHandler
	Auth        middleware.AuthConfig
	Limiter     *middleware.RateLimiter
	Metrics     *metrics.Metrics
}

// NewRouter monta as rotas públicas e as rotas protegidas em /api/v1
func NewRouter(cfg RouterConfig) *gin.Engine {
	if cfg.Metrics == nil {
		cfg.Metrics = metrics.Get()
	}

	r := gin.New()
	r.Use(middleware.RequestID()) // Request ID + logging estruturado
	r.Use(gin.Recovery())
	r.Use(middleware.MetricsMiddleware(cfg.Metrics))
	r.Use(middleware.AuditMiddleware("/api/v1"))

	// Health check e métricas (públicos)
	r.GET("/health", cfg.Health.DetailedHealthCheck)
	r.GET("/health/live", cfg.Health.LivenessCheck)
	r.GET("/health/ready", cfg.Health.ReadinessCheck)
	r.GET("/metrics", cfg.Health.Prometheus())

	// Grupo de rotas protegidas
	api := r.Group("/api/v1")
	api.Use(middleware.BearerAuth(cfg.Auth))
	{
		api.GET("/metrics", cfg.Health.GetMetrics)

		allocations := api.Group("/allocations")
		create := []gin.HandlerFunc{cfg.Allocations.CreateAllocation}
		if cfg.Limiter != nil {
			create = append([]gin.HandlerFunc{middleware.RateLimit(cfg.Limiter, cfg.Metrics)}, create...)
		}
		allocations.POST("", create...)
		allocations.POST("/preview", cfg.Allocations.PreviewAllocation)
		allocations.GET("", cfg.Allocations.ListAllocations)
		allocations.GET("/stream", cfg.WebSocket.HandleConnection)
		allocations.GET("/stream/stats", cfg.WebSocket.GetConnectionStats)
		allocations.GET("/:id", cfg.Allocations.GetAllocation)
		allocations.GET("/:id/export", cfg.Allocations.ExportAllocation)
		allocations.DELETE("/:id", cfg.Allocations.DeleteAllocation)
	}

	return r
}
