package metrics

import (
	"context"
	"runtime"
	"sync"
	"sync/atomic"
	"time"
)

// EndpointMetrics tracks metrics for a specific endpoint
type EndpointMetrics struct {
	Requests     int64
	Errors       int64
	TotalLatency int64
}

// Metrics holds all application metrics
type Metrics struct {
	mu sync.RWMutex

	// Request metrics
	TotalRequests      int64
	SuccessfulRequests int64
	FailedRequests     int64
	TotalLatency       int64 // milliseconds

	// Allocation metrics
	AllocationsCreated    int64
	AllocationsPreviewed  int64
	AllocationsInvalid    int64
	AllocationsInfeasible int64
	AllocationsDeleted    int64
	TasksAllocated        int64
	MinutesAllocated      int64
	EngineLatencyMicros   int64
	EngineRuns            int64

	// Export and webhook metrics
	ExportsGenerated  int64
	WebhooksDelivered int64
	WebhooksFailed    int64

	// WebSocket metrics
	WSConnections int64
	WSMessagesOut int64

	// Authentication and rate limiting
	AuthFailures int64
	RateLimited  int64

	EndpointMetrics map[string]*EndpointMetrics

	StartTime time.Time
}

var (
	globalMetrics *Metrics
	once          sync.Once
)

// New creates an empty Metrics instance
func New() *Metrics {
	return &Metrics{
		StartTime:       time.Now(),
		EndpointMetrics: make(map[string]*EndpointMetrics),
	}
}

// Init initializes the global metrics instance
func Init() {
	once.Do(func() {
		globalMetrics = New()
	})
}

// Get returns the global metrics instance
func Get() *Metrics {
	Init()
	return globalMetrics
}

// IncrementRequests increments request counters
func (m *Metrics) IncrementRequests(success bool, latencyMs int64) {
	atomic.AddInt64(&m.TotalRequests, 1)
	atomic.AddInt64(&m.TotalLatency, latencyMs)

	if success {
		atomic.AddInt64(&m.SuccessfulRequests, 1)
	} else {
		atomic.AddInt64(&m.FailedRequests, 1)
	}
}

// RecordAllocation records a successful engine run that was persisted
func (m *Metrics) RecordAllocation(tasks, minutes int, engine time.Duration) {
	atomic.AddInt64(&m.AllocationsCreated, 1)
	atomic.AddInt64(&m.TasksAllocated, int64(tasks))
	atomic.AddInt64(&m.MinutesAllocated, int64(minutes))
	m.recordEngine(engine)
}

// RecordPreview records a successful engine run that was not persisted
func (m *Metrics) RecordPreview(engine time.Duration) {
	atomic.AddInt64(&m.AllocationsPreviewed, 1)
	m.recordEngine(engine)
}

func (m *Metrics) recordEngine(d time.Duration) {
	atomic.AddInt64(&m.EngineRuns, 1)
	atomic.AddInt64(&m.EngineLatencyMicros, d.Microseconds())
}

// IncrementInvalid counts a request rejected by validation
func (m *Metrics) IncrementInvalid() {
	atomic.AddInt64(&m.AllocationsInvalid, 1)
}

// IncrementInfeasible counts a request whose bounds cannot be met
func (m *Metrics) IncrementInfeasible() {
	atomic.AddInt64(&m.AllocationsInfeasible, 1)
}

// IncrementDeleted counts a removed allocation
func (m *Metrics) IncrementDeleted() {
	atomic.AddInt64(&m.AllocationsDeleted, 1)
}

// IncrementExport counts a generated spreadsheet
func (m *Metrics) IncrementExport() {
	atomic.AddInt64(&m.ExportsGenerated, 1)
}

// IncrementWebhook counts a webhook delivery attempt
func (m *Metrics) IncrementWebhook(success bool) {
	if success {
		atomic.AddInt64(&m.WebhooksDelivered, 1)
	} else {
		atomic.AddInt64(&m.WebhooksFailed, 1)
	}
}

// IncrementWSConnection increments WebSocket connection counter
func (m *Metrics) IncrementWSConnection() {
	atomic.AddInt64(&m.WSConnections, 1)
}

// DecrementWSConnection decrements WebSocket connection counter
func (m *Metrics) DecrementWSConnection() {
	atomic.AddInt64(&m.WSConnections, -1)
}

// IncrementWSMessageOut increments WebSocket outgoing message counter
func (m *Metrics) IncrementWSMessageOut() {
	atomic.AddInt64(&m.WSMessagesOut, 1)
}

// IncrementAuthFailure counts a rejected bearer token
func (m *Metrics) IncrementAuthFailure() {
	atomic.AddInt64(&m.AuthFailures, 1)
}

// IncrementRateLimited counts a request refused by the rate limiter
func (m *Metrics) IncrementRateLimited() {
	atomic.AddInt64(&m.RateLimited, 1)
}

// TrackEndpoint tracks metrics for a specific endpoint
func (m *Metrics) TrackEndpoint(path, method string, statusCode int, latencyMs int64) {
	key := method + " " + path

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.EndpointMetrics == nil {
		m.EndpointMetrics = make(map[string]*EndpointMetrics)
	}

	em, exists := m.EndpointMetrics[key]
	if !exists {
		em = &EndpointMetrics{}
		m.EndpointMetrics[key] = em
	}

	em.Requests++
	em.TotalLatency += latencyMs
	if statusCode >= 400 {
		em.Errors++
	}
}

// GetEndpointMetrics returns a copy of endpoint metrics
func (m *Metrics) GetEndpointMetrics() map[string]EndpointMetrics {
	m.mu.RLock()
	defer m.mu.RUnlock()

	result := make(map[string]EndpointMetrics, len(m.EndpointMetrics))
	for k, v := range m.EndpointMetrics {
		result[k] = *v
	}
	return result
}

// GetAverageLatency returns average request latency in milliseconds
func (m *Metrics) GetAverageLatency() float64 {
	count := atomic.LoadInt64(&m.TotalRequests)
	if count == 0 {
		return 0
	}
	return float64(atomic.LoadInt64(&m.TotalLatency)) / float64(count)
}

// GetUptime returns the application uptime
func (m *Metrics) GetUptime() time.Duration {
	return time.Since(m.StartTime)
}

// EndpointMetricsSnapshot represents endpoint metrics in a snapshot
type EndpointMetricsSnapshot struct {
	Requests     int64   `json:"requests"`
	Errors       int64   `json:"errors"`
	ErrorRate    float64 `json:"error_rate"`
	AvgLatencyMs float64 `json:"avg_latency_ms"`
}

// MetricsSnapshot represents a point-in-time snapshot of all metrics
type MetricsSnapshot struct {
	UptimeSeconds float64 `json:"uptime_seconds"`
	StartTime     string  `json:"start_time"`

	Requests struct {
		Total        int64   `json:"total"`
		Successful   int64   `json:"successful"`
		Failed       int64   `json:"failed"`
		AvgLatencyMs float64 `json:"avg_latency_ms"`
	} `json:"requests"`

	Allocations struct {
		Created          int64   `json:"created"`
		Previewed        int64   `json:"previewed"`
		Invalid          int64   `json:"invalid"`
		Infeasible       int64   `json:"infeasible"`
		Deleted          int64   `json:"deleted"`
		TasksAllocated   int64   `json:"tasks_allocated"`
		MinutesAllocated int64   `json:"minutes_allocated"`
		AvgEngineMicros  float64 `json:"avg_engine_us"`
	} `json:"allocations"`

	Exports struct {
		Generated int64 `json:"generated"`
	} `json:"exports"`

	Webhooks struct {
		Delivered int64 `json:"delivered"`
		Failed    int64 `json:"failed"`
	} `json:"webhooks"`

	WebSocket struct {
		Connections int64 `json:"connections"`
		MessagesOut int64 `json:"messages_out"`
	} `json:"websocket"`

	Security struct {
		AuthFailures int64 `json:"auth_failures"`
		RateLimited  int64 `json:"rate_limited"`
	} `json:"security"`

	System struct {
		Goroutines   int    `json:"goroutines"`
		HeapAllocMB  uint64 `json:"heap_alloc_mb"`
		HeapInUseMB  uint64 `json:"heap_inuse_mb"`
		StackInUseMB uint64 `json:"stack_inuse_mb"`
		NumGC        uint32 `json:"num_gc"`
	} `json:"system"`

	Endpoints map[string]EndpointMetricsSnapshot `json:"endpoints,omitempty"`
}

// Snapshot returns a point-in-time snapshot of all metrics
func (m *Metrics) Snapshot() MetricsSnapshot {
	var memStats runtime.MemStats
	runtime.ReadMemStats(&memStats)

	snapshot := MetricsSnapshot{}

	snapshot.UptimeSeconds = m.GetUptime().Seconds()
	snapshot.StartTime = m.StartTime.Format(time.RFC3339)

	snapshot.Requests.Total = atomic.LoadInt64(&m.TotalRequests)
	snapshot.Requests.Successful = atomic.LoadInt64(&m.SuccessfulRequests)
	snapshot.Requests.Failed = atomic.LoadInt64(&m.FailedRequests)
	snapshot.Requests.AvgLatencyMs = m.GetAverageLatency()

	snapshot.Allocations.Created = atomic.LoadInt64(&m.AllocationsCreated)
	snapshot.Allocations.Previewed = atomic.LoadInt64(&m.AllocationsPreviewed)
	snapshot.Allocations.Invalid = atomic.LoadInt64(&m.AllocationsInvalid)
	snapshot.Allocations.Infeasible = atomic.LoadInt64(&m.AllocationsInfeasible)
	snapshot.Allocations.Deleted = atomic.LoadInt64(&m.AllocationsDeleted)
	snapshot.Allocations.TasksAllocated = atomic.LoadInt64(&m.TasksAllocated)
	snapshot.Allocations.MinutesAllocated = atomic.LoadInt64(&m.MinutesAllocated)
	if runs := atomic.LoadInt64(&m.EngineRuns); runs > 0 {
		snapshot.Allocations.AvgEngineMicros = float64(atomic.LoadInt64(&m.EngineLatencyMicros)) / float64(runs)
	}

	snapshot.Exports.Generated = atomic.LoadInt64(&m.ExportsGenerated)
	snapshot.Webhooks.Delivered = atomic.LoadInt64(&m.WebhooksDelivered)
	snapshot.Webhooks.Failed = atomic.LoadInt64(&m.WebhooksFailed)

	snapshot.WebSocket.Connections = atomic.LoadInt64(&m.WSConnections)
	snapshot.WebSocket.MessagesOut = atomic.LoadInt64(&m.WSMessagesOut)

	snapshot.Security.AuthFailures = atomic.LoadInt64(&m.AuthFailures)
	snapshot.Security.RateLimited = atomic.LoadInt64(&m.RateLimited)

	snapshot.System.Goroutines = runtime.NumGoroutine()
	snapshot.System.HeapAllocMB = memStats.HeapAlloc / 1024 / 1024
	snapshot.System.HeapInUseMB = memStats.HeapInuse / 1024 / 1024
	snapshot.System.StackInUseMB = memStats.StackInuse / 1024 / 1024
	snapshot.System.NumGC = memStats.NumGC

	endpointMetrics := m.GetEndpointMetrics()
	if len(endpointMetrics) > 0 {
		snapshot.Endpoints = make(map[string]EndpointMetricsSnapshot, len(endpointMetrics))
		for k, v := range endpointMetrics {
			em := EndpointMetricsSnapshot{
				Requests: v.Requests,
				Errors:   v.Errors,
			}
			if v.Requests > 0 {
				em.ErrorRate = float64(v.Errors) / float64(v.Requests) * 100
				em.AvgLatencyMs = float64(v.TotalLatency) / float64(v.Requests)
			}
			snapshot.Endpoints[k] = em
		}
	}

	return snapshot
}

// Health status values
const (
	StatusHealthy   = "healthy"
	StatusDegraded  = "degraded"
	StatusUnhealthy = "unhealthy"
)

// HealthStatus represents the health status of a component
type HealthStatus struct {
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
	Latency int64  `json:"latency_ms,omitempty"`
}

// HealthCheck represents the overall health check response
type HealthCheck struct {
	Status     string                  `json:"status"`
	Version    string                  `json:"version"`
	Uptime     string                  `json:"uptime"`
	Timestamp  string                  `json:"timestamp"`
	Components map[string]HealthStatus `json:"components"`
}

// Pinger is anything whose connectivity can be checked
type Pinger interface {
	PingContext(ctx context.Context) error
}

// CheckDatabaseHealth checks database connectivity
func CheckDatabaseHealth(ctx context.Context, db Pinger) HealthStatus {
	if db == nil {
		return HealthStatus{
			Status:  StatusUnhealthy,
			Message: "database connection not initialized",
		}
	}

	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	start := time.Now()
	err := db.PingContext(ctx)
	latency := time.Since(start).Milliseconds()

	if err != nil {
		return HealthStatus{
			Status:  StatusUnhealthy,
			Message: err.Error(),
			Latency: latency,
		}
	}

	if latency > 100 {
		return HealthStatus{
			Status:  StatusDegraded,
			Message: "high latency",
			Latency: latency,
		}
	}

	return HealthStatus{
		Status:  StatusHealthy,
		Latency: latency,
	}
}

// CheckMemoryHealth checks memory usage
func CheckMemoryHealth(maxHeapMB uint64) HealthStatus {
	var memStats runtime.MemStats
	runtime.ReadMemStats(&memStats)

	heapMB := memStats.HeapAlloc / 1024 / 1024

	if heapMB > maxHeapMB {
		return HealthStatus{
			Status:  StatusUnhealthy,
			Message: "heap memory exceeds limit",
		}
	}

	// 80% of the limit
	if heapMB > (maxHeapMB * 80 / 100) {
		return HealthStatus{
			Status:  StatusDegraded,
			Message: "heap memory usage high",
		}
	}

	return HealthStatus{Status: StatusHealthy}
}

// DetermineOverallStatus determines overall health from component statuses
func DetermineOverallStatus(components map[string]HealthStatus) string {
	hasDegraded := false

	for _, status := range components {
		switch status.Status {
		case StatusUnhealthy:
			return StatusUnhealthy
		case StatusDegraded:
			hasDegraded = true
		}
	}

	if hasDegraded {
		return StatusDegraded
	}
	return StatusHealthy
}
