package metrics

import (
	"sync/atomic"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

const namespace = "minute_allocation"

type counterDesc struct {
	desc      *prometheus.Desc
	valueType prometheus.ValueType
	value     func(m *Metrics) int64
}

// Collector exposes Metrics counters to prometheus without keeping a second
// copy of them
type Collector struct {
	metrics *Metrics
	descs   []counterDesc
	avgEng  *prometheus.Desc
}

// NewCollector creates a collector reading from m
func NewCollector(m *Metrics) *Collector {
	counter := func(name, help string, value func(m *Metrics) int64) counterDesc {
		return counterDesc{
			desc:      prometheus.NewDesc(prometheus.BuildFQName(namespace, "", name), help, nil, nil),
			valueType: prometheus.CounterValue,
			value:     value,
		}
	}
	gauge := func(name, help string, value func(m *Metrics) int64) counterDesc {
		d := counter(name, help, value)
		d.valueType = prometheus.GaugeValue
		return d
	}

	return &Collector{
		metrics: m,
		descs: []counterDesc{
			counter("http_requests_total", "HTTP requests served.", func(m *Metrics) int64 { return atomic.LoadInt64(&m.TotalRequests) }),
			counter("http_requests_failed_total", "HTTP requests answered with status >= 400.", func(m *Metrics) int64 { return atomic.LoadInt64(&m.FailedRequests) }),
			counter("allocations_created_total", "Allocations computed and stored.", func(m *Metrics) int64 { return atomic.LoadInt64(&m.AllocationsCreated) }),
			counter("allocations_previewed_total", "Allocations computed without storing.", func(m *Metrics) int64 { return atomic.LoadInt64(&m.AllocationsPreviewed) }),
			counter("allocations_invalid_total", "Requests rejected as invalid input.", func(m *Metrics) int64 { return atomic.LoadInt64(&m.AllocationsInvalid) }),
			counter("allocations_infeasible_total", "Requests whose bounds cannot be satisfied.", func(m *Metrics) int64 { return atomic.LoadInt64(&m.AllocationsInfeasible) }),
			counter("allocations_deleted_total", "Stored allocations removed.", func(m *Metrics) int64 { return atomic.LoadInt64(&m.AllocationsDeleted) }),
			counter("tasks_allocated_total", "Tasks included in stored allocations.", func(m *Metrics) int64 { return atomic.LoadInt64(&m.TasksAllocated) }),
			counter("minutes_allocated_total", "Minutes distributed by stored allocations.", func(m *Metrics) int64 { return atomic.LoadInt64(&m.MinutesAllocated) }),
			counter("exports_total", "Spreadsheets generated.", func(m *Metrics) int64 { return atomic.LoadInt64(&m.ExportsGenerated) }),
			counter("webhooks_delivered_total", "Webhooks delivered.", func(m *Metrics) int64 { return atomic.LoadInt64(&m.WebhooksDelivered) }),
			counter("webhooks_failed_total", "Webhook deliveries that failed.", func(m *Metrics) int64 { return atomic.LoadInt64(&m.WebhooksFailed) }),
			counter("auth_failures_total", "Requests with a missing or wrong token.", func(m *Metrics) int64 { return atomic.LoadInt64(&m.AuthFailures) }),
			counter("rate_limited_total", "Requests refused by the rate limiter.", func(m *Metrics) int64 { return atomic.LoadInt64(&m.RateLimited) }),
			gauge("websocket_connections", "Open websocket connections.", func(m *Metrics) int64 { return atomic.LoadInt64(&m.WSConnections) }),
		},
		avgEng: prometheus.NewDesc(prometheus.BuildFQName(namespace, "", "engine_avg_microseconds"),
			"Average time spent in the allocation engine.", nil, nil),
	}
}

// Describe implements prometheus.Collector
func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	for _, d := range c.descs {
		ch <- d.desc
	}
	ch <- c.avgEng
}

// Collect implements prometheus.Collector
func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	for _, d := range c.descs {
		ch <- prometheus.MustNewConstMetric(d.desc, d.valueType, float64(d.value(c.metrics)))
	}

	avg := 0.0
	if runs := atomic.LoadInt64(&c.metrics.EngineRuns); runs > 0 {
		avg = float64(atomic.LoadInt64(&c.metrics.EngineLatencyMicros)) / float64(runs)
	}
	ch <- prometheus.MustNewConstMetric(c.avgEng, prometheus.GaugeValue, avg)
}

// NewRegistry returns a registry with the application collector plus the
// standard Go runtime and process collectors
func NewRegistry(m *Metrics) *prometheus.Registry {
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		NewCollector(m),
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return registry
}
