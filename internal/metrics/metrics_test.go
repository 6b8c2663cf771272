package metrics

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakePinger struct{ err error }

func (f fakePinger) PingContext(context.Context) error { return f.err }

func TestSnapshotAggregatesAllocationCounters(t *testing.T) {
	m := New()
	m.RecordAllocation(3, 100, 40*time.Microsecond)
	m.RecordAllocation(2, 20, 20*time.Microsecond)
	m.RecordPreview(30 * time.Microsecond)
	m.IncrementInvalid()
	m.IncrementInfeasible()
	m.IncrementInfeasible()
	m.IncrementRequests(true, 10)
	m.IncrementRequests(false, 30)
	m.TrackEndpoint("/api/v1/allocations", "POST", 201, 10)
	m.TrackEndpoint("/api/v1/allocations", "POST", 422, 30)

	s := m.Snapshot()
	assert.Equal(t, int64(2), s.Allocations.Created)
	assert.Equal(t, int64(1), s.Allocations.Previewed)
	assert.Equal(t, int64(5), s.Allocations.TasksAllocated)
	assert.Equal(t, int64(120), s.Allocations.MinutesAllocated)
	assert.Equal(t, int64(1), s.Allocations.Invalid)
	assert.Equal(t, int64(2), s.Allocations.Infeasible)
	assert.InDelta(t, 30.0, s.Allocations.AvgEngineMicros, 1e-9)
	assert.InDelta(t, 20.0, s.Requests.AvgLatencyMs, 1e-9)

	endpoint := s.Endpoints["POST /api/v1/allocations"]
	assert.Equal(t, int64(2), endpoint.Requests)
	assert.InDelta(t, 50.0, endpoint.ErrorRate, 1e-9)
}

func TestConcurrentCounters(t *testing.T) {
	m := New()
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			m.RecordAllocation(1, 10, time.Microsecond)
			m.TrackEndpoint("/x", "GET", 200, 1)
		}()
	}
	wg.Wait()

	assert.Equal(t, int64(50), m.Snapshot().Allocations.Created)
	assert.Equal(t, int64(50), m.GetEndpointMetrics()["GET /x"].Requests)
}

func TestCollectorExportsCounters(t *testing.T) {
	m := New()
	m.RecordAllocation(4, 60, time.Microsecond)
	m.IncrementWSConnection()

	registry := NewRegistry(m)
	families, err := registry.Gather()
	require.NoError(t, err)

	values := make(map[string]float64)
	for _, family := range families {
		if !strings.HasPrefix(family.GetName(), namespace) {
			continue
		}
		metric := family.GetMetric()[0]
		switch {
		case metric.GetCounter() != nil:
			values[family.GetName()] = metric.GetCounter().GetValue()
		case metric.GetGauge() != nil:
			values[family.GetName()] = metric.GetGauge().GetValue()
		}
	}

	assert.Equal(t, 1.0, values["minute_allocation_allocations_created_total"])
	assert.Equal(t, 60.0, values["minute_allocation_minutes_allocated_total"])
	assert.Equal(t, 1.0, values["minute_allocation_websocket_connections"])
	assert.Equal(t, 0.0, values["minute_allocation_allocations_infeasible_total"])
}

func TestHealthChecks(t *testing.T) {
	ctx := context.Background()

	assert.Equal(t, StatusUnhealthy, CheckDatabaseHealth(ctx, nil).Status)
	assert.Equal(t, StatusHealthy, CheckDatabaseHealth(ctx, fakePinger{}).Status)

	down := CheckDatabaseHealth(ctx, fakePinger{err: errors.New("connection refused")})
	assert.Equal(t, StatusUnhealthy, down.Status)
	assert.Equal(t, "connection refused", down.Message)

	assert.Equal(t, StatusHealthy, CheckMemoryHealth(1<<20).Status)

	assert.Equal(t, StatusDegraded, DetermineOverallStatus(map[string]HealthStatus{
		"a": {Status: StatusHealthy},
		"b": {Status: StatusDegraded},
	}))
	assert.Equal(t, StatusUnhealthy, DetermineOverallStatus(map[string]HealthStatus{
		"a": {Status: StatusDegraded},
		"b": {Status: StatusUnhealthy},
	}))
}
