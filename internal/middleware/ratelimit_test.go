package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/cleberrangel/minute-allocation-api/internal/metrics"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
)

func TestRateLimiterBurstAndRefill(t *testing.T) {
	l := NewRateLimiter(2, 3, time.Minute)
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	for i := 0; i < 3; i++ {
		allowed, _ := l.Allow("10.0.0.1", now)
		assert.True(t, allowed, "burst token %d", i)
	}

	allowed, retry := l.Allow("10.0.0.1", now)
	assert.False(t, allowed)
	assert.Equal(t, 500*time.Millisecond, retry)

	// a refused request does not consume a token
	allowed, _ = l.Allow("10.0.0.1", now.Add(500*time.Millisecond))
	assert.True(t, allowed)

	// other keys have their own bucket
	allowed, _ = l.Allow("10.0.0.2", now)
	assert.True(t, allowed)
	assert.Equal(t, 2, l.Size())
}

func TestRateLimiterNilAllowsEverything(t *testing.T) {
	l := NewRateLimiter(0, 10, time.Minute)
	assert.Nil(t, l)

	allowed, _ := l.Allow("anyone", time.Now())
	assert.True(t, allowed)
	assert.Zero(t, l.Size())
}

func TestRateLimiterEvictsIdleKeys(t *testing.T) {
	l := NewRateLimiter(100, 100, time.Minute)
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	l.Allow("idle", start)
	later := start.Add(2 * time.Minute)
	for i := 0; i < 511; i++ {
		l.Allow("busy", later)
	}
	assert.Equal(t, 1, l.Size())
}

func TestRateLimitMiddleware(t *testing.T) {
	m := metrics.New()
	r := gin.New()
	r.Use(RateLimit(NewRateLimiter(0.001, 1, time.Minute), m))
	r.POST("/allocations", func(c *gin.Context) { c.Status(http.StatusCreated) })

	first := doRequest(r, httptest.NewRequest(http.MethodPost, "/allocations", nil))
	assert.Equal(t, http.StatusCreated, first.Code)

	second := doRequest(r, httptest.NewRequest(http.MethodPost, "/allocations", nil))
	assert.Equal(t, http.StatusTooManyRequests, second.Code)
	assert.NotEmpty(t, second.Header().Get("Retry-After"))
	assert.Contains(t, second.Body.String(), "RATE_LIMITED")
	assert.Equal(t, int64(1), m.Snapshot().Security.RateLimited)
}
