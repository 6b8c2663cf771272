package middleware

import (
	"math"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/cleberrangel/minute-allocation-api/internal/logger"
	"github.com/cleberrangel/minute-allocation-api/internal/metrics"
	"github.com/cleberrangel/minute-allocation-api/internal/model"
	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"
)

// RateLimiter aplica um token bucket por chave e remove entradas ociosas
type RateLimiter struct {
	limit   rate.Limit
	burst   int
	mu      sync.Mutex
	byKey   map[string]*limiterEntry
	hits    uint64
	idleTTL time.Duration
}

type limiterEntry struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// NewRateLimiter cria um limitador por chave; retorna nil se os parâmetros
// forem inválidos, e um limitador nil permite tudo
func NewRateLimiter(rps float64, burst int, idleTTL time.Duration) *RateLimiter {
	if rps <= 0 || burst <= 0 {
		return nil
	}
	if idleTTL <= 0 {
		idleTTL = 10 * time.Minute
	}
	return &RateLimiter{
		limit:   rate.Limit(rps),
		burst:   burst,
		byKey:   make(map[string]*limiterEntry),
		idleTTL: idleTTL,
	}
}

// Allow consome um token da chave em now. Quando recusa, retorna também o
// tempo até o próximo token.
func (l *RateLimiter) Allow(key string, now time.Time) (bool, time.Duration) {
	if l == nil {
		return true, 0
	}
	key = strings.TrimSpace(key)
	if key == "" {
		return true, 0
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	e, ok := l.byKey[key]
	if !ok {
		e = &limiterEntry{limiter: rate.NewLimiter(l.limit, l.burst)}
		l.byKey[key] = e
	}
	e.lastSeen = now

	reservation := e.limiter.ReserveN(now, 1)
	delay := reservation.DelayFrom(now)
	allowed := delay == 0
	if !allowed {
		reservation.CancelAt(now)
	}

	l.hits++
	if l.hits%512 == 0 {
		l.evictLocked(now)
	}

	return allowed, delay
}

func (l *RateLimiter) evictLocked(now time.Time) {
	cutoff := now.Add(-l.idleTTL)
	for k, v := range l.byKey {
		if v.lastSeen.Before(cutoff) {
			delete(l.byKey, k)
		}
	}
}

// Size retorna o número de chaves acompanhadas
func (l *RateLimiter) Size() int {
	if l == nil {
		return 0
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.byKey)
}

// RateLimit recusa com 429 requisições acima do limite por IP do cliente
func RateLimit(limiter *RateLimiter, m *metrics.Metrics) gin.HandlerFunc {
	return func(c *gin.Context) {
		allowed, retryAfter := limiter.Allow(c.ClientIP(), time.Now())
		if allowed {
			c.Next()
			return
		}

		if m != nil {
			m.IncrementRateLimited()
		}
		logger.Audit(c.Request.Context(), logger.AuditEvent{
			Action:   logger.AuditActionRateLimit,
			Resource: "api",
			Path:     c.Request.URL.Path,
			Method:   c.Request.Method,
			ClientIP: c.ClientIP(),
		})

		seconds := int(math.Ceil(retryAfter.Seconds()))
		if seconds < 1 {
			seconds = 1
		}
		c.Header("Retry-After", strconv.Itoa(seconds))
		c.AbortWithStatusJSON(http.StatusTooManyRequests, model.ErrorResponse{
			Success: false,
			Error:   model.ErrRateLimited.Error(),
			Code:    "RATE_LIMITED",
		})
	}
}
