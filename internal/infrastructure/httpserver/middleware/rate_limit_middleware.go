package middleware

import (
	"net/http"
	"sync"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"
)

const (
	limiterIdleTTL       = 10 * time.Minute
	limiterSweepInterval = 5 * time.Minute
)

type clientLimiter struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// RateLimitMiddleware is a per-client token bucket in front of the API. It
// only absorbs request floods; the per-identity quotas live in the services.
type RateLimitMiddleware struct {
	mu       sync.Mutex
	limiters map[string]*clientLimiter
	r        rate.Limit
	burst    int
	logger   *logrus.Logger
	stop     chan struct{}
	stopOnce sync.Once
}

func NewRateLimitMiddleware(r rate.Limit, burst int, logger *logrus.Logger) *RateLimitMiddleware {
	if r <= 0 {
		r = 5
	}
	if burst <= 0 {
		burst = 10
	}
	m := &RateLimitMiddleware{
		limiters: make(map[string]*clientLimiter),
		r:        r,
		burst:    burst,
		logger:   logger,
		stop:     make(chan struct{}),
	}
	go m.sweep()
	return m
}

func (m *RateLimitMiddleware) get(key string) *rate.Limiter {
	m.mu.Lock()
	defer m.mu.Unlock()
	if cl, ok := m.limiters[key]; ok {
		cl.lastSeen = time.Now()
		return cl.limiter
	}
	l := rate.NewLimiter(m.r, m.burst)
	m.limiters[key] = &clientLimiter{limiter: l, lastSeen: time.Now()}
	return l
}

func (m *RateLimitMiddleware) sweep() {
	ticker := time.NewTicker(limiterSweepInterval)
	defer ticker.Stop()
	for {
		select {
		case <-m.stop:
			return
		case <-ticker.C:
			m.mu.Lock()
			for key, cl := range m.limiters {
				if time.Since(cl.lastSeen) > limiterIdleTTL {
					delete(m.limiters, key)
				}
			}
			m.mu.Unlock()
		}
	}
}

// Stop ends the background sweep.
func (m *RateLimitMiddleware) Stop() {
	m.stopOnce.Do(func() { close(m.stop) })
}

func (m *RateLimitMiddleware) Handler() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if !m.get(c.RealIP()).Allow() {
				if m.logger != nil {
					m.logger.WithField("path", c.Path()).Debug("request throttled")
				}
				c.Response().Header().Set("Retry-After", "1")
				return c.JSON(http.StatusTooManyRequests, map[string]string{"error": "rate_limited", "message": "too many requests"})
			}
			return next(c)
		}
	}
}
