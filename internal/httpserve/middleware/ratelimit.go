package middleware

import (
	"fmt"
	"net/http"
	"strings"
	"sync"

	"github.com/labstack/echo/v4"
	"golang.org/x/time/rate"

	"github.com/roofdocs/nexus/internal/server"
	"github.com/roofdocs/nexus/pkg/logger"
)

// RateLimit applies per-user sliding-window limits, keyed by user id when
// authenticated and client IP otherwise. The persistent store is preferred;
// without it an in-memory token bucket takes over. Store errors fail open.
func RateLimit(a *server.App) echo.MiddlewareFunc {
	memory := newMemoryLimiter(a.Config.RateLimit.PerMinute)

	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if skipRateLimit(c.Path()) {
				return next(c)
			}

			id := identifier(c)

			if a.Limiter != nil {
				allowed, err := a.Limiter.Allow(id)
				if err != nil {
					logger.Warn("Rate limit store error, allowing request", "error", err)
					return next(c)
				}
				if !allowed {
					retry := a.Limiter.RetryAfter(id)
					c.Response().Header().Set("Retry-After", fmt.Sprintf("%d", retry))
					return echo.NewHTTPError(http.StatusTooManyRequests, "rate limit exceeded")
				}
				return next(c)
			}

			if !memory.allow(id) {
				c.Response().Header().Set("Retry-After", "60")
				return echo.NewHTTPError(http.StatusTooManyRequests, "rate limit exceeded")
			}
			return next(c)
		}
	}
}

func skipRateLimit(path string) bool {
	return path == "/" || path == "/metrics" || strings.HasPrefix(path, "/health")
}

func identifier(c echo.Context) string {
	if user := CurrentUser(c); user != nil {
		return "user:" + user.ID
	}
	return "ip:" + c.RealIP()
}

// memoryLimiter is the fallback when the persistent window store could not
// be opened. Per-minute budget only; restarts reset the windows.
type memoryLimiter struct {
	mu        sync.Mutex
	buckets   map[string]*rate.Limiter
	perMinute int
}

func newMemoryLimiter(perMinute int) *memoryLimiter {
	if perMinute <= 0 {
		perMinute = 60
	}
	return &memoryLimiter{
		buckets:   make(map[string]*rate.Limiter),
		perMinute: perMinute,
	}
}

func (m *memoryLimiter) allow(id string) bool {
	m.mu.Lock()
	limiter, ok := m.buckets[id]
	if !ok {
		limiter = rate.NewLimiter(rate.Limit(float64(m.perMinute)/60.0), m.perMinute)
		m.buckets[id] = limiter
	}
	m.mu.Unlock()
	return limiter.Allow()
}
