package middleware

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/jordanlanch/rivalscope/pkg/models"
	"github.com/labstack/echo/v4"
	"golang.org/x/time/rate"
)

// RateLimiter keeps one token bucket per client key
type RateLimiter struct {
	visitors map[string]*visitor
	mu       sync.Mutex
	r        rate.Limit // requests per second
	b        int        // burst
	now      func() time.Time
}

type visitor struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// NewRateLimiter creates a new rate limiter
func NewRateLimiter(requestsPerMinute, burst int) *RateLimiter {
	return &RateLimiter{
		visitors: make(map[string]*visitor),
		r:        rate.Limit(float64(requestsPerMinute) / 60.0),
		b:        burst,
		now:      time.Now,
	}
}

// Allow consumes one token from the bucket of key
func (rl *RateLimiter) Allow(key string) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	v, exists := rl.visitors[key]
	if !exists {
		v = &visitor{limiter: rate.NewLimiter(rl.r, rl.b)}
		rl.visitors[key] = v
	}
	v.lastSeen = rl.now()
	return v.limiter.AllowN(v.lastSeen, 1)
}

// Prune drops buckets idle for longer than idle and returns how many were removed
func (rl *RateLimiter) Prune(idle time.Duration) int {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	cutoff := rl.now().Add(-idle)
	removed := 0
	for key, v := range rl.visitors {
		if v.lastSeen.Before(cutoff) {
			delete(rl.visitors, key)
			removed++
		}
	}
	return removed
}

// RunCleanup prunes idle buckets every interval until ctx is done
func (rl *RateLimiter) RunCleanup(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			rl.Prune(interval)
		}
	}
}

// Middleware creates an Echo middleware for rate limiting
func (rl *RateLimiter) Middleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if !rl.Allow(clientKey(c)) {
				return tooManyRequests(c)
			}
			return next(c)
		}
	}
}

// EndpointRateLimiter applies stricter limits to selected routes.
// Routes without a configured limit pass through.
type EndpointRateLimiter struct {
	limiters map[string]*RateLimiter
	mu       sync.RWMutex
}

// NewEndpointRateLimiter creates an empty endpoint limiter
func NewEndpointRateLimiter() *EndpointRateLimiter {
	return &EndpointRateLimiter{limiters: make(map[string]*RateLimiter)}
}

// SetEndpointLimit sets the limit for "METHOD /route/:pattern"
func (el *EndpointRateLimiter) SetEndpointLimit(method, path string, requestsPerMinute, burst int) {
	el.mu.Lock()
	defer el.mu.Unlock()
	el.limiters[method+" "+path] = NewRateLimiter(requestsPerMinute, burst)
}

// Prune drops idle buckets of every endpoint
func (el *EndpointRateLimiter) Prune(idle time.Duration) int {
	el.mu.RLock()
	defer el.mu.RUnlock()
	removed := 0
	for _, rl := range el.limiters {
		removed += rl.Prune(idle)
	}
	return removed
}

// RunCleanup prunes idle buckets every interval until ctx is done
func (el *EndpointRateLimiter) RunCleanup(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			el.Prune(interval)
		}
	}
}

// Middleware creates middleware with endpoint-specific limits
func (el *EndpointRateLimiter) Middleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			el.mu.RLock()
			limiter, exists := el.limiters[c.Request().Method+" "+c.Path()]
			el.mu.RUnlock()

			if exists && !limiter.Allow(clientKey(c)) {
				return tooManyRequests(c)
			}
			return next(c)
		}
	}
}

// clientKey buckets authenticated callers by user and anonymous ones by IP
func clientKey(c echo.Context) string {
	if userID, ok := c.Get("user_id").(string); ok && userID != "" {
		return "user:" + userID
	}
	ip := c.RealIP()
	if ip == "" {
		ip = c.Request().RemoteAddr
	}
	return "ip:" + ip
}

func tooManyRequests(c echo.Context) error {
	return c.JSON(http.StatusTooManyRequests, models.ErrorResponse{
		Error:   "rate_limit_exceeded",
		Message: "Too many requests. Please try again later.",
	})
}
