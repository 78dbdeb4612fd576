package server

import (
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"
)

// RateLimiter implements a token bucket limiter per client key
type RateLimiter struct {
	rate    rate.Limit
	burst   int
	ttl     time.Duration
	now     func() time.Time
	mu      sync.Mutex
	clients map[string]*clientLimiter
}

type clientLimiter struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// NewRateLimiter allows perMinute requests per client per minute with a burst
// of the same size. It returns nil, which allows everything, when perMinute <= 0.
func NewRateLimiter(perMinute int, ttl time.Duration) *RateLimiter {
	if perMinute <= 0 {
		return nil
	}
	return &RateLimiter{
		rate:    rate.Every(time.Minute / time.Duration(perMinute)),
		burst:   perMinute,
		ttl:     ttl,
		now:     time.Now,
		clients: make(map[string]*clientLimiter),
	}
}

// Allow reports whether a request from key is permitted
func (rl *RateLimiter) Allow(key string) bool {
	if rl == nil {
		return true
	}
	now := rl.now()
	rl.mu.Lock()
	defer rl.mu.Unlock()

	if key == "" {
		key = "unknown"
	}

	entry, ok := rl.clients[key]
	if !ok {
		entry = &clientLimiter{limiter: rate.NewLimiter(rl.rate, rl.burst)}
		rl.clients[key] = entry
	}
	entry.lastSeen = now
	allowed := entry.limiter.AllowN(now, 1)

	if rl.ttl > 0 {
		for k, v := range rl.clients {
			if now.Sub(v.lastSeen) > rl.ttl {
				delete(rl.clients, k)
			}
		}
	}

	return allowed
}

// Middleware rejects over-limit clients with 429
func (rl *RateLimiter) Middleware(trustProxy bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !rl.Allow(ClientIP(c.Request, trustProxy)) {
			c.Header("Retry-After", "60")
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": "Too many requests, please try again later"})
			return
		}
		c.Next()
	}
}

// ClientIP returns the client IP respecting proxy headers when trustProxy is true
func ClientIP(r *http.Request, trustProxy bool) string {
	if trustProxy {
		if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
			if ip := strings.TrimSpace(strings.Split(xff, ",")[0]); ip != "" {
				return ip
			}
		}
		if xrip := r.Header.Get("X-Real-IP"); xrip != "" {
			return strings.TrimSpace(xrip)
		}
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
