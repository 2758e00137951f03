package httpmiddleware

import (
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
)

// Idle clients are pruned once the table grows past pruneAbove, so a kiosk
// fleet behind NAT cannot grow the map without bound.
const (
	pruneAbove = 1024
	pruneIdle  = 10 * time.Minute
)

// ClientLimiter throttles requests per client IP with a token bucket held in
// process memory. Each verification request is one token; the bucket refills
// continuously at the configured per-minute rate up to the burst size.
type ClientLimiter struct {
	burst   float64
	perSec  float64
	mu      sync.Mutex
	clients map[string]*clientBucket
}

type clientBucket struct {
	tokens float64
	seen   time.Time
}

// NewClientLimiter creates a limiter allowing perMinute sustained requests
// with bursts up to burst. A non-positive burst defaults to the sustained
// rate.
func NewClientLimiter(burst, perMinute int) *ClientLimiter {
	if burst <= 0 {
		burst = perMinute
	}
	return &ClientLimiter{
		burst:   float64(burst),
		perSec:  float64(perMinute) / 60,
		clients: make(map[string]*clientBucket),
	}
}

// Middleware returns the gin handler enforcing the per-IP limit.
func (l *ClientLimiter) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		ip := c.ClientIP()
		if ip == "" {
			ip = "unknown"
		}
		if !l.take(ip, time.Now()) {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": "rate limit"})
			return
		}
		c.Next()
	}
}

func (l *ClientLimiter) take(key string, now time.Time) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	b, ok := l.clients[key]
	if !ok {
		if len(l.clients) > pruneAbove {
			l.prune(now)
		}
		l.clients[key] = &clientBucket{tokens: l.burst - 1, seen: now}
		return true
	}

	b.tokens += now.Sub(b.seen).Seconds() * l.perSec
	if b.tokens > l.burst {
		b.tokens = l.burst
	}
	b.seen = now
	if b.tokens < 1 {
		return false
	}
	b.tokens--
	return true
}

// prune drops buckets idle long enough to have fully refilled anyway.
// Caller holds the lock.
func (l *ClientLimiter) prune(now time.Time) {
	for key, b := range l.clients {
		if now.Sub(b.seen) > pruneIdle {
			delete(l.clients, key)
		}
	}
}
