package middlewares

import (
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"

	"github.com/yeremiapane/food-delivery/utils"
)

var errTooManyRequests = errors.New("too many requests, slow down")

// RateLimiter keeps one token bucket per key (client IP by default).
type RateLimiter struct {
	limit rate.Limit
	burst int
	ttl   time.Duration

	mu        sync.Mutex
	limiters  map[string]*visitor
	lastSweep time.Time
	now       func() time.Time
}

type visitor struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// NewRateLimiter allows `requests` per `interval` with the same burst.
func NewRateLimiter(requests int, interval time.Duration) *RateLimiter {
	return &RateLimiter{
		limit:    rate.Every(interval / time.Duration(requests)),
		burst:    requests,
		ttl:      10 * time.Minute,
		limiters: make(map[string]*visitor),
		now:      time.Now,
	}
}

// NewStrictRateLimiter is the login limiter: 5 attempts per minute per IP.
func NewStrictRateLimiter() *RateLimiter {
	return NewRateLimiter(5, time.Minute)
}

func (rl *RateLimiter) Allow(key string) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	v, ok := rl.limiters[key]
	if !ok {
		v = &visitor{limiter: rate.NewLimiter(rl.limit, rl.burst)}
		rl.limiters[key] = v
	}
	v.lastSeen = now

	if rl.lastSweep.IsZero() {
		rl.lastSweep = now
	} else if now.Sub(rl.lastSweep) >= rl.ttl {
		rl.sweep(now)
	}
	return v.limiter.AllowN(now, 1)
}

// sweep drops idle visitors. It runs at most once per ttl. Callers hold mu.
func (rl *RateLimiter) sweep(now time.Time) {
	for k, other := range rl.limiters {
		if now.Sub(other.lastSeen) > rl.ttl {
			delete(rl.limiters, k)
		}
	}
	rl.lastSweep = now
}

func (rl *RateLimiter) RateLimit() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !rl.Allow(c.ClientIP()) {
			utils.RespondErrorCode(c, http.StatusTooManyRequests, "rate_limited", errTooManyRequests)
			c.Abort()
			return
		}
		c.Next()
	}
}

// RateLimitByUser keys on the authenticated user, falling back to the client IP.
func (rl *RateLimiter) RateLimitByUser() gin.HandlerFunc {
	return func(c *gin.Context) {
		key := c.ClientIP()
		if id, ok := c.Get(CtxUserID); ok {
			key = "user:" + utils.FormatID(id.(uint))
		}
		if !rl.Allow(key) {
			utils.RespondErrorCode(c, http.StatusTooManyRequests, "rate_limited", errTooManyRequests)
			c.Abort()
			return
		}
		c.Next()
	}
}
