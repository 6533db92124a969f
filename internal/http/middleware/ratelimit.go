// Package middleware contains shared Gin middleware used by the HTTP layer.
//
// This file implements the optional edge rate limiter: an in-memory
// token bucket per client IP (golang.org/x/time/rate) with opportunistic
// eviction of idle buckets. It is process-local and exists for abuse
// control only; the router installs it only when RATE_RPS > 0.
package middleware

import (
	"math"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"
)

const (
	// gcEvery is how many lookups pass between idle-bucket sweeps.
	gcEvery = 1000
	// idleTTL is how long a bucket may go unused before it is evicted.
	idleTTL = 10 * time.Minute
)

// KeyFunc selects the identity used to key a rate-limit bucket.
type KeyFunc func(*gin.Context) string

// KeyByIP buckets requests by client IP.
func KeyByIP(c *gin.Context) string { return "ip:" + c.ClientIP() }

type visitor struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// RateLimiter is a per-key token-bucket limiter. It is safe for concurrent
// use.
type RateLimiter struct {
	rps   rate.Limit
	burst int
	keyFn KeyFunc
	now   func() time.Time

	mu       sync.Mutex
	visitors map[string]*visitor
	lookups  uint64
}

// NewRateLimiter builds a limiter refilling rps tokens per second up to burst
// (coerced to at least 1). A nil keyFn buckets by client IP.
func NewRateLimiter(rps float64, burst int, keyFn KeyFunc) *RateLimiter {
	if burst <= 0 {
		burst = 1
	}
	if keyFn == nil {
		keyFn = KeyByIP
	}
	return &RateLimiter{
		rps:      rate.Limit(rps),
		burst:    burst,
		keyFn:    keyFn,
		now:      time.Now,
		visitors: make(map[string]*visitor),
	}
}

// limiter returns the bucket for key. Idle buckets are swept before the
// lookup so a stale bucket can be evicted even when it is the one requested.
func (rl *RateLimiter) limiter(key string, now time.Time) *rate.Limiter {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	rl.lookups++
	if rl.lookups%gcEvery == 0 {
		for k, v := range rl.visitors {
			if now.Sub(v.lastSeen) >= idleTTL {
				delete(rl.visitors, k)
			}
		}
	}

	if v, ok := rl.visitors[key]; ok {
		v.lastSeen = now
		return v.limiter
	}
	lim := rate.NewLimiter(rl.rps, rl.burst)
	rl.visitors[key] = &visitor{limiter: lim, lastSeen: now}
	return lim
}

// Len reports the number of live buckets.
func (rl *RateLimiter) Len() int {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	return len(rl.visitors)
}

// Handler returns the Gin middleware. Rejected requests get 429 in the
// standard error envelope and a Retry-After header with the whole seconds
// until the next token.
func (rl *RateLimiter) Handler() gin.HandlerFunc {
	return func(c *gin.Context) {
		now := rl.now()
		lim := rl.limiter(rl.keyFn(c), now)

		r := lim.ReserveN(now, 1)
		if r.OK() && r.DelayFrom(now) == 0 {
			c.Next()
			return
		}
		retry := 1
		if r.OK() {
			retry = int(math.Ceil(r.DelayFrom(now).Seconds()))
			r.CancelAt(now)
		}

		c.Header("Retry-After", strconv.Itoa(retry))
		c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
			"request_id": RequestIDFrom(c),
			"code":       "too_many_requests",
			"message":    "rate limit exceeded",
		})
	}
}
