// Package middleware contains shared Gin middleware used by the HTTP layer.
//
// This file implements the per-operator token-bucket limiter that sits in
// front of the redemption API. Scanner stations identify themselves with
// X-User-ID, so a misbehaving station (a stuck trigger, a replay loop) is
// throttled without affecting the other counters in the store. Requests
// without an operator identity share a bucket per client IP.
//
// Buckets live in process memory; running several replicas multiplies the
// effective limit by the replica count.
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

// KeyFunc maps a request to the identity whose bucket it draws from.
type KeyFunc func(*gin.Context) string

// KeyByOperator keys buckets by the authenticated user ("userID" in the Gin
// context), then by the X-User-ID operator header, then by client IP.
func KeyByOperator() KeyFunc {
	return func(c *gin.Context) string {
		if id, ok := OperatorID(c); ok {
			return "op:" + id
		}
		return "ip:" + c.ClientIP()
	}
}

type bucket struct {
	lim      *rate.Limiter
	lastSeen time.Time
}

// RateLimiter hands out one token bucket per key. Idle buckets are dropped
// every sweepEvery lookups. Safe for concurrent use.
type RateLimiter struct {
	limit rate.Limit
	burst int
	key   KeyFunc

	// exempt holds route patterns that are never limited.
	exempt map[string]struct{}

	mu         sync.Mutex
	buckets    map[string]*bucket
	idleTTL    time.Duration
	lookups    int
	sweepEvery int
}

// NewRateLimiter returns a limiter refilling rps tokens per second up to
// burst (coerced to at least 1), keyed by key.
func NewRateLimiter(rps float64, burst int, key KeyFunc) *RateLimiter {
	if burst < 1 {
		burst = 1
	}
	if key == nil {
		key = KeyByOperator()
	}
	return &RateLimiter{
		limit:      rate.Limit(rps),
		burst:      burst,
		key:        key,
		exempt:     map[string]struct{}{},
		buckets:    make(map[string]*bucket),
		idleTTL:    10 * time.Minute,
		sweepEvery: 5000,
	}
}

// Exempt excludes route patterns (as reported by c.FullPath) from limiting.
// Stripe retries webhooks on its own schedule, so the webhook route is
// normally exempt.
func (rl *RateLimiter) Exempt(patterns ...string) *RateLimiter {
	for _, p := range patterns {
		rl.exempt[p] = struct{}{}
	}
	return rl
}

// limiterFor returns the bucket for key, creating it on first use.
func (rl *RateLimiter) limiterFor(key string, now time.Time) *rate.Limiter {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	rl.lookups++
	if rl.lookups >= rl.sweepEvery {
		rl.lookups = 0
		for k, b := range rl.buckets {
			if now.Sub(b.lastSeen) >= rl.idleTTL {
				delete(rl.buckets, k)
			}
		}
	}

	b, ok := rl.buckets[key]
	if !ok {
		b = &bucket{lim: rate.NewLimiter(rl.limit, rl.burst)}
		rl.buckets[key] = b
	}
	b.lastSeen = now
	return b.lim
}

// IsRateBypass reports whether IdempotencyValidator found a stored response
// for this request. Replays do not consume tokens.
func IsRateBypass(c *gin.Context) bool {
	v, ok := c.Get(ctxKeyRateBypass)
	if !ok {
		return false
	}
	b, _ := v.(bool)
	return b
}

// Handler enforces the limits. A throttled request gets 429 with a
// Retry-After header set to the whole seconds until a token is available:
//
//	{"request_id":"...","code":"rate_limited","message":"rate limit exceeded"}
func (rl *RateLimiter) Handler() gin.HandlerFunc {
	return func(c *gin.Context) {
		if _, ok := rl.exempt[c.FullPath()]; ok || IsRateBypass(c) {
			c.Next()
			return
		}

		now := time.Now()
		res := rl.limiterFor(rl.key(c), now).ReserveN(now, 1)
		delay := time.Duration(math.MaxInt64)
		if res.OK() {
			delay = res.DelayFrom(now)
		}
		if delay == 0 {
			c.Next()
			return
		}
		res.CancelAt(now)

		c.Header("Retry-After", retryAfterSeconds(delay))
		c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
			"request_id": c.Writer.Header().Get("X-Request-ID"),
			"code":       "rate_limited",
			"message":    "rate limit exceeded",
		})
	}
}

// retryAfterSeconds rounds d up to whole seconds, clamped to [1, 60].
func retryAfterSeconds(d time.Duration) string {
	s := int64(math.Ceil(d.Seconds()))
	if s < 1 {
		s = 1
	}
	if s > 60 {
		s = 60
	}
	return strconv.FormatInt(s, 10)
}
