package middleware

import (
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"

	"github.com/oakandloom/storefront/utils"
)

const limiterIdleTTL = 5 * time.Minute

type clientLimiter struct {
	limiter *rate.Limiter
	expires time.Time
}

// RateLimiter is a per-client-IP token bucket.
type RateLimiter struct {
	limit rate.Limit
	burst int

	now func() time.Time

	mu        sync.Mutex
	clients   map[string]*clientLimiter
	lastSweep time.Time
}

// NewRateLimiter allows perMinute requests per minute per IP, bursting to half of that.
func NewRateLimiter(perMinute int) *RateLimiter {
	perMinute = max(perMinute, 1)
	return &RateLimiter{
		limit:   rate.Every(time.Minute / time.Duration(perMinute)),
		burst:   max(perMinute/2, 1),
		now:     time.Now,
		clients: map[string]*clientLimiter{},
	}
}

// Middleware rejects requests over the limit with 429.
func (rl *RateLimiter) Middleware() gin.HandlerFunc {
	return func(ctx *gin.Context) {
		if !rl.allow(ctx.ClientIP()) {
			utils.Error(ctx, http.StatusTooManyRequests, 42901, "rate limit exceeded")
			ctx.Abort()
			return
		}
		ctx.Next()
	}
}

func (rl *RateLimiter) allow(key string) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	if now.Sub(rl.lastSweep) >= limiterIdleTTL {
		rl.sweep(now)
	}

	c, ok := rl.clients[key]
	if !ok {
		c = &clientLimiter{limiter: rate.NewLimiter(rl.limit, rl.burst)}
		rl.clients[key] = c
	}
	c.expires = now.Add(limiterIdleTTL)
	return c.limiter.Allow()
}

// sweep drops idle clients. It runs at most once per limiterIdleTTL, so an
// idle entry lives between one and two TTLs.
func (rl *RateLimiter) sweep(now time.Time) {
	for k, c := range rl.clients {
		if now.After(c.expires) {
			delete(rl.clients, k)
		}
	}
	rl.lastSweep = now
}
