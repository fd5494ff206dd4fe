package middleware

import (
	"math"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"

	"github.com/turtacn/topk-planner/pkg/errors"
)

// RateLimitConfig holds configuration for the rate limit middleware.
type RateLimitConfig struct {
	RequestsPerSecond float64
	Burst             int
	// SkipPaths bypass the limiter.
	SkipPaths []string
	// IdleTTL drops per-client limiters unused for this long.
	IdleTTL time.Duration
}

// DefaultRateLimitConfig returns 10 rps with a burst of 20 per client.
func DefaultRateLimitConfig() RateLimitConfig {
	return RateLimitConfig{
		RequestsPerSecond: 10,
		Burst:             20,
		SkipPaths:         []string{"/healthz", "/readyz", "/metrics"},
		IdleTTL:           10 * time.Minute,
	}
}

type clientLimiter struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// RateLimiter keeps one token bucket per client IP.  Limits can be changed
// at runtime with SetLimits; existing buckets are updated in place.
type RateLimiter struct {
	mu      sync.Mutex
	limit   rate.Limit
	burst   int
	idleTTL time.Duration
	clients map[string]*clientLimiter
	swept   time.Time
	skip    map[string]bool
	now     func() time.Time
}

// NewRateLimiter builds a limiter from cfg.
func NewRateLimiter(cfg RateLimitConfig) *RateLimiter {
	if cfg.IdleTTL <= 0 {
		cfg.IdleTTL = 10 * time.Minute
	}
	rl := &RateLimiter{
		idleTTL: cfg.IdleTTL,
		clients: make(map[string]*clientLimiter),
		skip:    make(map[string]bool, len(cfg.SkipPaths)),
		now:     time.Now,
	}
	for _, p := range cfg.SkipPaths {
		rl.skip[p] = true
	}
	rl.SetLimits(cfg.RequestsPerSecond, cfg.Burst)
	return rl
}

// SetLimits changes the rate and burst of every client.
func (rl *RateLimiter) SetLimits(rps float64, burst int) {
	if burst < 1 {
		burst = 1
	}
	limit := rate.Limit(rps)
	if rps <= 0 {
		limit = rate.Inf
	}

	rl.mu.Lock()
	defer rl.mu.Unlock()
	rl.limit, rl.burst = limit, burst
	now := rl.now()
	for _, cl := range rl.clients {
		cl.limiter.SetLimitAt(now, limit)
		cl.limiter.SetBurstAt(now, burst)
	}
}

// Allow takes a token for key.  When refused it also returns how long the
// client should wait.
func (rl *RateLimiter) Allow(key string) (bool, time.Duration) {
	rl.mu.Lock()
	now := rl.now()
	rl.evictIdle(now)
	cl, ok := rl.clients[key]
	if !ok {
		cl = &clientLimiter{limiter: rate.NewLimiter(rl.limit, rl.burst)}
		rl.clients[key] = cl
	}
	cl.lastSeen = now
	limiter := cl.limiter
	rl.mu.Unlock()

	r := limiter.ReserveN(now, 1)
	if !r.OK() {
		return false, time.Second
	}
	delay := r.DelayFrom(now)
	if delay == 0 {
		return true, 0
	}
	r.CancelAt(now)
	return false, delay
}

func (rl *RateLimiter) evictIdle(now time.Time) {
	if now.Sub(rl.swept) < rl.idleTTL {
		return
	}
	rl.swept = now
	for key, cl := range rl.clients {
		if now.Sub(cl.lastSeen) > rl.idleTTL {
			delete(rl.clients, key)
		}
	}
}

// Middleware rejects over-limit requests with 429 and a Retry-After header.
func (rl *RateLimiter) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if rl.skip[c.Request.URL.Path] {
			c.Next()
			return
		}
		ok, wait := rl.Allow(c.ClientIP())
		if ok {
			c.Next()
			return
		}
		secs := int(math.Ceil(wait.Seconds()))
		if secs < 1 {
			secs = 1
		}
		c.Header("Retry-After", strconv.Itoa(secs))
		c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
			"code":       errors.ErrCodeTooManyRequests,
			"message":    errors.DefaultMessageForCode(errors.ErrCodeTooManyRequests),
			"request_id": GetRequestID(c),
		})
	}
}
