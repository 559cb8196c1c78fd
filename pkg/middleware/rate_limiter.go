package middleware

import (
	"context"
	"math"
	"strconv"
	"sync"
	"time"

	"pinkchat/backend/pkg/errors"
	"pinkchat/backend/pkg/logger"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"
)

// RateLimiterOptions configures the per-key token buckets guarding /api
type RateLimiterOptions struct {
	Limit rate.Limit
	Burst int
	// IdleTTL is how long an unused bucket is kept before eviction
	IdleTTL time.Duration
	// KeyFunc picks the bucket for a request; client IP when nil
	KeyFunc func(*gin.Context) string
}

// DefaultRateLimiterOptions matches the RATE_LIMIT / RATE_LIMIT_BURST defaults
func DefaultRateLimiterOptions() RateLimiterOptions {
	return RateLimiterOptions{
		Limit:   5,
		Burst:   10,
		IdleTTL: time.Hour,
	}
}

type bucket struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// RateLimiter throttles REST calls per key. WebSocket events have their own
// per-connection limiter in internal/ws.
type RateLimiter struct {
	mu      sync.Mutex
	opts    RateLimiterOptions
	buckets map[string]*bucket
	log     *logger.Logger
	now     func() time.Time
}

// NewRateLimiter creates a limiter; the first options value, if any, replaces the defaults
func NewRateLimiter(log *logger.Logger, options ...RateLimiterOptions) *RateLimiter {
	opts := DefaultRateLimiterOptions()
	if len(options) > 0 {
		opts = options[0]
	}
	if opts.KeyFunc == nil {
		opts.KeyFunc = func(c *gin.Context) string { return c.ClientIP() }
	}
	if opts.IdleTTL <= 0 {
		opts.IdleTTL = time.Hour
	}

	return &RateLimiter{
		opts:    opts,
		buckets: make(map[string]*bucket),
		log:     log,
		now:     time.Now,
	}
}

// Middleware rejects requests over budget with 429 and a Retry-After hint
func (r *RateLimiter) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		key := r.opts.KeyFunc(c)
		lim := r.bucketFor(key)

		res := lim.ReserveN(r.now(), 1)
		if delay := res.DelayFrom(r.now()); !res.OK() || delay > 0 {
			res.Cancel()
			logger.FromGin(c).Warn("rate limit exceeded",
				"client", key,
				"path", c.Request.URL.Path,
				"retry_after", delay.String(),
			)

			c.Header("Retry-After", strconv.Itoa(retryAfterSeconds(delay)))
			c.Header("X-RateLimit-Limit", strconv.Itoa(r.opts.Burst))
			c.Header("X-RateLimit-Remaining", "0")
			_ = c.Error(errors.NewTooManyRequestsError("too many requests, retry later"))
			c.Abort()
			return
		}

		c.Header("X-RateLimit-Limit", strconv.Itoa(r.opts.Burst))
		c.Header("X-RateLimit-Remaining", strconv.Itoa(int(math.Max(0, lim.TokensAt(r.now())))))
		c.Next()
	}
}

// Run evicts idle buckets until ctx is cancelled
func (r *RateLimiter) Run(ctx context.Context) {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := r.evictIdle(); n > 0 {
				r.log.Debug("evicted idle rate limit buckets", "count", n)
			}
		}
	}
}

func (r *RateLimiter) bucketFor(key string) *rate.Limiter {
	r.mu.Lock()
	defer r.mu.Unlock()

	b, ok := r.buckets[key]
	if !ok {
		b = &bucket{limiter: rate.NewLimiter(r.opts.Limit, r.opts.Burst)}
		r.buckets[key] = b
	}
	b.lastSeen = r.now()
	return b.limiter
}

func (r *RateLimiter) evictIdle() int {
	r.mu.Lock()
	defer r.mu.Unlock()

	cutoff := r.now().Add(-r.opts.IdleTTL)
	evicted := 0
	for k, b := range r.buckets {
		if b.lastSeen.Before(cutoff) {
			delete(r.buckets, k)
			evicted++
		}
	}
	return evicted
}

func retryAfterSeconds(d time.Duration) int {
	if d <= 0 || d == rate.InfDuration {
		return 1
	}
	return int(math.Ceil(d.Seconds()))
}
