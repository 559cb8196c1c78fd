package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"pinkchat/backend/pkg/errors"
	"pinkchat/backend/pkg/logger"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
)

func TestRateLimiterRejectsBurstOverflow(t *testing.T) {
	gin.SetMode(gin.TestMode)
	rl := NewRateLimiter(logger.Nop(), RateLimiterOptions{
		Limit: 0.001,
		Burst: 2,
	})

	r := gin.New()
	r.Use(errors.ErrorHandler(), rl.Middleware())
	r.POST("/api/subscriptions", func(c *gin.Context) { c.Status(http.StatusCreated) })

	var last *httptest.ResponseRecorder
	codes := make([]int, 0, 3)
	for i := 0; i < 3; i++ {
		last = httptest.NewRecorder()
		r.ServeHTTP(last, httptest.NewRequest(http.MethodPost, "/api/subscriptions", nil))
		codes = append(codes, last.Code)
	}

	assert.Equal(t, []int{http.StatusCreated, http.StatusCreated, http.StatusTooManyRequests}, codes)
	assert.Equal(t, "0", last.Header().Get("X-RateLimit-Remaining"))
	assert.NotEqual(t, "1", last.Header().Get("Retry-After"), "hint should reflect the refill time")
}

func TestRateLimiterKeysAreIndependent(t *testing.T) {
	gin.SetMode(gin.TestMode)
	rl := NewRateLimiter(logger.Nop(), RateLimiterOptions{
		Limit:   0.001,
		Burst:   1,
		KeyFunc: func(c *gin.Context) string { return c.GetHeader("X-Client") },
	})

	r := gin.New()
	r.Use(errors.ErrorHandler(), rl.Middleware())
	r.GET("/api/messages", func(c *gin.Context) { c.Status(http.StatusOK) })

	call := func(client string) int {
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/api/messages", nil)
		req.Header.Set("X-Client", client)
		r.ServeHTTP(w, req)
		return w.Code
	}

	assert.Equal(t, http.StatusOK, call("a"))
	assert.Equal(t, http.StatusTooManyRequests, call("a"))
	assert.Equal(t, http.StatusOK, call("b"))
}

func TestEvictIdle(t *testing.T) {
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	rl := NewRateLimiter(logger.Nop(), RateLimiterOptions{Limit: 1, Burst: 1, IdleTTL: time.Minute})
	rl.now = func() time.Time { return now }

	rl.bucketFor("1.2.3.4")
	now = now.Add(30 * time.Second)
	rl.bucketFor("5.6.7.8")
	now = now.Add(45 * time.Second)

	assert.Equal(t, 1, rl.evictIdle())

	rl.mu.Lock()
	defer rl.mu.Unlock()
	assert.Contains(t, rl.buckets, "5.6.7.8")
	assert.NotContains(t, rl.buckets, "1.2.3.4")
}
