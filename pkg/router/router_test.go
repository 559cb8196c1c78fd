package router

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"pinkchat/backend/pkg/config"
	"pinkchat/backend/pkg/di"
	"pinkchat/backend/pkg/logger"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRouter(t *testing.T) *Router {
	t.Helper()
	gin.SetMode(gin.TestMode)
	for _, key := range []string{"JWT_SECRET", "VAPID_PUBLIC_KEY", "VAPID_PRIVATE_KEY", "APP_ENV", "OPENAPI_SCHEMA", "CLIENT_URL", "ALLOW_ANONYMOUS"} {
		t.Setenv(key, "")
	}

	cfg := config.Load()
	cfg.Database.Backend = "memory"
	cfg.Push.Backend = "memory"
	cfg.Security.RateLimit = 1000
	cfg.Security.RateLimitBurst = 1000

	ctx, cancel := context.WithCancel(context.Background())
	container, err := di.New(ctx, cfg, logger.Nop())
	require.NoError(t, err)
	container.Start(ctx)
	container.Health.RunChecks(ctx)
	t.Cleanup(func() {
		cancel()
		closeCtx, done := context.WithTimeout(context.Background(), 2*time.Second)
		defer done()
		_ = container.Close(closeCtx)
	})

	r := New(container)
	r.SetupRoutes()
	return r
}

func serve(r *Router, method, path, body string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	r.Engine.ServeHTTP(w, req)
	return w
}

func TestHealthRoute(t *testing.T) {
	r := newTestRouter(t)

	w := serve(r, http.MethodGet, "/health", "")
	require.Equal(t, http.StatusOK, w.Code)

	var body map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "ok", body["status"])
	assert.NotEmpty(t, body["components"])
	assert.NotEmpty(t, w.Header().Get("X-Request-ID"))
}

func TestMetricsRoute(t *testing.T) {
	r := newTestRouter(t)

	w := serve(r, http.MethodGet, "/metrics", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "go_goroutines")
}

func TestSubscriptionAndMessageRoutes(t *testing.T) {
	r := newTestRouter(t)

	w := serve(r, http.MethodPost, "/api/subscriptions", `{"endpoint":"https://push.example/a"}`)
	assert.Equal(t, http.StatusCreated, w.Code)

	w = serve(r, http.MethodGet, "/api/messages?order=desc", "")
	assert.Equal(t, http.StatusOK, w.Code)

	w = serve(r, http.MethodGet, "/api/messages?order=sideways", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "VALIDATION_ERROR")
}

func TestStatusRouteAnnouncesPost(t *testing.T) {
	r := newTestRouter(t)

	w := serve(r, http.MethodPost, "/api/statuses", `{"author":"A","mediaRef":"uploads/a.jpg"}`)
	require.Equal(t, http.StatusCreated, w.Code)

	w = serve(r, http.MethodGet, "/api/statuses", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "uploads/a.jpg")
}

func TestDocsRoute(t *testing.T) {
	r := newTestRouter(t)

	w := serve(r, http.MethodGet, "/api/docs/openapi", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "/api/subscriptions")
}

func TestCORSPreflight(t *testing.T) {
	r := newTestRouter(t)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodOptions, "/api/messages", nil)
	req.Header.Set("Origin", "https://app.example")
	r.Engine.ServeHTTP(w, req)

	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "https://app.example", w.Header().Get("Access-Control-Allow-Origin"))
}

func TestWebSocketRouteRequiresUpgrade(t *testing.T) {
	r := newTestRouter(t)

	w := serve(r, http.MethodGet, "/ws?userId=A", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}
