package observability

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetricsExposedOnHandler(t *testing.T) {
	mp, handler, err := SetupMetrics()
	require.NoError(t, err)
	t.Cleanup(func() { _ = mp.Shutdown(context.Background()) })

	m, err := NewMetrics(mp)
	require.NoError(t, err)

	ctx := context.Background()
	m.ConnOpened(ctx)
	m.EventRelayed(ctx, "message")
	m.EventRejected(ctx, "VALIDATION_ERROR")
	m.PushAttempt(ctx, false)
	m.Broadcast(ctx, 2)

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	body := w.Body.String()
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, body, "relay_events_relayed_total")
	assert.Contains(t, body, "relay_push_attempts_total")
	assert.Contains(t, body, "go_goroutines")
}

func TestNilMetricsIsSafe(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.ConnOpened(context.Background())
		m.PushAttempt(context.Background(), true)
	})
}

func TestSetupTracing(t *testing.T) {
	shutdown, err := SetupTracing("pinkchat-test", io.Discard)
	require.NoError(t, err)
	assert.NoError(t, shutdown(context.Background()))
}
