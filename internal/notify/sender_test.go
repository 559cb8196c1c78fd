package notify

import (
	"context"
	"crypto/ecdh"
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"pinkchat/backend/internal/models"

	webpush "github.com/SherClockHolmes/webpush-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testSubscription(t *testing.T, endpoint string) models.Subscription {
	t.Helper()
	key, err := ecdh.P256().GenerateKey(rand.Reader)
	require.NoError(t, err)
	auth := make([]byte, 16)
	_, err = rand.Read(auth)
	require.NoError(t, err)

	raw, err := json.Marshal(map[string]any{
		"endpoint": endpoint,
		"keys": map[string]string{
			"p256dh": base64.RawURLEncoding.EncodeToString(key.PublicKey().Bytes()),
			"auth":   base64.RawURLEncoding.EncodeToString(auth),
		},
	})
	require.NoError(t, err)
	return models.Subscription{ID: "s-1", Payload: raw}
}

func newTestSender(t *testing.T) *WebPushSender {
	t.Helper()
	priv, pub, err := webpush.GenerateVAPIDKeys()
	require.NoError(t, err)
	return NewWebPushSender(WebPushConfig{
		PublicKey:  pub,
		PrivateKey: priv,
		Subscriber: "mailto:test@pinkchat.local",
		TTL:        30,
		Timeout:    time.Second,
	})
}

func TestWebPushSenderDelivers(t *testing.T) {
	var gotAuth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		w.WriteHeader(http.StatusCreated)
	}))
	defer srv.Close()

	err := newTestSender(t).Send(context.Background(), testSubscription(t, srv.URL), []byte(`{"title":"A"}`))
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(gotAuth, "vapid "))
}

func TestWebPushSenderReportsRejectedEndpoint(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusGone)
	}))
	defer srv.Close()

	err := newTestSender(t).Send(context.Background(), testSubscription(t, srv.URL), []byte(`{}`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "410")
}

func TestWebPushSenderRejectsOpaquePayload(t *testing.T) {
	err := newTestSender(t).Send(context.Background(), models.Subscription{Payload: json.RawMessage(`"nope"`)}, nil)
	assert.Error(t, err)
}
