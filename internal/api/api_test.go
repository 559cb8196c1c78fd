package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"pinkchat/backend/internal/models"
	"pinkchat/backend/internal/notify"
	"pinkchat/backend/internal/store"
	"pinkchat/backend/pkg/errors"
	"pinkchat/backend/pkg/logger"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type noopSender struct{}

func (noopSender) Send(context.Context, models.Subscription, []byte) error { return nil }

type recordingPublisher struct {
	posts []*models.StatusPost
}

func (p *recordingPublisher) PublishStatus(post *models.StatusPost) bool {
	p.posts = append(p.posts, post)
	return true
}

type fixture struct {
	engine    *gin.Engine
	store     *store.MemoryStore
	subs      *notify.MemorySubscriptions
	publisher *recordingPublisher
}

func setup(t *testing.T) *fixture {
	t.Helper()
	gin.SetMode(gin.TestMode)

	f := &fixture{
		store:     store.NewMemoryStore(time.Hour),
		subs:      notify.NewMemorySubscriptions(),
		publisher: &recordingPublisher{},
	}
	dispatcher := notify.NewDispatcher(f.subs, noopSender{}, logger.Nop(), nil, time.Second)

	r := gin.New()
	r.Use(errors.ErrorHandler())
	rg := r.Group("/api")
	NewMessageController(f.store).RegisterRoutes(rg)
	NewSubscriptionController(dispatcher).RegisterRoutes(rg)
	NewStatusController(f.store, f.publisher).RegisterRoutes(rg)
	f.engine = r
	return f
}

func (f *fixture) do(method, path string, body []byte) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	req := httptest.NewRequest(method, path, bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	f.engine.ServeHTTP(w, req)
	return w
}

func TestSubscribeAcceptsAnyJSON(t *testing.T) {
	f := setup(t)

	for _, body := range []string{`{"endpoint":"https://push.example/a"}`, `{"endpoint":"https://push.example/a"}`, `"opaque"`} {
		w := f.do(http.MethodPost, "/api/subscriptions", []byte(body))
		require.Equal(t, http.StatusCreated, w.Code)
		assert.Contains(t, w.Body.String(), `"id"`)
	}

	subs, err := f.subs.List(context.Background())
	require.NoError(t, err)
	assert.Len(t, subs, 3)
}

func TestSubscribeRejectsNonJSON(t *testing.T) {
	f := setup(t)
	w := f.do(http.MethodPost, "/api/subscriptions", []byte("endpoint=x"))
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), errors.CodeValidation)
}

func TestListMessages(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	for _, m := range []models.Message{
		{Sender: "A", Receiver: "all", Text: "one"},
		{Sender: "B", Receiver: "all", Text: "two"},
		{Sender: "A", Receiver: "all", Text: "three"},
	} {
		_, err := f.store.SaveMessage(ctx, &m)
		require.NoError(t, err)
	}

	w := f.do(http.MethodGet, "/api/messages?sender=A&order=desc", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Messages []models.Message `json:"messages"`
		Count    int              `json:"count"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.Equal(t, 2, resp.Count)
	assert.Equal(t, "three", resp.Messages[0].Text)
	assert.Equal(t, "one", resp.Messages[1].Text)

	w = f.do(http.MethodGet, "/api/messages?limit=0", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = f.do(http.MethodGet, "/api/messages?since=yesterday", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestMarkRead(t *testing.T) {
	f := setup(t)
	saved, err := f.store.SaveMessage(context.Background(), &models.Message{Sender: "A", Receiver: "all", Text: "hi"})
	require.NoError(t, err)

	w := f.do(http.MethodPost, "/api/messages/"+saved.ID+"/read", nil)
	assert.Equal(t, http.StatusNoContent, w.Code)

	msgs, err := f.store.ListMessages(context.Background(), store.Filter{}, store.OrderAsc)
	require.NoError(t, err)
	assert.True(t, msgs[0].Read)

	w = f.do(http.MethodPost, "/api/messages/missing/read", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestCreateStatusPublishes(t *testing.T) {
	f := setup(t)

	w := f.do(http.MethodPost, "/api/statuses", []byte(`{"author":"A","mediaRef":"uploads/sunset.jpg","caption":"hi"}`))
	require.Equal(t, http.StatusCreated, w.Code)

	var post models.StatusPost
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &post))
	assert.Equal(t, "A", post.Author)
	assert.Equal(t, post.CreatedAt.Add(time.Hour), post.ExpiresAt)
	require.Len(t, f.publisher.posts, 1)
	assert.Equal(t, post.ID, f.publisher.posts[0].ID)

	w = f.do(http.MethodGet, "/api/statuses?author=A", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "uploads/sunset.jpg")
}

func TestCreateStatusValidation(t *testing.T) {
	f := setup(t)

	w := f.do(http.MethodPost, "/api/statuses", []byte(`{"author":"A"}`))
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = f.do(http.MethodPost, "/api/statuses", []byte(`{"mediaRef":"x.jpg"}`))
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Empty(t, f.publisher.posts)
}
