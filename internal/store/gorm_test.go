package store

import (
	"context"
	"os"
	"testing"

	"pinkchat/backend/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

// Runs against a real postgres when TEST_DATABASE_DSN is set.
func TestGormStoreIntegration(t *testing.T) {
	dsn := os.Getenv("TEST_DATABASE_DSN")
	if dsn == "" {
		t.Skip("TEST_DATABASE_DSN not set")
	}

	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, AutoMigrate(db))
	t.Cleanup(func() {
		db.Exec("DELETE FROM messages WHERE sender = ?", "gorm-test")
		db.Exec("DELETE FROM status_posts WHERE author = ?", "gorm-test")
	})

	s := NewGormStore(db, 0)
	ctx := context.Background()
	require.NoError(t, s.Ping(ctx))

	saved, err := s.SaveMessage(ctx, &models.Message{Sender: "gorm-test", Receiver: "all", Text: "hello"})
	require.NoError(t, err)
	require.NoError(t, s.MarkDelivered(ctx, saved.ID))
	assert.ErrorIs(t, s.MarkRead(ctx, "00000000-0000-0000-0000-000000000000"), ErrNotFound)

	list, err := s.ListMessages(ctx, Filter{Sender: "gorm-test"}, OrderAsc)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, saved.ID, list[0].ID)
	assert.True(t, saved.Timestamp.Equal(list[0].Timestamp), "stored %s, broadcast %s", list[0].Timestamp, saved.Timestamp)
	assert.True(t, list[0].Delivered)

	post, err := s.SaveStatus(ctx, &models.StatusPost{Author: "gorm-test", MediaRef: "a.jpg"})
	require.NoError(t, err)
	posts, err := s.ListStatuses(ctx, "gorm-test")
	require.NoError(t, err)
	require.Len(t, posts, 1)
	assert.Equal(t, post.ID, posts[0].ID)
}
