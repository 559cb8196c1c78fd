package store

import (
	"context"
	"testing"
	"time"

	"pinkchat/backend/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSaveMessageAssignsIDAndTimestamp(t *testing.T) {
	s := NewMemoryStore(0)
	in := &models.Message{Sender: "A", Receiver: models.BroadcastReceiver, Text: "hi", Delivered: true}

	out, err := s.SaveMessage(context.Background(), in)
	require.NoError(t, err)

	assert.NotEmpty(t, out.ID)
	assert.False(t, out.Timestamp.IsZero())
	assert.False(t, out.Delivered)
	assert.Empty(t, in.ID, "input must not be mutated")
}

func TestTimestampsNeverGoBackwardsPerSender(t *testing.T) {
	s := NewMemoryStore(0)
	clock := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	s.stamp.now = func() time.Time { return clock }

	first, err := s.SaveMessage(context.Background(), &models.Message{Sender: "A", Text: "1"})
	require.NoError(t, err)

	clock = clock.Add(-time.Minute)
	second, err := s.SaveMessage(context.Background(), &models.Message{Sender: "A", Text: "2"})
	require.NoError(t, err)
	other, err := s.SaveMessage(context.Background(), &models.Message{Sender: "B", Text: "3"})
	require.NoError(t, err)

	assert.False(t, second.Timestamp.Before(first.Timestamp))
	assert.True(t, other.Timestamp.Before(first.Timestamp))
}

func TestListMessagesFilterAndOrder(t *testing.T) {
	s := NewMemoryStore(0)
	ctx := context.Background()
	for _, m := range []models.Message{
		{Sender: "A", Receiver: "all", Text: "1"},
		{Sender: "B", Receiver: "A", Text: "2"},
		{Sender: "A", Receiver: "all", Text: "3"},
	} {
		m := m
		_, err := s.SaveMessage(ctx, &m)
		require.NoError(t, err)
	}

	asc, err := s.ListMessages(ctx, Filter{Sender: "A"}, OrderAsc)
	require.NoError(t, err)
	require.Len(t, asc, 2)
	assert.Equal(t, "1", asc[0].Text)
	assert.Equal(t, "3", asc[1].Text)

	desc, err := s.ListMessages(ctx, Filter{Limit: 1}, OrderDesc)
	require.NoError(t, err)
	require.Len(t, desc, 1)
	assert.Equal(t, "3", desc[0].Text)

	toA, err := s.ListMessages(ctx, Filter{Receiver: "A"}, OrderAsc)
	require.NoError(t, err)
	require.Len(t, toA, 1)
	assert.Equal(t, "B", toA[0].Sender)
}

func TestMarkFlags(t *testing.T) {
	s := NewMemoryStore(0)
	ctx := context.Background()
	m, err := s.SaveMessage(ctx, &models.Message{Sender: "A", Text: "hi"})
	require.NoError(t, err)

	require.NoError(t, s.MarkDelivered(ctx, m.ID))
	require.NoError(t, s.MarkRead(ctx, m.ID))
	assert.ErrorIs(t, s.MarkRead(ctx, "missing"), ErrNotFound)

	list, err := s.ListMessages(ctx, Filter{}, OrderAsc)
	require.NoError(t, err)
	assert.True(t, list[0].Delivered)
	assert.True(t, list[0].Read)
}

func TestStatusExpiry(t *testing.T) {
	s := NewMemoryStore(24 * time.Hour)
	ctx := context.Background()
	now := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return now }

	_, err := s.SaveStatus(ctx, &models.StatusPost{Author: "A", MediaRef: "old.jpg"})
	require.NoError(t, err)

	now = now.Add(23 * time.Hour)
	_, err = s.SaveStatus(ctx, &models.StatusPost{Author: "A", MediaRef: "new.jpg"})
	require.NoError(t, err)

	visible, err := s.ListStatuses(ctx, "A")
	require.NoError(t, err)
	assert.Len(t, visible, 2)

	now = now.Add(2 * time.Hour)
	visible, err = s.ListStatuses(ctx, "")
	require.NoError(t, err)
	require.Len(t, visible, 1)
	assert.Equal(t, "new.jpg", visible[0].MediaRef)

	purged, err := s.PurgeExpiredStatuses(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), purged)
}

func TestSaveMessageHonoursCancelledContext(t *testing.T) {
	s := NewMemoryStore(0)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := s.SaveMessage(ctx, &models.Message{Sender: "A", Text: "hi"})
	assert.ErrorIs(t, err, context.Canceled)
}
