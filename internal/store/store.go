// Package store is the persistence gateway of the relay: durable messages
// and expiring status posts.
package store

import (
	"context"
	"sync"
	"time"

	"pinkchat/backend/internal/models"
	"pinkchat/backend/pkg/errors"
)

// ErrNotFound is returned when a flag transition targets an unknown message
var ErrNotFound = errors.NewNotFoundError(errors.CodeNotFound, "message not found")

// Order is the chronological direction of a listing
type Order string

const (
	OrderAsc  Order = "asc"
	OrderDesc Order = "desc"
)

// ParseOrder maps a query parameter to an Order, defaulting to ascending
func ParseOrder(s string) Order {
	if Order(s) == OrderDesc {
		return OrderDesc
	}
	return OrderAsc
}

// Filter narrows ListMessages. Zero values match everything.
type Filter struct {
	Sender   string
	Receiver string
	Since    time.Time
	Limit    int
}

// Store is the persistence contract the relay depends on. Every failure is
// reported as a STORE_ERROR AppError, except ErrNotFound.
type Store interface {
	// SaveMessage persists m and returns the stored copy with its
	// server-assigned ID and Timestamp.
	SaveMessage(ctx context.Context, m *models.Message) (*models.Message, error)
	MarkDelivered(ctx context.Context, id string) error
	MarkRead(ctx context.Context, id string) error
	ListMessages(ctx context.Context, f Filter, order Order) ([]models.Message, error)

	// SaveStatus persists a status post that expires after the store's TTL.
	SaveStatus(ctx context.Context, s *models.StatusPost) (*models.StatusPost, error)
	// ListStatuses returns unexpired posts, newest first. An empty author
	// lists everyone's.
	ListStatuses(ctx context.Context, author string) ([]models.StatusPost, error)
	PurgeExpiredStatuses(ctx context.Context) (int64, error)

	Ping(ctx context.Context) error
}

// stamper hands out timestamps that never go backwards for a given sender,
// even if the wall clock does. Stamps are truncated to microseconds, the
// resolution of postgres timestamptz, so the broadcast copy of a message
// carries the same timestamp as the stored row.
type stamper struct {
	mu   sync.Mutex
	now  func() time.Time
	last map[string]time.Time
}

func newStamper(now func() time.Time) *stamper {
	if now == nil {
		now = time.Now
	}
	return &stamper{now: now, last: make(map[string]time.Time)}
}

func (s *stamper) next(sender string) time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()

	ts := s.now().UTC().Truncate(time.Microsecond)
	if prev, ok := s.last[sender]; ok && ts.Before(prev) {
		ts = prev
	}
	s.last[sender] = ts
	return ts
}
