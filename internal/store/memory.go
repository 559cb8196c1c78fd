package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"pinkchat/backend/internal/models"

	"github.com/google/uuid"
)

// MemoryStore keeps everything in process memory. It backs demo mode and tests.
type MemoryStore struct {
	mu        sync.RWMutex
	messages  []models.Message
	statuses  []models.StatusPost
	stamp     *stamper
	now       func() time.Time
	statusTTL time.Duration
}

// NewMemoryStore creates an empty in-memory store
func NewMemoryStore(statusTTL time.Duration) *MemoryStore {
	if statusTTL <= 0 {
		statusTTL = models.DefaultStatusTTL
	}
	return &MemoryStore{
		stamp:     newStamper(nil),
		now:       time.Now,
		statusTTL: statusTTL,
	}
}

func (s *MemoryStore) SaveMessage(ctx context.Context, m *models.Message) (*models.Message, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	stored := *m
	stored.ID = uuid.NewString()
	stored.Delivered = false
	stored.Read = false

	s.mu.Lock()
	stored.Timestamp = s.stamp.next(stored.Sender)
	s.messages = append(s.messages, stored)
	s.mu.Unlock()

	return &stored, nil
}

func (s *MemoryStore) MarkDelivered(_ context.Context, id string) error {
	return s.update(id, func(m *models.Message) { m.Delivered = true })
}

func (s *MemoryStore) MarkRead(_ context.Context, id string) error {
	return s.update(id, func(m *models.Message) { m.Read = true })
}

func (s *MemoryStore) update(id string, fn func(*models.Message)) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i := range s.messages {
		if s.messages[i].ID == id {
			fn(&s.messages[i])
			return nil
		}
	}
	return ErrNotFound
}

func (s *MemoryStore) ListMessages(_ context.Context, f Filter, order Order) ([]models.Message, error) {
	s.mu.RLock()
	out := make([]models.Message, 0, len(s.messages))
	for _, m := range s.messages {
		if f.Sender != "" && m.Sender != f.Sender {
			continue
		}
		if f.Receiver != "" && m.Receiver != f.Receiver {
			continue
		}
		if !f.Since.IsZero() && m.Timestamp.Before(f.Since) {
			continue
		}
		out = append(out, m)
	}
	s.mu.RUnlock()

	// stable keeps insertion order for equal timestamps
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Timestamp.Before(out[j].Timestamp)
	})
	if order == OrderDesc {
		for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
			out[i], out[j] = out[j], out[i]
		}
	}
	if f.Limit > 0 && len(out) > f.Limit {
		out = out[:f.Limit]
	}
	return out, nil
}

func (s *MemoryStore) SaveStatus(ctx context.Context, p *models.StatusPost) (*models.StatusPost, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	stored := *p
	stored.ID = uuid.NewString()
	stored.ApplyDefaults(s.now().UTC(), s.statusTTL)

	s.mu.Lock()
	s.statuses = append(s.statuses, stored)
	s.mu.Unlock()

	return &stored, nil
}

func (s *MemoryStore) ListStatuses(_ context.Context, author string) ([]models.StatusPost, error) {
	now := s.now()

	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]models.StatusPost, 0, len(s.statuses))
	for i := len(s.statuses) - 1; i >= 0; i-- {
		p := s.statuses[i]
		if p.Expired(now) || (author != "" && p.Author != author) {
			continue
		}
		out = append(out, p)
	}
	return out, nil
}

func (s *MemoryStore) PurgeExpiredStatuses(_ context.Context) (int64, error) {
	now := s.now()

	s.mu.Lock()
	defer s.mu.Unlock()

	kept := s.statuses[:0]
	var purged int64
	for _, p := range s.statuses {
		if p.Expired(now) {
			purged++
			continue
		}
		kept = append(kept, p)
	}
	s.statuses = kept
	return purged, nil
}

func (s *MemoryStore) Ping(context.Context) error {
	return nil
}
