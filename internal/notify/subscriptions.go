package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"pinkchat/backend/internal/models"

	"github.com/redis/go-redis/v9"
)

// DefaultRedisKey is the list holding registered subscriptions
const DefaultRedisKey = "pinkchat:push:subscriptions"

// SubscriptionStore is an append-only collection of push endpoints.
// Duplicates are kept.
type SubscriptionStore interface {
	Add(ctx context.Context, sub models.Subscription) error
	List(ctx context.Context) ([]models.Subscription, error)
}

// MemorySubscriptions keeps subscriptions for the life of the process
type MemorySubscriptions struct {
	mu   sync.RWMutex
	subs []models.Subscription
}

func NewMemorySubscriptions() *MemorySubscriptions {
	return &MemorySubscriptions{}
}

func (m *MemorySubscriptions) Add(_ context.Context, sub models.Subscription) error {
	m.mu.Lock()
	m.subs = append(m.subs, sub)
	m.mu.Unlock()
	return nil
}

func (m *MemorySubscriptions) List(_ context.Context) ([]models.Subscription, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]models.Subscription, len(m.subs))
	copy(out, m.subs)
	return out, nil
}

// RedisSubscriptions stores subscriptions as JSON entries of a redis list so
// they survive restarts and are shared between relay instances.
type RedisSubscriptions struct {
	client redis.Cmdable
	key    string
}

func NewRedisSubscriptions(client redis.Cmdable, key string) *RedisSubscriptions {
	if key == "" {
		key = DefaultRedisKey
	}
	return &RedisSubscriptions{client: client, key: key}
}

func (r *RedisSubscriptions) Add(ctx context.Context, sub models.Subscription) error {
	data, err := json.Marshal(sub)
	if err != nil {
		return fmt.Errorf("encode subscription: %w", err)
	}
	return r.client.RPush(ctx, r.key, data).Err()
}

// List returns every stored subscription in registration order. Entries that
// no longer decode are skipped.
func (r *RedisSubscriptions) List(ctx context.Context) ([]models.Subscription, error) {
	raw, err := r.client.LRange(ctx, r.key, 0, -1).Result()
	if err != nil {
		return nil, err
	}
	out := make([]models.Subscription, 0, len(raw))
	for _, entry := range raw {
		var sub models.Subscription
		if err := json.Unmarshal([]byte(entry), &sub); err != nil {
			continue
		}
		out = append(out, sub)
	}
	return out, nil
}

// Ping reports whether redis is reachable
func (r *RedisSubscriptions) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}
