package store

import (
	"context"
	stderrors "errors"
	"time"

	"pinkchat/backend/internal/models"
	"pinkchat/backend/pkg/errors"
	"pinkchat/backend/pkg/resilience"
)

// GuardedStore bounds every call with a timeout and stops calling the
// underlying store while its circuit breaker is open. It never retries.
type GuardedStore struct {
	next    Store
	breaker *resilience.CircuitBreaker
	timeout time.Duration
}

// NewGuardedStore wraps next
func NewGuardedStore(next Store, breaker *resilience.CircuitBreaker, timeout time.Duration) *GuardedStore {
	return &GuardedStore{next: next, breaker: breaker, timeout: timeout}
}

func (g *GuardedStore) call(ctx context.Context, fn func(context.Context) error) error {
	if g.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, g.timeout)
		defer cancel()
	}

	err := g.breaker.Execute(ctx, func(ctx context.Context) error {
		err := fn(ctx)
		// a missing row says nothing about the health of the database
		if stderrors.Is(err, ErrNotFound) {
			return nil
		}
		return err
	})
	if err == nil {
		return nil
	}

	var appErr *errors.AppError
	if stderrors.As(err, &appErr) {
		return err
	}
	return errors.NewStoreError(err)
}

func (g *GuardedStore) SaveMessage(ctx context.Context, m *models.Message) (*models.Message, error) {
	var out *models.Message
	err := g.call(ctx, func(ctx context.Context) error {
		var err error
		out, err = g.next.SaveMessage(ctx, m)
		return err
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (g *GuardedStore) MarkDelivered(ctx context.Context, id string) error {
	var notFound bool
	err := g.call(ctx, func(ctx context.Context) error {
		err := g.next.MarkDelivered(ctx, id)
		notFound = stderrors.Is(err, ErrNotFound)
		return err
	})
	if err == nil && notFound {
		return ErrNotFound
	}
	return err
}

func (g *GuardedStore) MarkRead(ctx context.Context, id string) error {
	var notFound bool
	err := g.call(ctx, func(ctx context.Context) error {
		err := g.next.MarkRead(ctx, id)
		notFound = stderrors.Is(err, ErrNotFound)
		return err
	})
	if err == nil && notFound {
		return ErrNotFound
	}
	return err
}

func (g *GuardedStore) ListMessages(ctx context.Context, f Filter, order Order) ([]models.Message, error) {
	var out []models.Message
	err := g.call(ctx, func(ctx context.Context) error {
		var err error
		out, err = g.next.ListMessages(ctx, f, order)
		return err
	})
	return out, err
}

func (g *GuardedStore) SaveStatus(ctx context.Context, p *models.StatusPost) (*models.StatusPost, error) {
	var out *models.StatusPost
	err := g.call(ctx, func(ctx context.Context) error {
		var err error
		out, err = g.next.SaveStatus(ctx, p)
		return err
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (g *GuardedStore) ListStatuses(ctx context.Context, author string) ([]models.StatusPost, error) {
	var out []models.StatusPost
	err := g.call(ctx, func(ctx context.Context) error {
		var err error
		out, err = g.next.ListStatuses(ctx, author)
		return err
	})
	return out, err
}

func (g *GuardedStore) PurgeExpiredStatuses(ctx context.Context) (int64, error) {
	var n int64
	err := g.call(ctx, func(ctx context.Context) error {
		var err error
		n, err = g.next.PurgeExpiredStatuses(ctx)
		return err
	})
	return n, err
}

// Ping bypasses the breaker so health checks see the real state of the database
func (g *GuardedStore) Ping(ctx context.Context) error {
	return g.next.Ping(ctx)
}
