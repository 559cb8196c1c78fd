package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"pinkchat/backend/internal/models"
	"pinkchat/backend/pkg/errors"
	"pinkchat/backend/pkg/logger"
	"pinkchat/backend/pkg/observability"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"
)

// DefaultConcurrency bounds outbound push requests across all dispatches
const DefaultConcurrency = 16

// Payload is the body every push endpoint receives
type Payload struct {
	Title string `json:"title"`
	Body  string `json:"body"`
}

// Report summarises one fan-out
type Report struct {
	Attempted int
	Failed    int
}

// Dispatcher fans push notifications out to every registered subscription.
// Delivery is best effort: failures are logged per endpoint and never
// surface to the caller.
type Dispatcher struct {
	subs    SubscriptionStore
	sender  Sender
	log     *logger.Logger
	metrics *observability.Metrics
	timeout time.Duration

	limit    int
	inFlight *semaphore.Weighted

	wg  sync.WaitGroup
	now func() time.Time
}

func NewDispatcher(subs SubscriptionStore, sender Sender, log *logger.Logger, metrics *observability.Metrics, timeout time.Duration) *Dispatcher {
	if log == nil {
		log = logger.GetGlobal()
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Dispatcher{
		subs:    subs,
		sender:  sender,
		log:     log.With("component", "notify"),
		metrics: metrics,
		timeout:  timeout,
		limit:    DefaultConcurrency,
		inFlight: semaphore.NewWeighted(DefaultConcurrency),
		now:      time.Now,
	}
}

// SetConcurrency caps simultaneous push requests. Call before the first dispatch.
func (d *Dispatcher) SetConcurrency(n int) {
	if n <= 0 {
		n = DefaultConcurrency
	}
	d.limit = n
	d.inFlight = semaphore.NewWeighted(int64(n))
}

// Register stores raw as a new subscription. The payload is not inspected.
func (d *Dispatcher) Register(ctx context.Context, raw json.RawMessage) (models.Subscription, error) {
	sub := models.Subscription{
		ID:        uuid.NewString(),
		Payload:   append(json.RawMessage(nil), raw...),
		CreatedAt: d.now().UTC(),
	}
	if err := d.subs.Add(ctx, sub); err != nil {
		return sub, errors.NewStoreError(err)
	}
	d.log.Info("push subscription registered", "subscription_id", sub.ID)
	return sub, nil
}

// Dispatch delivers p to every subscription and waits for all attempts to
// finish. Sends run concurrently, bounded per call and across overlapping
// dispatches. Without a sender push is disabled and nothing happens.
func (d *Dispatcher) Dispatch(ctx context.Context, p Payload) Report {
	if d.sender == nil {
		return Report{}
	}
	subs, err := d.subs.List(ctx)
	if err != nil {
		d.log.LogError(err, "failed to load push subscriptions")
		return Report{}
	}
	if len(subs) == 0 {
		return Report{}
	}

	body, err := json.Marshal(p)
	if err != nil {
		d.log.LogError(err, "failed to encode push payload")
		return Report{}
	}

	var failed atomic.Int32
	var g errgroup.Group
	g.SetLimit(d.limit)
	for _, sub := range subs {
		g.Go(func() error {
			if err := d.inFlight.Acquire(ctx, 1); err != nil {
				failed.Add(1)
				return nil
			}
			defer d.inFlight.Release(1)

			if err := d.deliver(ctx, sub, body); err != nil {
				failed.Add(1)
			}
			return nil
		})
	}
	_ = g.Wait()

	return Report{Attempted: len(subs), Failed: int(failed.Load())}
}

func (d *Dispatcher) deliver(ctx context.Context, sub models.Subscription, body []byte) (err error) {
	endpoint := endpointOf(sub)
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("sender panic: %v", r)
		}
		if err != nil {
			derr := errors.NewDispatchError(endpoint, err)
			d.log.LogError(derr, "push delivery failed",
				"subscription_id", sub.ID,
				"endpoint", endpoint,
			)
			err = derr
		}
		d.metrics.PushAttempt(ctx, err == nil)
	}()

	ctx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()
	return d.sender.Send(ctx, sub, body)
}

// Notify runs Dispatch in the background and returns immediately
func (d *Dispatcher) Notify(title, body string) {
	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		d.Dispatch(context.Background(), Payload{Title: title, Body: body})
	}()
}

// Wait blocks until in-flight background dispatches finish or ctx ends
func (d *Dispatcher) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
