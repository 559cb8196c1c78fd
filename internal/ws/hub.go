package ws

import (
	"context"
	"sync"
	"time"

	"pinkchat/backend/internal/models"
	"pinkchat/backend/pkg/logger"
	"pinkchat/backend/pkg/observability"

	"golang.org/x/time/rate"
)

// MessageStore is the part of the persistence gateway the relay writes to
type MessageStore interface {
	SaveMessage(ctx context.Context, m *models.Message) (*models.Message, error)
	MarkDelivered(ctx context.Context, id string) error
}

// Notifier fires a push notification without waiting for it
type Notifier interface {
	Notify(title, body string)
}

// Options tunes the hub and every client it owns
type Options struct {
	SendBuffer     int
	StoreTimeout   time.Duration
	NotifyBodyMax  int
	EventRate      rate.Limit
	EventBurst     int
	MaxMessageSize int64
}

func DefaultOptions() Options {
	return Options{
		SendBuffer:     256,
		StoreTimeout:   5 * time.Second,
		NotifyBodyMax:  120,
		EventRate:      20,
		EventBurst:     40,
		MaxMessageSize: 64 << 10,
	}
}

// delivery is one outbound frame. A non-nil to targets a single client,
// otherwise the frame is broadcast.
type delivery struct {
	from          *Client
	to            *Client
	includeSender bool
	payload       []byte
	onDelivered   func()
}

// Hub owns the registry. Registration, removal and fan-out all happen on the
// goroutine running Run, so a client's send channel is only ever written and
// closed from one place.
type Hub struct {
	registry   *Registry
	register   chan *Client
	unregister chan *Client
	outbox     chan delivery

	store    MessageStore
	notifier Notifier
	log      *logger.Logger
	metrics  *observability.Metrics
	opts     Options

	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}
	wg     sync.WaitGroup
}

func NewHub(store MessageStore, notifier Notifier, log *logger.Logger, metrics *observability.Metrics, opts Options) *Hub {
	if log == nil {
		log = logger.GetGlobal()
	}
	def := DefaultOptions()
	if opts.SendBuffer <= 0 {
		opts.SendBuffer = def.SendBuffer
	}
	if opts.StoreTimeout <= 0 {
		opts.StoreTimeout = def.StoreTimeout
	}
	if opts.EventRate <= 0 {
		opts.EventRate = def.EventRate
	}
	if opts.EventBurst <= 0 {
		opts.EventBurst = def.EventBurst
	}
	if opts.MaxMessageSize <= 0 {
		opts.MaxMessageSize = def.MaxMessageSize
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Hub{
		registry:   NewRegistry(),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		outbox:     make(chan delivery, opts.SendBuffer),
		store:      store,
		notifier:   notifier,
		log:        log.With("component", "hub"),
		metrics:    metrics,
		opts:       opts,
		ctx:        ctx,
		cancel:     cancel,
		done:       make(chan struct{}),
	}
}

// Registry exposes the live connection set for read-only use
func (h *Hub) Registry() *Registry {
	return h.registry
}

// Run processes hub events until Shutdown is called
func (h *Hub) Run() {
	defer close(h.done)
	h.log.Info("hub started")

	for {
		select {
		case <-h.ctx.Done():
			h.closeAll()
			h.log.Info("hub stopped")
			return
		case c := <-h.register:
			h.addClient(c)
		case c := <-h.unregister:
			h.removeClient(c, "disconnected")
		case d := <-h.outbox:
			if d.to != nil {
				h.deliverTo(d)
			} else {
				h.fanOut(d)
			}
		}
	}
}

// Shutdown stops the hub, closes every connection and waits for the client
// pumps and detached store updates to exit.
func (h *Hub) Shutdown(ctx context.Context) error {
	h.cancel()

	select {
	case <-h.done:
	case <-ctx.Done():
		return ctx.Err()
	}

	waited := make(chan struct{})
	go func() {
		h.wg.Wait()
		close(waited)
	}()
	select {
	case <-waited:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Register queues c for registration. It returns false once the hub is stopping.
func (h *Hub) Register(c *Client) bool {
	return enqueue(h.ctx, h.register, c)
}

// Unregister queues c for removal. Unknown or already removed clients are ignored.
func (h *Hub) Unregister(c *Client) {
	enqueue(h.ctx, h.unregister, c)
}

func (h *Hub) publish(d delivery) bool {
	return enqueue(h.ctx, h.outbox, d)
}

func enqueue[T any](ctx context.Context, ch chan<- T, v T) bool {
	// the outbox is buffered, so a stopped hub must be caught before the select
	if ctx.Err() != nil {
		return false
	}
	select {
	case ch <- v:
		return true
	case <-ctx.Done():
		return false
	}
}

func (h *Hub) addClient(c *Client) {
	h.registry.Register(c)
	h.metrics.ConnOpened(h.ctx)
	h.log.Info("client registered",
		"conn_id", c.ID,
		"user_id", c.UserID,
		"clients", h.registry.Len(),
	)

	if c.conn == nil {
		return
	}
	h.wg.Add(2)
	go func() {
		defer h.wg.Done()
		c.writePump()
	}()
	go func() {
		defer h.wg.Done()
		c.readPump(h.ctx)
	}()
}

func (h *Hub) removeClient(c *Client, reason string) {
	cur, ok := h.registry.Get(c.ID)
	if !ok || cur != c {
		return
	}
	h.registry.Unregister(c.ID)
	close(c.send)
	h.metrics.ConnClosed(h.ctx)
	h.log.Info("client unregistered",
		"conn_id", c.ID,
		"reason", reason,
		"clients", h.registry.Len(),
	)
}

func (h *Hub) fanOut(d delivery) {
	recipients := 0
	for _, c := range h.registry.snapshot() {
		if c == d.from && !d.includeSender {
			continue
		}
		select {
		case c.send <- d.payload:
			recipients++
		default:
			h.removeClient(c, "send buffer full")
		}
	}
	h.metrics.Broadcast(h.ctx, recipients)

	if d.onDelivered != nil && recipients > 0 {
		h.detach(d.onDelivered)
	}
}

func (h *Hub) deliverTo(d delivery) {
	if cur, ok := h.registry.Get(d.to.ID); !ok || cur != d.to {
		return
	}
	select {
	case d.to.send <- d.payload:
	default:
		h.removeClient(d.to, "send buffer full")
	}
}

// detach runs fn off the hub goroutine. Only call from Run.
func (h *Hub) detach(fn func()) {
	h.wg.Add(1)
	go func() {
		defer h.wg.Done()
		fn()
	}()
}

func (h *Hub) closeAll() {
	for _, c := range h.registry.snapshot() {
		h.removeClient(c, "shutdown")
	}
}
