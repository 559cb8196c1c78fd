package ws

import (
	"iter"
	"sync"
)

// Registry tracks live connections by id. Only the hub goroutine mutates
// it; readers get point-in-time snapshots.
type Registry struct {
	mu    sync.RWMutex
	conns map[string]*Client
}

func NewRegistry() *Registry {
	return &Registry{conns: make(map[string]*Client)}
}

// Register adds c. Registering the same id twice keeps the latest client.
func (r *Registry) Register(c *Client) {
	r.mu.Lock()
	r.conns[c.ID] = c
	r.mu.Unlock()
}

// Unregister removes id and reports whether it was present
func (r *Registry) Unregister(id string) (*Client, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.conns[id]
	if ok {
		delete(r.conns, id)
	}
	return c, ok
}

func (r *Registry) Get(id string) (*Client, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.conns[id]
	return c, ok
}

func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.conns)
}

// List yields the ids registered at the time of the call. Later changes
// are not reflected.
func (r *Registry) List() iter.Seq[string] {
	snap := r.snapshot()
	return func(yield func(string) bool) {
		for _, c := range snap {
			if !yield(c.ID) {
				return
			}
		}
	}
}

func (r *Registry) snapshot() []*Client {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*Client, 0, len(r.conns))
	for _, c := range r.conns {
		out = append(out, c)
	}
	return out
}
