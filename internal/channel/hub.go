package channel

import (
	"slices"
	"sync"
)

// Hub connects in-process endpoints by name.
type Hub struct {
	mu        sync.Mutex
	endpoints map[string][]*Endpoint
}

// NewHub creates an empty hub.
func NewHub() *Hub {
	return &Hub{endpoints: make(map[string][]*Endpoint)}
}

// Open creates a new endpoint on the named channel.
func (h *Hub) Open(name string) *Endpoint {
	e := &Endpoint{hub: h, name: name, origin: NewOrigin()}

	h.mu.Lock()
	defer h.mu.Unlock()
	h.endpoints[name] = append(h.endpoints[name], e)
	return e
}

func (h *Hub) peers(e *Endpoint) []*Endpoint {
	h.mu.Lock()
	defer h.mu.Unlock()

	var out []*Endpoint
	for _, peer := range h.endpoints[e.name] {
		if peer != e {
			out = append(out, peer)
		}
	}
	return out
}

func (h *Hub) detach(e *Endpoint) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.endpoints[e.name] = slices.DeleteFunc(h.endpoints[e.name], func(x *Endpoint) bool { return x == e })
}

// Endpoint is a Hub-backed Channel.
type Endpoint struct {
	hub    *Hub
	name   string
	origin string
	subs   handlers

	mu     sync.Mutex
	closed bool
}

var _ Channel = (*Endpoint)(nil)

func (e *Endpoint) Name() string   { return e.name }
func (e *Endpoint) Origin() string { return e.origin }

// Post delivers payload synchronously to the subscribers of every other
// endpoint on the same name.
func (e *Endpoint) Post(payload string) error {
	e.mu.Lock()
	closed := e.closed
	e.mu.Unlock()
	if closed {
		return ErrClosed
	}

	for _, peer := range e.hub.peers(e) {
		peer.subs.deliver(e.name, payload)
	}
	return nil
}

func (e *Endpoint) Subscribe(fn Handler) func() {
	return e.subs.add(fn)
}

func (e *Endpoint) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return nil
	}
	e.closed = true
	e.hub.detach(e)
	return nil
}
