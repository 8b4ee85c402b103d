package channel

import (
	"errors"
	"log/slog"
	"slices"
	"sync"

	"github.com/google/uuid"
)

// ErrClosed is returned when posting on a closed endpoint.
var ErrClosed = errors.New("channel closed")

// Handler receives a payload posted by another endpoint.
type Handler func(payload string)

// Channel is one endpoint of a named broadcast channel.
type Channel interface {
	// Name returns the channel name.
	Name() string

	// Origin returns this endpoint's unique id.
	Origin() string

	// Post delivers payload to every other endpoint on the same name.
	Post(payload string) error

	// Subscribe registers fn for payloads posted by other endpoints.
	Subscribe(fn Handler) (unsubscribe func())

	// Close detaches the endpoint. Further posts fail with ErrClosed.
	Close() error
}

// NewOrigin generates a time-sortable endpoint id.
func NewOrigin() string {
	return uuid.Must(uuid.NewV7()).String()
}

// handlers is an ordered subscriber list shared by the implementations.
type handlers struct {
	mu   sync.Mutex
	list []*Handler
}

func (h *handlers) add(fn Handler) func() {
	h.mu.Lock()
	defer h.mu.Unlock()
	p := &fn
	h.list = append(h.list, p)

	var once sync.Once
	return func() {
		once.Do(func() {
			h.mu.Lock()
			defer h.mu.Unlock()
			h.list = slices.DeleteFunc(h.list, func(x *Handler) bool { return x == p })
		})
	}
}

func (h *handlers) deliver(channel, payload string) {
	h.mu.Lock()
	list := slices.Clone(h.list)
	h.mu.Unlock()

	for _, fn := range list {
		func() {
			defer func() {
				if r := recover(); r != nil {
					slog.Error("channel handler panicked", "channel", channel, "panic", r)
				}
			}()
			(*fn)(payload)
		}()
	}
}
