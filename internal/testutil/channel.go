package testutil

import (
	"errors"
	"slices"
	"sync"

	"github.com/roach88/reactor/internal/channel"
)

// RecordingChannel is a channel.Channel that records every post and lets a
// test deliver payloads as if another context had sent them.
//
// The origin is fixed so payloads carrying it are byte-identical across runs.
type RecordingChannel struct {
	name   string
	origin string

	mu       sync.Mutex
	posts    []string
	handlers []*channel.Handler
	closed   bool
	fail     error
}

var _ channel.Channel = (*RecordingChannel)(nil)

// NewRecordingChannel creates a recording channel. An empty origin becomes
// "test-origin".
func NewRecordingChannel(name, origin string) *RecordingChannel {
	if origin == "" {
		origin = "test-origin"
	}
	return &RecordingChannel{name: name, origin: origin}
}

func (c *RecordingChannel) Name() string   { return c.name }
func (c *RecordingChannel) Origin() string { return c.origin }

// Post records payload. It returns the error set by FailWith, if any.
func (c *RecordingChannel) Post(payload string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return channel.ErrClosed
	}
	if c.fail != nil {
		return c.fail
	}
	c.posts = append(c.posts, payload)
	return nil
}

func (c *RecordingChannel) Subscribe(fn channel.Handler) func() {
	c.mu.Lock()
	defer c.mu.Unlock()
	p := &fn
	c.handlers = append(c.handlers, p)
	return func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		c.handlers = slices.DeleteFunc(c.handlers, func(h *channel.Handler) bool { return h == p })
	}
}

func (c *RecordingChannel) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	return nil
}

// Deliver hands payload to every subscriber on the calling goroutine.
func (c *RecordingChannel) Deliver(payload string) {
	c.mu.Lock()
	handlers := slices.Clone(c.handlers)
	c.mu.Unlock()
	for _, h := range handlers {
		(*h)(payload)
	}
}

// Posts returns every recorded payload in post order.
func (c *RecordingChannel) Posts() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return slices.Clone(c.posts)
}

// FailWith makes subsequent posts return err. A nil err restores normal
// recording.
func (c *RecordingChannel) FailWith(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.fail = err
}

// ErrUnavailable is a convenience error for FailWith.
var ErrUnavailable = errors.New("channel unavailable")
