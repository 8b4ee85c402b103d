package fetch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/roach88/reactor/internal/reactive"
	"github.com/roach88/reactor/internal/store"
)

// ErrNoTransport is returned when a client has no way to send requests.
var ErrNoTransport = errors.New("fetch: no transport available")

// Option configures a Client.
type Option func(*Client)

// WithBaseURL sets the base that relative and empty URLs resolve against.
func WithBaseURL(base string) Option {
	return func(c *Client) {
		c.baseURL = base
	}
}

// WithNow sets the time source for completion timestamps and cache periods.
func WithNow(now func() time.Time) Option {
	return func(c *Client) {
		if now != nil {
			c.now = now
		}
	}
}

// mutator serializes instance writes with remote sync. store.Persistent
// implements it.
type mutator interface {
	Do(fn func())
}

// Client creates request-bound reactive instances.
type Client struct {
	doer    Doer
	host    store.Host
	baseURL string
	now     func() time.Time

	mu        sync.Mutex
	resources map[string]*Resource
	active    map[string]bool
}

// NewClient creates a client sending requests through doer and registering
// instances on host. A nil host behaves like store.Headless.
func NewClient(doer Doer, host store.Host, opts ...Option) *Client {
	if host == nil {
		host = store.Headless{}
	}
	c := &Client{
		doer:      doer,
		host:      host,
		now:       time.Now,
		resources: make(map[string]*Resource),
		active:    make(map[string]bool),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Prefetch returns the instance for the request without sending it. A new
// instance starts as completed: status 200 "Ok" at the current time.
func (c *Client) Prefetch(target string, init any, req Request) (*Resource, error) {
	return c.prefetch(target, init, req, Status{
		Code:       200,
		Text:       "Ok",
		FinishedAt: c.clock(),
	})
}

// Fetch returns the instance for the request, refreshing it synchronously
// when it never completed, when req.Cache is CacheReload, or when
// req.CachePeriod has elapsed since it completed. The outcome of the refresh
// is reported on the resource; the returned error is only set when the
// instance could not be created.
func (c *Client) Fetch(ctx context.Context, target string, init any, req Request) (*Resource, error) {
	res, err := c.prefetch(target, init, req, Status{})
	if err != nil {
		return nil, err
	}

	finished := res.Status().FinishedAt
	switch {
	case req.Cache == CacheReload || finished.IsZero():
		_ = res.Refresh(ctx, nil, true)
	case req.CachePeriod > 0 && !c.clock().Before(finished.Add(req.CachePeriod)):
		_ = res.Refresh(ctx, nil, true)
	}
	return res, nil
}

func (c *Client) prefetch(target string, init any, req Request, initial Status) (*Resource, error) {
	if c == nil || c.doer == nil {
		return nil, ErrNoTransport
	}

	resolved, err := resolveURL(c.baseURL, target)
	if err != nil {
		return nil, fmt.Errorf("fetch: %w", err)
	}
	key, err := requestKey(resolved, req)
	if err != nil {
		return nil, fmt.Errorf("fetch: %w", err)
	}

	inst := c.host.Register(key, init, !req.Shallow,
		reactive.MetaRefresh, reactive.MetaRequest, reactive.MetaResponse)
	rv, ok := inst.(reactive.Value)
	if !ok {
		return nil, fmt.Errorf("fetch: initial value must be a record or sequence, got %T", init)
	}

	c.mu.Lock()
	if res, ok := c.resources[key]; ok && res.value == rv {
		c.mu.Unlock()
		return res, nil
	}
	res := &Resource{
		client: c,
		key:    key,
		url:    resolved,
		req:    req,
		init:   reactive.Snapshot(init),
		value:  rv,
	}
	c.resources[key] = res
	c.mu.Unlock()

	initial.Request = newRequestInfo(resolved, req)
	res.record(initial)
	return res, nil
}

// begin claims the single-flight slot for key.
func (c *Client) begin(key string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.active[key] {
		return false
	}
	c.active[key] = true
	return true
}

// finish frees the slot and releases the instance from the host.
func (c *Client) finish(key string) {
	c.mu.Lock()
	delete(c.active, key)
	delete(c.resources, key)
	c.mu.Unlock()

	c.host.Release(key)
	slog.Debug("fetch request finished", "key", key)
}

// mutate runs fn serialized with the host's sync writes when it has any.
func (c *Client) mutate(fn func()) {
	if m, ok := c.host.(mutator); ok {
		m.Do(fn)
		return
	}
	fn()
}

func (c *Client) clock() time.Time {
	return c.now()
}
