package store

import "sync/atomic"

// Clock is a monotonic counter stamped on outgoing messages.
//
// Sequence numbers make a context's broadcasts totally ordered for tracing.
// Echo suppression does not consult them.
type Clock struct {
	seq atomic.Int64
}

// NewClock creates a clock starting at 0.
func NewClock() *Clock {
	return &Clock{}
}

// Next returns the next sequence number.
func (c *Clock) Next() int64 {
	return c.seq.Add(1)
}

// Current returns the last issued sequence number.
func (c *Clock) Current() int64 {
	return c.seq.Load()
}
