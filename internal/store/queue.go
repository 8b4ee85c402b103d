package store

import "sync"

// inbox is a thread-safe FIFO of received messages.
//
// Channel handlers enqueue from whatever goroutine delivers the payload; the
// Run loop is the only consumer. The buffered signal channel lets Run wait
// with a select on ctx.Done().
type inbox struct {
	mu     sync.Mutex
	msgs   []Message
	closed bool
	signal chan struct{}
}

func newInbox() *inbox {
	return &inbox{
		msgs:   make([]Message, 0, 16),
		signal: make(chan struct{}, 1),
	}
}

// Enqueue appends msg. Returns false once the inbox is closed.
func (q *inbox) Enqueue(msg Message) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return false
	}
	q.msgs = append(q.msgs, msg)

	// Buffer of 1 coalesces signals.
	select {
	case q.signal <- struct{}{}:
	default:
	}
	return true
}

// TryDequeue removes the front message without blocking.
func (q *inbox) TryDequeue() (Message, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.msgs) == 0 {
		return Message{}, false
	}
	msg := q.msgs[0]
	q.msgs[0] = Message{}
	if len(q.msgs) == 1 {
		q.msgs = q.msgs[:0]
	} else {
		q.msgs = q.msgs[1:]
	}
	return msg, true
}

// Wait returns a channel that signals when messages may be available. It is
// closed by Close.
func (q *inbox) Wait() <-chan struct{} {
	return q.signal
}

// Len returns the number of queued messages.
func (q *inbox) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.msgs)
}

// Close stops further enqueues and wakes waiters. A pending signal is
// dropped so the next receive on Wait observes the close; queued messages
// stay until dequeued.
func (q *inbox) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return
	}
	q.closed = true
	select {
	case <-q.signal:
	default:
	}
	close(q.signal)
}
