package history

import (
	"sync"
	"sync/atomic"
	"time"
)

// DefaultDelay is the debounce delay used when none is configured.
const DefaultDelay = 500 * time.Millisecond

var globalDelay atomic.Int64

// SetDelay changes the debounce delay used by later Watch calls. A
// non-positive d restores DefaultDelay.
func SetDelay(d time.Duration) {
	if d <= 0 {
		d = 0
	}
	globalDelay.Store(int64(d))
}

// Delay returns the debounce delay used by Watch.
func Delay() time.Duration {
	if d := globalDelay.Load(); d > 0 {
		return time.Duration(d)
	}
	return DefaultDelay
}

// Scheduler runs a function after a delay. The returned stop function
// cancels it and reports whether it had not yet run.
type Scheduler interface {
	AfterFunc(d time.Duration, fn func()) (stop func() bool)
}

// WallScheduler schedules with time.AfterFunc.
type WallScheduler struct{}

func (WallScheduler) AfterFunc(d time.Duration, fn func()) func() bool {
	return time.AfterFunc(d, fn).Stop
}

// tasks is a per-key registry of scheduled functions with
// cancel-and-reschedule semantics.
type tasks struct {
	sched Scheduler

	mu    sync.Mutex
	stops map[string]func() bool
}

func newTasks(sched Scheduler) *tasks {
	return &tasks{sched: sched, stops: make(map[string]func() bool)}
}

// schedule cancels any pending task for key and schedules fn after d.
func (t *tasks) schedule(key string, d time.Duration, fn func()) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if stop, ok := t.stops[key]; ok {
		stop()
	}
	t.stops[key] = t.sched.AfterFunc(d, fn)
}

// done forgets key without cancelling; called by the task itself.
func (t *tasks) done(key string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.stops, key)
}

// cancelAll cancels every pending task.
func (t *tasks) cancelAll() {
	t.mu.Lock()
	defer t.mu.Unlock()
	for key, stop := range t.stops {
		stop()
		delete(t.stops, key)
	}
}

func (t *tasks) len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.stops)
}
