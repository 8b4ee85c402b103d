package testutil

import (
	"sort"
	"sync"
	"time"
)

// ManualScheduler runs delayed tasks only when the test advances its clock.
//
// Unlike time.AfterFunc, nothing fires on its own: Advance moves the clock
// forward and runs every task that came due, in due order, on the calling
// goroutine. Debounce tests use it so they never sleep.
//
// Thread-safety: all methods are safe for concurrent use. Tasks run without
// the scheduler lock held, so a task may schedule or stop other tasks.
type ManualScheduler struct {
	mu    sync.Mutex
	now   time.Duration
	seq   int64
	tasks []*task
}

type task struct {
	due     time.Duration
	seq     int64
	fn      func()
	stopped bool
	fired   bool
}

// NewManualScheduler creates a scheduler at time zero.
func NewManualScheduler() *ManualScheduler {
	return &ManualScheduler{}
}

// AfterFunc schedules fn to run once d has elapsed on the manual clock. The
// returned function cancels the task and reports whether it was still
// pending.
func (s *ManualScheduler) AfterFunc(d time.Duration, fn func()) func() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.seq++
	t := &task{due: s.now + d, seq: s.seq, fn: fn}
	s.tasks = append(s.tasks, t)

	return func() bool {
		s.mu.Lock()
		defer s.mu.Unlock()
		if t.stopped || t.fired {
			return false
		}
		t.stopped = true
		return true
	}
}

// Advance moves the clock forward by d and runs every task due by then.
// Returns the number of tasks run.
func (s *ManualScheduler) Advance(d time.Duration) int {
	s.mu.Lock()
	s.now += d
	s.mu.Unlock()

	ran := 0
	for {
		t := s.nextDue()
		if t == nil {
			return ran
		}
		t.fn()
		ran++
	}
}

// nextDue claims the earliest pending task that is due.
func (s *ManualScheduler) nextDue() *task {
	s.mu.Lock()
	defer s.mu.Unlock()

	live := s.tasks[:0]
	for _, t := range s.tasks {
		if !t.stopped && !t.fired {
			live = append(live, t)
		}
	}
	s.tasks = live

	sort.SliceStable(s.tasks, func(i, j int) bool {
		if s.tasks[i].due != s.tasks[j].due {
			return s.tasks[i].due < s.tasks[j].due
		}
		return s.tasks[i].seq < s.tasks[j].seq
	})
	if len(s.tasks) == 0 || s.tasks[0].due > s.now {
		return nil
	}
	t := s.tasks[0]
	t.fired = true
	return t
}

// Pending returns the number of tasks neither fired nor stopped.
func (s *ManualScheduler) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, t := range s.tasks {
		if !t.stopped && !t.fired {
			n++
		}
	}
	return n
}

// Now returns the elapsed manual time.
func (s *ManualScheduler) Now() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.now
}
