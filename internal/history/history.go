package history

import (
	"log/slog"
	"maps"
	"slices"
	"sync"
	"time"

	"github.com/roach88/reactor/internal/reactive"
	"github.com/roach88/reactor/internal/value"
)

// Change is one committed edit at a path.
type Change struct {
	Path   string
	Action reactive.Action
	// Value is the value at Path after the edit. Exists is false when the
	// edit removed it.
	Value  any
	Exists bool
	// Before is the value at Path prior to the edit. HadBefore is false when
	// the path did not exist.
	Before    any
	HadBefore bool
}

// staged is the latest uncommitted edit at a path.
type staged struct {
	action reactive.Action
	value  any
	exists bool
}

// Option configures a History.
type Option func(*History)

// WithDelay overrides the debounce delay.
func WithDelay(d time.Duration) Option {
	return func(h *History) {
		if d > 0 {
			h.delay = d
		}
	}
}

// WithScheduler sets the scheduler used for debounce tasks.
func WithScheduler(s Scheduler) Option {
	return func(h *History) {
		if s != nil {
			h.tasks = newTasks(s)
		}
	}
}

// History records committed changes of one reactive value.
type History struct {
	target reactive.Value
	delay  time.Duration
	tasks  *tasks

	mu        sync.Mutex
	origin    any
	staged    map[string]staged
	changes   map[string]any
	undo      []Change
	redo      []Change
	applying  bool
	forgotten bool

	statusMu    sync.Mutex
	status      *reactive.Object
	unsubscribe reactive.Unsubscribe
}

// Watch starts tracking target. The current state becomes the baseline that
// the first change at each path is compared against.
func Watch(target reactive.Value, opts ...Option) *History {
	h := &History{
		target:  target,
		delay:   Delay(),
		tasks:   newTasks(WallScheduler{}),
		origin:  value.Clone(target),
		staged:  make(map[string]staged),
		changes: make(map[string]any),
		status: reactive.NewObject(map[string]any{
			"changed": false,
			"canUndo": false,
			"canRedo": false,
		}, false),
	}
	for _, opt := range opts {
		opt(h)
	}
	h.unsubscribe = target.Subscribe(h.observe, false, nil, nil)
	return h
}

// observe stages a notification and restarts the debounce task for its path.
func (h *History) observe(ev reactive.Event) {
	path := ev.Path
	if reactive.IsMeta(path) {
		return
	}
	// Whole-value operations only make sense for a sequence root.
	if path == "" && !ev.Action.IsSequence() {
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	if h.applying || h.forgotten {
		return
	}

	st := staged{action: ev.Action, exists: true}
	switch {
	case ev.Action == reactive.ActionDelete:
		st.exists = false
	case ev.Action == reactive.ActionSet:
		st.value = value.Clone(ev.Value)
	default:
		// Sequence operations carry their arguments; record the resulting
		// sequence instead.
		current, _ := reactive.Lookup(h.target, path)
		st.value = value.Clone(current)
	}
	h.staged[path] = st
	h.tasks.schedule(path, h.delay, func() { h.commit(path) })
}

// commit moves the staged edit at path onto the undo stack.
func (h *History) commit(path string) {
	h.mu.Lock()
	committed := h.commitLocked(path)
	h.mu.Unlock()
	h.tasks.done(path)
	if committed {
		h.publish()
	}
}

func (h *History) commitLocked(path string) bool {
	st, ok := h.staged[path]
	if !ok || h.forgotten {
		return false
	}
	delete(h.staged, path)

	before, had := h.beforeLocked(path)
	h.undo = append(h.undo, Change{
		Path:      path,
		Action:    st.action,
		Value:     st.value,
		Exists:    st.exists,
		Before:    before,
		HadBefore: had,
	})
	h.redo = nil
	h.changes[path] = value.Clone(st.value)
	return true
}

// beforeLocked resolves the value at path before the staged edit: the latest
// committed change at path, else the baseline.
func (h *History) beforeLocked(path string) (any, bool) {
	for i := len(h.undo) - 1; i >= 0; i-- {
		if c := h.undo[i]; c.Path == path {
			return value.Clone(c.Value), c.Exists
		}
	}
	v, ok := value.Lookup(h.origin, path)
	return value.Clone(v), ok
}

// Flush commits every staged edit without waiting for the delay.
func (h *History) Flush() {
	h.mu.Lock()
	n := h.flushLocked()
	h.mu.Unlock()
	if n > 0 {
		h.publish()
	}
}

func (h *History) flushLocked() int {
	if len(h.staged) == 0 {
		return 0
	}
	paths := slices.Sorted(maps.Keys(h.staged))
	n := 0
	for _, path := range paths {
		if h.commitLocked(path) {
			n++
		}
	}
	h.tasks.cancelAll()
	return n
}

// Undo reverts the most recent change. Staged edits are committed first.
// Returns false when there is nothing to undo.
func (h *History) Undo() bool {
	h.mu.Lock()
	if h.forgotten {
		h.mu.Unlock()
		return false
	}
	h.flushLocked()
	if len(h.undo) == 0 {
		h.mu.Unlock()
		return false
	}

	c := h.undo[len(h.undo)-1]
	h.undo = h.undo[:len(h.undo)-1]
	h.redo = append([]Change{c}, h.redo...)
	h.changes[c.Path] = value.Clone(c.Before)
	if len(h.undo) == 0 {
		clear(h.changes)
	}
	h.applying = true
	h.mu.Unlock()

	h.write(c.Path, c.Before, c.HadBefore)

	h.mu.Lock()
	h.applying = false
	h.mu.Unlock()
	h.publish()
	return true
}

// Redo re-applies the most recently undone change. Returns false when there
// is nothing to redo.
func (h *History) Redo() bool {
	h.mu.Lock()
	if h.forgotten || len(h.redo) == 0 {
		h.mu.Unlock()
		return false
	}

	c := h.redo[0]
	h.redo = h.redo[1:]
	h.undo = append(h.undo, c)
	h.changes[c.Path] = value.Clone(c.Value)
	h.applying = true
	h.mu.Unlock()

	h.write(c.Path, c.Value, c.Exists)

	h.mu.Lock()
	h.applying = false
	h.mu.Unlock()
	h.publish()
	return true
}

// Reset undoes every change and clears the changes view.
func (h *History) Reset() {
	for h.Undo() {
	}
	h.mu.Lock()
	clear(h.changes)
	h.mu.Unlock()
	h.publish()
}

// Clear drops staged edits, the changes view and both stacks without
// touching the tracked value. Its current state becomes the new baseline.
func (h *History) Clear() {
	h.tasks.cancelAll()

	h.mu.Lock()
	clear(h.staged)
	clear(h.changes)
	h.undo = nil
	h.redo = nil
	h.origin = value.Clone(h.target)
	h.mu.Unlock()
	h.publish()
}

// Forget stops tracking. The history keeps its state but no longer records,
// undoes or redoes anything.
func (h *History) Forget() {
	h.mu.Lock()
	if h.forgotten {
		h.mu.Unlock()
		return
	}
	h.forgotten = true
	h.mu.Unlock()

	h.tasks.cancelAll()
	h.unsubscribe()
}

// write applies v (or removes the value when !exists) at path on the tracked
// value.
func (h *History) write(path string, v any, exists bool) {
	var err error
	switch {
	case path == "":
		arr, ok := h.target.(*reactive.Array)
		if !ok {
			return
		}
		items, _ := value.Clone(v).([]any)
		arr.ReplaceItems(items)
	case exists:
		err = reactive.SetPath(h.target, path, value.Clone(v))
	default:
		err = reactive.DeletePath(h.target, path)
	}
	if err != nil {
		slog.Warn("history write failed", "path", path, "error", err)
	}
}

// Status is a snapshot of the derived flags.
type Status struct {
	Changed bool `json:"changed"`
	CanUndo bool `json:"canUndo"`
	CanRedo bool `json:"canRedo"`
}

// publish mirrors the derived flags onto the status record. Debounced
// commits call it from timer goroutines, so the record is only touched with
// statusMu held.
func (h *History) publish() {
	h.statusMu.Lock()
	defer h.statusMu.Unlock()

	h.mu.Lock()
	changed := len(h.changes) > 0
	canUndo := len(h.undo) > 0
	canRedo := len(h.redo) > 0
	h.mu.Unlock()

	h.status.Set("changed", changed)
	h.status.Set("canUndo", canUndo)
	h.status.Set("canRedo", canRedo)
}

// Status returns the flags as last published.
func (h *History) Status() Status {
	h.statusMu.Lock()
	defer h.statusMu.Unlock()
	return Status{
		Changed: h.status.Get("changed") == true,
		CanUndo: h.status.Get("canUndo") == true,
		CanRedo: h.status.Get("canRedo") == true,
	}
}

// OnStatus subscribes fn to the status record {changed, canUndo, canRedo}.
// Each event carries one flag as Path and its new value. fn runs on the
// goroutine that published the change, with the record locked, so it must
// not call Status or OnStatus.
func (h *History) OnStatus(fn reactive.Listener) reactive.Unsubscribe {
	h.statusMu.Lock()
	defer h.statusMu.Unlock()
	unsub := h.status.Subscribe(fn, false, nil, nil)
	return func() {
		h.statusMu.Lock()
		defer h.statusMu.Unlock()
		unsub()
	}
}

// Changes returns a copy of the path to value view of committed changes.
func (h *History) Changes() map[string]any {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make(map[string]any, len(h.changes))
	for k, v := range h.changes {
		out[k] = value.Clone(v)
	}
	return out
}

// UndoStack returns the committed changes, oldest first.
func (h *History) UndoStack() []Change {
	h.mu.Lock()
	defer h.mu.Unlock()
	return slices.Clone(h.undo)
}

// RedoStack returns the undone changes, next to redo first.
func (h *History) RedoStack() []Change {
	h.mu.Lock()
	defer h.mu.Unlock()
	return slices.Clone(h.redo)
}

// Changed reports whether the changes view is non-empty.
func (h *History) Changed() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.changes) > 0
}

// CanUndo reports whether the undo stack is non-empty.
func (h *History) CanUndo() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.undo) > 0
}

// CanRedo reports whether the redo stack is non-empty.
func (h *History) CanRedo() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.redo) > 0
}

// Pending returns the number of paths with staged, uncommitted edits.
func (h *History) Pending() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.staged)
}
