package history

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/reactor/internal/reactive"
	"github.com/roach88/reactor/internal/testutil"
)

const delay = 500 * time.Millisecond

func watchObject(t *testing.T, fields map[string]any) (*reactive.Object, *History, *testutil.ManualScheduler) {
	t.Helper()
	sched := testutil.NewManualScheduler()
	obj := reactive.NewObject(fields, true)
	h := Watch(obj, WithScheduler(sched), WithDelay(delay))
	t.Cleanup(h.Forget)
	return obj, h, sched
}

func TestHistory_RoundTrip(t *testing.T) {
	obj, h, sched := watchObject(t, map[string]any{"x": 1})

	obj.Set("x", 2)
	assert.False(t, h.CanUndo(), "nothing is committed inside the debounce window")
	assert.Equal(t, 1, h.Pending())

	sched.Advance(delay)
	require.True(t, h.CanUndo())
	assert.Equal(t, map[string]any{"x": int64(2)}, h.Changes())
	assert.True(t, h.Changed())

	require.True(t, h.Undo())
	assert.Equal(t, int64(1), obj.Get("x"))
	assert.Empty(t, h.Changes())
	assert.False(t, h.Changed())
	assert.True(t, h.CanRedo())

	require.True(t, h.Redo())
	assert.Equal(t, int64(2), obj.Get("x"))
	assert.Equal(t, map[string]any{"x": int64(2)}, h.Changes())
	assert.False(t, h.CanRedo())

	// Undo and redo writes are not recorded as new edits.
	sched.Advance(time.Hour)
	assert.Len(t, h.UndoStack(), 1)
}

func TestHistory_DebounceCoalesces(t *testing.T) {
	obj, h, sched := watchObject(t, map[string]any{"x": 1})

	obj.Set("x", 2)
	sched.Advance(100 * time.Millisecond)
	obj.Set("x", 3)
	sched.Advance(100 * time.Millisecond)
	obj.Set("x", 4)
	sched.Advance(delay - time.Millisecond)
	assert.Empty(t, h.UndoStack(), "each write restarts the timer")

	sched.Advance(time.Millisecond)
	stack := h.UndoStack()
	require.Len(t, stack, 1)
	assert.Equal(t, "x", stack[0].Path)
	assert.Equal(t, reactive.ActionSet, stack[0].Action)
	assert.Equal(t, int64(1), stack[0].Before)
	assert.Equal(t, int64(4), stack[0].Value)
}

func TestHistory_BeforeComesFromLatestChange(t *testing.T) {
	obj, h, sched := watchObject(t, map[string]any{"x": 1})

	obj.Set("x", 2)
	sched.Advance(delay)
	obj.Set("x", 3)
	sched.Advance(delay)

	stack := h.UndoStack()
	require.Len(t, stack, 2)
	assert.Equal(t, int64(2), stack[1].Before)

	h.Undo()
	assert.Equal(t, int64(2), obj.Get("x"))
	assert.Equal(t, map[string]any{"x": int64(2)}, h.Changes())
	h.Undo()
	assert.Equal(t, int64(1), obj.Get("x"))
	assert.False(t, h.Undo())

	// Redo replays oldest-undone last.
	h.Redo()
	assert.Equal(t, int64(2), obj.Get("x"))
	h.Redo()
	assert.Equal(t, int64(3), obj.Get("x"))
}

func TestHistory_NewEditClearsRedo(t *testing.T) {
	obj, h, sched := watchObject(t, map[string]any{"x": 1, "y": 1})

	obj.Set("x", 2)
	sched.Advance(delay)
	h.Undo()
	require.True(t, h.CanRedo())

	obj.Set("y", 5)
	sched.Advance(delay)
	assert.False(t, h.CanRedo())
	assert.Empty(t, h.RedoStack())
}

func TestHistory_NestedPathsAndDeletes(t *testing.T) {
	obj, h, sched := watchObject(t, map[string]any{
		"profile": map[string]any{"name": "ada"},
	})
	profile := obj.Get("profile").(*reactive.Object)

	profile.Set("name", "grace")
	obj.Set("added", true)
	sched.Advance(delay)

	stack := h.UndoStack()
	require.Len(t, stack, 2)
	assert.Equal(t, map[string]any{"added": true, "profile.name": "grace"}, h.Changes())

	h.Undo()
	h.Undo()
	assert.Equal(t, "ada", profile.Get("name"))
	assert.False(t, obj.Has("added"), "undoing an addition removes the field")

	obj.Delete("profile")
	sched.Advance(delay)
	last := h.UndoStack()[0]
	assert.False(t, last.Exists)
	assert.True(t, last.HadBefore)

	h.Undo()
	got, ok := reactive.Lookup(obj, "profile.name")
	require.True(t, ok)
	assert.Equal(t, "ada", got)
}

func TestHistory_SequenceOperations(t *testing.T) {
	sched := testutil.NewManualScheduler()
	list := reactive.NewArray([]any{1, 2}, true)
	h := Watch(list, WithScheduler(sched), WithDelay(delay))
	defer h.Forget()

	list.Push(3)
	list.Push(4)
	sched.Advance(delay)

	stack := h.UndoStack()
	require.Len(t, stack, 1)
	assert.Equal(t, []any{int64(1), int64(2)}, stack[0].Before)
	assert.Equal(t, []any{int64(1), int64(2), int64(3), int64(4)}, stack[0].Value)

	h.Undo()
	assert.Equal(t, []any{int64(1), int64(2)}, list.Snapshot())
	h.Redo()
	assert.Equal(t, []any{int64(1), int64(2), int64(3), int64(4)}, list.Snapshot())
}

func TestHistory_NestedSequence(t *testing.T) {
	obj, h, sched := watchObject(t, map[string]any{"tags": []any{"a"}})

	obj.Get("tags").(*reactive.Array).Push("b")
	sched.Advance(delay)

	assert.Equal(t, map[string]any{"tags": []any{"a", "b"}}, h.Changes())
	h.Undo()
	assert.Equal(t, []any{"a"}, reactive.Snapshot(obj.Get("tags")))
}

func TestHistory_IgnoresTransportMetadata(t *testing.T) {
	obj, h, sched := watchObject(t, map[string]any{"x": 1})

	obj.Set(reactive.MetaStatus, 200)
	obj.Set(reactive.MetaError, "boom")
	obj.Set(reactive.MetaResponse, map[string]any{"ok": true})
	sched.Advance(delay)

	assert.Zero(t, sched.Pending())
	assert.Empty(t, h.UndoStack())
	assert.False(t, h.Changed())
}

func TestHistory_Reset(t *testing.T) {
	obj, h, sched := watchObject(t, map[string]any{"x": 1, "y": "a"})

	obj.Set("x", 2)
	sched.Advance(delay)
	obj.Set("y", "b")
	sched.Advance(delay)
	obj.Set("x", 3)
	sched.Advance(delay)

	h.Reset()
	assert.Equal(t, int64(1), obj.Get("x"))
	assert.Equal(t, "a", obj.Get("y"))
	assert.False(t, h.CanUndo())
	assert.False(t, h.Changed())
	assert.Len(t, h.RedoStack(), 3)
}

func TestHistory_ClearKeepsValues(t *testing.T) {
	obj, h, sched := watchObject(t, map[string]any{"x": 1})

	obj.Set("x", 2)
	sched.Advance(delay)
	obj.Set("x", 3)

	h.Clear()
	assert.Equal(t, int64(3), obj.Get("x"))
	assert.False(t, h.Changed())
	assert.False(t, h.CanUndo())
	assert.Zero(t, h.Pending())
	sched.Advance(delay)
	assert.Empty(t, h.UndoStack(), "staged edits are dropped")

	// The current state is the new baseline.
	obj.Set("x", 4)
	sched.Advance(delay)
	assert.Equal(t, int64(3), h.UndoStack()[0].Before)
}

func TestHistory_UndoCommitsStagedEdits(t *testing.T) {
	obj, h, _ := watchObject(t, map[string]any{"x": 1})

	obj.Set("x", 2)
	require.True(t, h.Undo())
	assert.Equal(t, int64(1), obj.Get("x"))
	assert.Zero(t, h.Pending())
}

func TestHistory_Flush(t *testing.T) {
	obj, h, sched := watchObject(t, map[string]any{"x": 1, "y": 1})

	obj.Set("y", 2)
	obj.Set("x", 2)
	h.Flush()

	stack := h.UndoStack()
	require.Len(t, stack, 2)
	assert.Equal(t, "x", stack[0].Path, "flushed in path order")
	assert.Zero(t, sched.Advance(delay), "flushed tasks are cancelled")
}

func TestHistory_Forget(t *testing.T) {
	obj, h, sched := watchObject(t, map[string]any{"x": 1})

	obj.Set("x", 2)
	sched.Advance(delay)
	h.Forget()
	h.Forget()

	obj.Set("x", 3)
	sched.Advance(delay)
	assert.Len(t, h.UndoStack(), 1)
	assert.False(t, h.Undo())
	assert.Equal(t, int64(3), obj.Get("x"))
}

func TestHistory_StatusRecord(t *testing.T) {
	obj, h, sched := watchObject(t, map[string]any{"x": 1})

	var seen []string
	unsub := h.OnStatus(func(ev reactive.Event) {
		seen = append(seen, ev.Path)
	})

	obj.Set("x", 2)
	sched.Advance(delay)
	assert.Equal(t, Status{Changed: true, CanUndo: true}, h.Status())
	assert.Equal(t, []string{"changed", "canUndo"}, seen)

	h.Undo()
	assert.Equal(t, Status{CanRedo: true}, h.Status())
	assert.Equal(t, []string{"changed", "canUndo", "changed", "canUndo", "canRedo"}, seen)

	unsub()
	h.Redo()
	assert.Len(t, seen, 5)
}

func TestHistory_StatusReadDuringTimerCommit(t *testing.T) {
	obj := reactive.NewObject(map[string]any{"x": 1}, true)
	h := Watch(obj, WithDelay(time.Millisecond))
	defer h.Forget()

	var published atomic.Int32
	h.OnStatus(func(reactive.Event) { published.Add(1) })

	obj.Set("x", 2)
	require.Eventually(t, func() bool {
		return h.Status().CanUndo
	}, time.Second, time.Millisecond)
	assert.True(t, h.Status().Changed)
	assert.Equal(t, int32(2), published.Load())
}

func TestDelay_Global(t *testing.T) {
	t.Cleanup(func() { SetDelay(0) })

	assert.Equal(t, DefaultDelay, Delay())
	SetDelay(50 * time.Millisecond)
	assert.Equal(t, 50*time.Millisecond, Delay())

	sched := testutil.NewManualScheduler()
	obj := reactive.NewObject(map[string]any{"x": 1}, true)
	h := Watch(obj, WithScheduler(sched))
	defer h.Forget()

	obj.Set("x", 2)
	sched.Advance(50 * time.Millisecond)
	assert.True(t, h.CanUndo())

	SetDelay(-1)
	assert.Equal(t, DefaultDelay, Delay())
}

func TestWallScheduler(t *testing.T) {
	obj := reactive.NewObject(map[string]any{"x": 1}, true)
	h := Watch(obj, WithDelay(10*time.Millisecond))
	defer h.Forget()

	obj.Set("x", 2)
	require.Eventually(t, h.CanUndo, time.Second, 5*time.Millisecond)
}

func changeRecords(changes []Change) []any {
	out := make([]any, len(changes))
	for i, c := range changes {
		out[i] = map[string]any{
			"path":      c.Path,
			"action":    string(c.Action),
			"value":     c.Value,
			"exists":    c.Exists,
			"before":    c.Before,
			"hadBefore": c.HadBefore,
		}
	}
	return out
}

func TestHistory_TraceGolden(t *testing.T) {
	obj, h, sched := watchObject(t, map[string]any{"title": "draft", "tags": []any{"a"}})

	obj.Set("title", "final")
	sched.Advance(delay)
	obj.Get("tags").(*reactive.Array).Push("b")
	sched.Advance(delay)
	obj.Delete("title")
	sched.Advance(delay)
	require.True(t, h.Undo())

	testutil.AssertGolden(t, "undo_trace", map[string]any{
		"undo":    changeRecords(h.UndoStack()),
		"redo":    changeRecords(h.RedoStack()),
		"changes": h.Changes(),
		"value":   obj,
	})
}
