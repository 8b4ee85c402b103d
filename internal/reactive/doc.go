// Package reactive implements the reactive value engine.
//
// A reactive value wraps a record (*Object) or an ordered sequence (*Array)
// and routes every mutation through explicit methods so that changes can be
// classified and broadcast to subscribed listeners:
//
//	obj := reactive.NewObject(map[string]any{"a": map[string]any{"b": 1}}, true)
//	obj.Subscribe(func(ev reactive.Event) {
//	    fmt.Println(ev.Action, ev.Path, ev.Value) // set a.b 2
//	}, false, nil, nil)
//	obj.Get("a").(*reactive.Object).Set("b", 2)
//
// ARCHITECTURE:
//
// Each wrapper owns an emitter: the ordered listener registry plus the
// notifier. Listener bookkeeping lives on the wrapper, never inside the
// wrapped data, so subscriber slots can not collide with user field names
// and never appear in Snapshot or JSON output.
//
// Recursive values convert every nested record or sequence into a child
// wrapper and link it to the parent with a forwarding listener. When a child
// notifies, the parent locates the child among its own entries and prefixes
// the child's key onto the path, so root listeners always see the full dotted
// path ("a.b.c"). A child that can no longer be located degrades the path to
// the immediate property name.
//
// INVARIANTS:
//   - Writing a property to its current value never notifies
//   - Protected keys are written silently
//   - Listeners fire in registration order and only when every declared
//     filter (actions, props) matches
//   - A panicking listener is logged and skipped; a write always completes
//
// Thread-safety: values are single-writer. Callers that share an instance
// across goroutines must serialize access themselves (the store package
// does this for persistent instances).
package reactive
