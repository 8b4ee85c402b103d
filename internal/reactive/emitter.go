package reactive

import (
	"log/slog"
	"slices"
	"sync"

	"github.com/roach88/reactor/internal/value"
)

// Event describes one change notification.
type Event struct {
	// Self is the instance whose listeners are being notified.
	Self Value

	// Prop is the property (field name, index, or "" for whole-sequence
	// operations) that changed at the originating container.
	Prop string

	// Value is the assigned value for set, nil for delete, and the
	// operation arguments for sequence actions.
	Value any

	// Action is the mutation kind. It is empty for the immediate invocation
	// performed by Subscribe(init=true).
	Action Action

	// Path is the dotted path from Self to the changed property.
	Path string

	// Origin is the container that raised the change once resolved against
	// Self. Listeners receive Origin == Self after path resolution.
	Origin Value
}

// Key returns the path used for prop filtering: the path when set, the
// property otherwise.
func (e Event) Key() string {
	if e.Path != "" {
		return e.Path
	}
	return e.Prop
}

// Listener receives change notifications.
type Listener func(Event)

// Unsubscribe removes a listener. Calling it more than once is a no-op.
type Unsubscribe func()

type subscription struct {
	fn      Listener
	actions []Action
	props   []string
}

func (s *subscription) accepts(ev Event) bool {
	if s.actions != nil && !slices.Contains(s.actions, ev.Action) {
		return false
	}
	if s.props != nil && !slices.Contains(s.props, ev.Key()) {
		return false
	}
	return true
}

// emitter is the listener registry and notifier shared by *Object and *Array.
type emitter struct {
	self      Value
	recursive bool
	protected []string
	subs      []*subscription
	links     map[Value]Unsubscribe
}

func (e *emitter) init(self Value, recursive bool, protected []string) {
	e.self = self
	e.recursive = recursive
	e.protected = slices.Clone(protected)
}

// Recursive reports whether nested structures are converted.
func (e *emitter) Recursive() bool {
	return e.recursive
}

// Subscribe registers a listener. See Value.Subscribe.
func (e *emitter) Subscribe(fn Listener, init bool, actions []Action, props []string) Unsubscribe {
	if init {
		e.dispatch(fn, Event{Self: e.self, Origin: e.self})
	}

	sub := &subscription{fn: fn, actions: actions, props: props}
	e.subs = append(e.subs, sub)

	var once sync.Once
	return func() {
		once.Do(func() {
			e.subs = slices.DeleteFunc(e.subs, func(s *subscription) bool { return s == sub })
		})
	}
}

// SubscribeFor registers fn filtered by actions and props, without the
// immediate invocation.
func (e *emitter) SubscribeFor(actions []Action, fn Listener, props []string) Unsubscribe {
	return e.Subscribe(fn, false, actions, props)
}

// SubscribeActions registers fn filtered by actions.
func (e *emitter) SubscribeActions(actions []Action, fn Listener) Unsubscribe {
	return e.Subscribe(fn, false, actions, nil)
}

// SubscribeProps registers fn filtered by props.
func (e *emitter) SubscribeProps(props []string, fn Listener) Unsubscribe {
	return e.Subscribe(fn, false, nil, props)
}

// Notify resolves the change path and notifies listeners in registration
// order. Listeners registered or removed during dispatch take effect on the
// next notification.
func (e *emitter) Notify(v any, prop string, action Action, path string, origin Value) {
	if action == "" {
		return
	}
	if origin != nil && origin != e.self {
		if key, ok := e.self.locate(origin); ok {
			path = value.JoinPath(key, path)
		} else {
			path = prop
		}
	} else if origin == nil {
		path = prop
	}

	ev := Event{
		Self:   e.self,
		Prop:   prop,
		Value:  v,
		Action: action,
		Path:   path,
		Origin: e.self,
	}

	for _, sub := range slices.Clone(e.subs) {
		if sub.accepts(ev) {
			e.dispatch(sub.fn, ev)
		}
	}
}

func (e *emitter) dispatch(fn Listener, ev Event) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("reactive listener panicked",
				"action", ev.Action,
				"path", ev.Path,
				"panic", r,
			)
		}
	}()
	fn(ev)
}

// link attaches a forwarding listener to child so its changes propagate
// through this value's notifier. Linking the same child twice is a no-op.
func (e *emitter) link(child Value) {
	if child == e.self {
		return
	}
	if e.links == nil {
		e.links = make(map[Value]Unsubscribe)
	}
	if _, ok := e.links[child]; ok {
		return
	}
	e.links[child] = child.Subscribe(func(ev Event) {
		e.Notify(ev.Value, ev.Prop, ev.Action, ev.Path, child)
	}, false, nil, nil)
}

// unlinkDetached drops forwarding listeners of children no longer held.
func (e *emitter) unlinkDetached() {
	for child, unsub := range e.links {
		if !e.self.contains(child) {
			unsub()
			delete(e.links, child)
		}
	}
}

// adopt converts a structured value for storage when recursive, linking the
// resulting child. Non-structured values and non-recursive emitters return v
// unchanged.
func (e *emitter) adopt(v any) any {
	if !e.recursive {
		return v
	}
	child, ok := wrap(v, e.recursive)
	if !ok {
		return v
	}
	e.link(child)
	return child
}
