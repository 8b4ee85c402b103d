package store

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/roach88/reactor/internal/channel"
	"github.com/roach88/reactor/internal/reactive"
	"github.com/roach88/reactor/internal/storage"
	"github.com/roach88/reactor/internal/value"
)

// DefaultWriteTimeout bounds a single durable write.
const DefaultWriteTimeout = 5 * time.Second

// Option configures a Persistent store.
type Option func(*Persistent)

// WithVersion sets the document version. A persisted document with another
// version is cleared at startup.
func WithVersion(version string) Option {
	return func(p *Persistent) {
		if version != "" {
			p.version = version
		}
	}
}

// WithKey sets the storage key of the document.
func WithKey(key string) Option {
	return func(p *Persistent) {
		if key != "" {
			p.key = key
		}
	}
}

// WithChannel enables cross-context sync over ch.
func WithChannel(ch channel.Channel) Option {
	return func(p *Persistent) {
		p.channel = ch
	}
}

// WithWriteTimeout bounds each durable write.
func WithWriteTimeout(d time.Duration) Option {
	return func(p *Persistent) {
		if d > 0 {
			p.writeTimeout = d
		}
	}
}

// WithClock sets the clock used to stamp outgoing messages.
func WithClock(c *Clock) Option {
	return func(p *Persistent) {
		p.clock = c
	}
}

// entry is a live persistent instance.
type entry struct {
	data      reactive.Value
	recursive bool
	unwatch   reactive.Unsubscribe
}

// Persistent is a Host whose instances survive restarts and stay in sync
// across contexts sharing the storage and channel.
//
// A nil storage or channel degrades to memory-only or unsynchronized
// operation. Storage and channel failures are logged and never returned.
type Persistent struct {
	storage      storage.Storage
	channel      channel.Channel
	key          string
	writeTimeout time.Duration
	clock        *Clock
	origin       string

	mu      sync.Mutex
	version string
	entries map[string]*entry
	claims  map[string]Entry

	mutate  sync.Mutex
	pending pendingList
	writeMu sync.Mutex

	inbox    *inbox
	unlisten func()
}

// NewPersistent reads the persisted document from st and returns a store
// ready for registration. Incoming messages from the channel are queued until
// Run or Flush applies them.
func NewPersistent(ctx context.Context, st storage.Storage, opts ...Option) *Persistent {
	p := &Persistent{
		storage:      st,
		key:          DefaultKey,
		writeTimeout: DefaultWriteTimeout,
		clock:        NewClock(),
		version:      value.DefaultStoreVersion,
		entries:      make(map[string]*entry),
		claims:       make(map[string]Entry),
		inbox:        newInbox(),
	}
	for _, opt := range opts {
		opt(p)
	}

	if p.channel != nil {
		p.origin = p.channel.Origin()
		p.unlisten = p.channel.Subscribe(p.receive)
	} else {
		p.origin = channel.NewOrigin()
	}

	p.load(ctx)
	return p
}

// load reads the document once. A missing, unreadable or outdated document is
// replaced by an empty one.
func (p *Persistent) load(ctx context.Context) {
	if p.storage == nil {
		return
	}

	data, found, err := p.storage.Read(ctx, p.key)
	if err != nil {
		slog.Warn("persistent storage is not accessible, read ignored", "key", p.key, "error", err)
		return
	}
	if !found {
		p.persist()
		return
	}

	doc, err := DecodeDocument(data)
	if err != nil {
		slog.Warn("persisted document is malformed, clearing", "key", p.key, "error", err)
		p.persist()
		return
	}
	if doc.Version != p.version {
		slog.Info("persisted document version changed, clearing",
			"key", p.key,
			"stored", doc.Version,
			"current", p.version,
		)
		p.persist()
		return
	}

	p.mu.Lock()
	for name, e := range doc.Store {
		p.claims[name] = e
	}
	p.mu.Unlock()

	slog.Debug("persisted document loaded", "key", p.key, "claims", len(doc.Store))
}

// Origin returns the id stamped on this store's outgoing messages.
func (p *Persistent) Origin() string {
	return p.origin
}

// Version returns the current document version.
func (p *Persistent) Version() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.version
}

// Register returns the persistent instance for name, creating it when
// needed. A claimed name is rehydrated from the persisted value, whose fields
// overwrite those of v.
func (p *Persistent) Register(name string, v any, recursive bool, protected ...string) any {
	p.mu.Lock()
	if e, ok := p.entries[name]; ok {
		p.mu.Unlock()
		return e.data
	}

	data := v
	claim, claimed := p.claims[name]
	if claimed {
		data = value.Merge(v, claim.Data)
	}

	inst := reactive.New(data, recursive, protected...)
	rv, ok := inst.(reactive.Value)
	if !ok {
		p.mu.Unlock()
		return inst
	}

	if claimed {
		delete(p.claims, name)
	}
	e := &entry{data: rv, recursive: recursive}
	e.unwatch = rv.Subscribe(func(ev reactive.Event) {
		p.changed(name, ev)
	}, false, nil, nil)
	p.entries[name] = e
	p.mu.Unlock()

	if !claimed {
		p.persist()
	}
	return rv
}

// Lookup returns the live instance registered under name.
func (p *Persistent) Lookup(name string) (reactive.Value, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	e, ok := p.entries[name]
	if !ok {
		return nil, false
	}
	return e.data, true
}

// Claimed reports whether name is persisted but not yet registered.
func (p *Persistent) Claimed(name string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	_, ok := p.claims[name]
	return ok
}

// Names returns every registered or claimed name in sorted order.
func (p *Persistent) Names() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	names := make([]string, 0, len(p.entries)+len(p.claims))
	for name := range p.entries {
		names = append(names, name)
	}
	for name := range p.claims {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Release detaches the live instance for name. Its current value stays
// persisted and is rehydrated by the next Register.
func (p *Persistent) Release(name string) {
	p.mu.Lock()
	defer p.mu.Unlock()

	e, ok := p.entries[name]
	if !ok {
		return
	}
	e.unwatch()
	delete(p.entries, name)
	p.claims[name] = Entry{Data: value.Clone(e.data), Recursive: e.recursive}
}

// Purge drops name from the store and rewrites storage.
func (p *Persistent) Purge(name string) bool {
	p.mu.Lock()
	e, live := p.entries[name]
	_, claimed := p.claims[name]
	if live {
		e.unwatch()
		delete(p.entries, name)
	}
	delete(p.claims, name)
	p.mu.Unlock()

	if !live && !claimed {
		return false
	}
	p.persist()
	return true
}

// Upgrade switches the document version. A different version clears every
// entry and rewrites storage. Returns false when version is already current.
func (p *Persistent) Upgrade(version string) bool {
	p.mu.Lock()
	if version == "" || version == p.version {
		p.mu.Unlock()
		return false
	}
	old := p.version
	p.version = version
	for name, e := range p.entries {
		e.unwatch()
		delete(p.entries, name)
	}
	clear(p.claims)
	p.mu.Unlock()

	slog.Info("persistent store upgraded", "from", old, "to", version)
	p.persist()
	return true
}

// Snapshot returns the document as it would be persisted now.
func (p *Persistent) Snapshot() Document {
	p.mu.Lock()
	defer p.mu.Unlock()

	doc := Document{Version: p.version, Store: make(map[string]Entry, len(p.entries)+len(p.claims))}
	for name, c := range p.claims {
		doc.Store[name] = Entry{Data: value.Clone(c.Data), Recursive: c.Recursive}
	}
	for name, e := range p.entries {
		doc.Store[name] = Entry{Data: value.Clone(e.data), Recursive: e.recursive}
	}
	return doc
}

// Do runs fn while holding the mutation lock, serializing it with Reflect.
func (p *Persistent) Do(fn func()) {
	p.mutate.Lock()
	defer p.mutate.Unlock()
	fn()
}

// changed is the writer subscribed to every persistent instance.
func (p *Persistent) changed(name string, ev reactive.Event) {
	if reactive.IsMeta(ev.Path) {
		return
	}
	if p.pending.take(compositeKey(name, ev.Path, ev.Action)) {
		return
	}

	p.Publish(Message{
		Store:  name,
		Path:   ev.Path,
		Action: ev.Action,
		Value:  value.Clone(ev.Value),
	})
	p.persist()
}

// Publish posts msg on the channel, stamping origin and sequence. Failures
// are logged.
func (p *Persistent) Publish(msg Message) {
	if p.channel == nil {
		return
	}
	msg.Origin = p.origin
	msg.Seq = p.clock.Next()

	payload, err := EncodeMessage(msg)
	if err != nil {
		slog.Warn("sync message not published", "store", msg.Store, "path", msg.Path, "error", err)
		return
	}
	if err := p.channel.Post(payload); err != nil {
		slog.Warn("broadcast channel is not accessible, publish ignored",
			"channel", p.channel.Name(),
			"store", msg.Store,
			"error", err,
		)
	}
}

// Reflect applies a message from another context to the matching instance.
// Failures are logged and returned; the instance is left as it was.
func (p *Persistent) Reflect(msg Message) error {
	err := p.reflect(msg)
	if err != nil {
		slog.Warn("sync message dropped",
			"store", msg.Store,
			"path", msg.Path,
			"action", msg.Action,
			"error", err,
		)
	}
	return err
}

func (p *Persistent) reflect(msg Message) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = newSyncError(ErrCodeApplyFailed, msg, "mutation panicked", fmt.Errorf("%v", r))
		}
	}()

	inst, ok := p.Lookup(msg.Store)
	if !ok {
		return newSyncError(ErrCodeUnknownStore, msg, "no persistent instance with this name", nil)
	}
	if !msg.Action.Valid() {
		return newSyncError(ErrCodeUnsupportedAction, msg, "unknown action "+string(msg.Action), nil)
	}

	p.mutate.Lock()
	defer p.mutate.Unlock()

	key := msg.Key()
	p.pending.push(key)
	// A write that changed nothing never consumes its key.
	defer p.pending.take(key)

	// Below a missing or plain intermediate, the write notifies as a set of
	// that intermediate.
	if msg.Action == reactive.ActionSet || msg.Action == reactive.ActionDelete {
		if at := reactive.SetPoint(inst, msg.Path); at != msg.Path {
			atKey := compositeKey(msg.Store, at, reactive.ActionSet)
			p.pending.push(atKey)
			defer p.pending.take(atKey)
		}
	}

	switch {
	case msg.Action == reactive.ActionSet:
		if err := reactive.SetPath(inst, msg.Path, msg.Value); err != nil {
			return newSyncError(ErrCodeInvalidPath, msg, "set failed", err)
		}
	case msg.Action == reactive.ActionDelete:
		if err := reactive.DeletePath(inst, msg.Path); err != nil {
			return newSyncError(ErrCodeInvalidPath, msg, "delete failed", err)
		}
	default:
		target, found := reactive.Lookup(inst, msg.Path)
		arr, isArray := target.(*reactive.Array)
		if !found || !isArray {
			return newSyncError(ErrCodeInvalidPath, msg, "path does not address a sequence", nil)
		}
		args, _ := msg.Value.([]any)
		if err := arr.Apply(msg.Action, args); err != nil {
			return newSyncError(ErrCodeApplyFailed, msg, "sequence operation failed", err)
		}
	}
	return nil
}

// receive queues a payload delivered by the channel.
func (p *Persistent) receive(payload string) {
	msg, err := DecodeMessage(payload)
	if err != nil {
		slog.Warn("sync payload dropped", "error", err)
		return
	}
	if msg.Origin != "" && msg.Origin == p.origin {
		return
	}
	if !p.inbox.Enqueue(msg) {
		slog.Debug("sync payload after close dropped", "store", msg.Store)
	}
}

// Flush applies every queued message in the calling goroutine and returns
// how many were processed.
func (p *Persistent) Flush() int {
	n := 0
	for {
		msg, ok := p.inbox.TryDequeue()
		if !ok {
			return n
		}
		p.Reflect(msg)
		n++
	}
}

// Run applies incoming messages until ctx is cancelled or the store is
// closed. Run must be called from exactly one goroutine.
func (p *Persistent) Run(ctx context.Context) error {
	for {
		p.Flush()

		select {
		case <-ctx.Done():
			return ctx.Err()
		case _, ok := <-p.inbox.Wait():
			if !ok {
				p.Flush()
				return nil
			}
		}
	}
}

// Close stops receiving messages and wakes Run. Queued messages are still
// applied by Run before it returns.
func (p *Persistent) Close() {
	if p.unlisten != nil {
		p.unlisten()
	}
	p.inbox.Close()
}

// persist writes the whole document. Failures are logged.
func (p *Persistent) persist() {
	if p.storage == nil {
		return
	}

	data, err := EncodeDocument(p.Snapshot())
	if err != nil {
		slog.Warn("persistent document not written", "key", p.key, "error", err)
		return
	}

	p.writeMu.Lock()
	defer p.writeMu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), p.writeTimeout)
	defer cancel()
	if err := p.storage.Write(ctx, p.key, data); err != nil {
		slog.Warn("persistent storage is not accessible, write ignored", "key", p.key, "error", err)
	}
}
