// Package store keeps named reactive instances.
//
// A Host is chosen once at process start and passed to whatever needs named
// state:
//
//   - Headless: no host context. Every registration returns a fresh reactive
//     value and nothing is deduplicated.
//   - Registry: an in-memory map guaranteeing one instance per name.
//   - Persistent: a Registry whose instances are also written to durable
//     storage and synchronized with other execution contexts over a broadcast
//     channel.
//
// # Persistence
//
// Persistent reads its document once at construction. The document is a JSON
// blob stored under a single key:
//
//	{"store":{"<name>":{"data":<value>,"recursive":<bool>}},"version":"1.0.0"}
//
// A document tagged with a different version is cleared and rewritten. Names
// found in the document are claimed but not rehydrated until they are first
// registered, at which point the persisted fields overwrite the caller's
// default value.
//
// # Sync
//
// Every local change to a persistent instance is published as a Message and
// the whole document is written back. Incoming messages are queued and applied
// by Run. Before applying a message its key "store:path:action" is pushed onto
// a pending list, and the change notification the application produces
// consumes that key instead of publishing again. This keeps a remote change
// from bouncing back to its sender.
//
// Thread-safety: the name maps, instance mutation (Reflect and Do), the
// pending list and durable writes are each guarded by their own mutex.
// Reactive values themselves are not safe for concurrent use; mutate
// persistent instances from other goroutines through Do.
package store
