// Package channel implements named broadcast channels used to synchronize
// persistent state across execution contexts.
//
// A Channel posts string payloads to every other endpoint opened on the same
// name. An endpoint never receives its own posts, matching the browser
// BroadcastChannel contract the sync layer was designed against.
//
// Two implementations are provided:
//
//   - Hub: in-process fan-out between endpoints created from one Hub.
//     Delivery is synchronous on the posting goroutine.
//   - SQLite: cross-process fan-out through an append-only broadcasts table.
//     Each endpoint has an origin id (UUIDv7) and polls rows past its cursor
//     that were written by other origins.
package channel
