// Package storage provides the durable key/value blob contract used by the
// persistent store, plus two implementations:
//
//   - Memory: process-local map, for tests and headless runs
//   - SQLite: a blobs table in a SQLite database shared by every process
//     that opens the same file
//
// # Database Configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
//   - foreign_keys=ON: Enforce referential integrity
//
// The same database also carries the broadcasts table used by the SQLite
// broadcast channel (package channel), so a single file backs both
// persistence and cross-process sync.
package storage
