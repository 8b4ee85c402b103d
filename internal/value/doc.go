// Package value provides the JSON-shaped value model shared by every reactor
// package.
//
// All data held by reactive instances, persisted to durable storage, or sent
// across a broadcast channel is reduced to a small closed set of leaf types:
//
//   - nil
//   - bool
//   - string
//   - int64 (every integral Go number is widened to int64)
//   - float64
//   - map[string]any (record-of-fields)
//   - []any (ordered sequence)
//
// This package imports nothing internal. Higher layers plug in through the
// Snapshotter interface so that reactive wrappers can be serialized without a
// dependency cycle.
//
// Key design constraints:
//   - Canonical encoding sorts object keys by UTF-16 code units and
//     NFC-normalizes strings, so persisted documents are byte-stable
//   - Decoding keeps integers exact (json.Number), never float64 for 42
//   - Paths are dotted strings ("a.0.b"); numeric segments address sequences
package value
