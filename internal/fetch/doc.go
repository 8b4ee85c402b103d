// Package fetch binds the result of an HTTP request to a named reactive
// instance.
//
// Prefetch registers the instance under a key derived from the URL and
// request options, so every caller asking for the same request shares one
// instance. Fetch additionally refreshes it when it has never completed, when
// the caller asks for a reload, or when the cache period has elapsed.
//
// A refresh records its outcome as transport metadata (see reactive.MetaKeys)
// through ordinary reactive writes on record instances, and on the Resource
// for every instance. History tracking and persistence skip these fields.
// Successful JSON responses replace the instance content: records through
// reactive.Replace, sequences through Array.ReplaceItems.
//
// Only one request per key runs at a time. When a refresh completes the key
// is released from the host, so the next Prefetch or Fetch starts from a
// fresh instance.
package fetch
