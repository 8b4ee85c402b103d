// Package history tracks changes to a reactive value and offers undo and
// redo over them.
//
// Watch subscribes to an instance and stages each change per path. A staged
// path is committed to the undo stack once it has been quiet for the debounce
// delay, so a burst of writes to one path becomes a single Change whose
// Before is the value prior to the first write of the burst.
//
// Transport metadata written by the fetch collaborator (see reactive.IsMeta)
// is never recorded.
//
// Commits run on scheduler goroutines and only touch history state. The
// status record is guarded by its own lock: Status returns a copy, and
// OnStatus listeners run on whichever goroutine changed the history.
package history
