// Package watcher notices edits under the textbook directory so that
// `tutor index --watch` can rebuild incrementally.
//
// Raw fsnotify events are filtered against the same exclude patterns the
// scanner uses, then debounced so a burst of editor saves produces one batch.
// Each batch triggers one call of the rebuild callback passed to Run.
package watcher
