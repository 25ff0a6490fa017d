package watcher

import (
	"time"
)

// Operation is the kind of change observed for a path.
type Operation int

const (
	OpCreate Operation = iota
	OpModify
	OpDelete
	OpRename
)

// String returns a human-readable representation of the operation.
func (op Operation) String() string {
	switch op {
	case OpCreate:
		return "CREATE"
	case OpModify:
		return "MODIFY"
	case OpDelete:
		return "DELETE"
	case OpRename:
		return "RENAME"
	default:
		return "UNKNOWN"
	}
}

// FileEvent is one change to a file or directory under the watched root.
type FileEvent struct {
	// Path is relative to the watched root, slash separated.
	Path      string
	Operation Operation
	IsDir     bool
	Timestamp time.Time
}

// Options configures the watcher behavior.
type Options struct {
	// DebounceWindow is how long the tree must stay quiet before a batch
	// is emitted. Default: 500ms
	DebounceWindow time.Duration

	// EventBufferSize is the number of batches buffered before new ones are
	// dropped. Default: 16
	EventBufferSize int

	// ExcludePatterns use the scanner's pattern syntax.
	ExcludePatterns []string

	// IgnoreDirs are absolute directories never reported, typically the
	// data directory when it lives under the source directory.
	IgnoreDirs []string
}

// DefaultOptions returns the default watcher options.
func DefaultOptions() Options {
	return Options{
		DebounceWindow:  500 * time.Millisecond,
		EventBufferSize: 16,
	}
}

// WithDefaults returns options with defaults applied for zero values.
func (o Options) WithDefaults() Options {
	defaults := DefaultOptions()
	if o.DebounceWindow <= 0 {
		o.DebounceWindow = defaults.DebounceWindow
	}
	if o.EventBufferSize <= 0 {
		o.EventBufferSize = defaults.EventBufferSize
	}
	return o
}
