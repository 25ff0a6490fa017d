package watcher

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/Aman-CERP/tutor/internal/scanner"
)

// Watcher reports debounced changes below one root directory using fsnotify.
// New directories are added to the watch set as they appear.
type Watcher struct {
	fs        *fsnotify.Watcher
	debouncer *Debouncer
	opts      Options
	root      string
	filter    *scanner.Filter
	errors    chan error

	stopOnce sync.Once
}

// New creates a watcher. Call Start to begin receiving events.
func New(opts Options) (*Watcher, error) {
	opts = opts.WithDefaults()
	ignore := make([]string, 0, len(opts.IgnoreDirs))
	for _, dir := range opts.IgnoreDirs {
		if abs, err := filepath.Abs(dir); err == nil {
			ignore = append(ignore, abs)
		}
	}
	opts.IgnoreDirs = ignore
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create fsnotify watcher: %w", err)
	}
	return &Watcher{
		fs:        fsw,
		debouncer: NewDebouncer(opts.DebounceWindow, opts.EventBufferSize),
		opts:      opts,
		errors:    make(chan error, 8),
	}, nil
}

// Events returns debounced batches. The channel closes after Stop.
func (w *Watcher) Events() <-chan []FileEvent {
	return w.debouncer.Output()
}

// Errors returns non-fatal watcher errors.
func (w *Watcher) Errors() <-chan error {
	return w.errors
}

// Start registers root and its subdirectories, then processes raw events
// until ctx is cancelled or Stop is called.
func (w *Watcher) Start(ctx context.Context, root string) error {
	abs, err := filepath.Abs(root)
	if err != nil {
		return fmt.Errorf("resolve absolute path: %w", err)
	}
	w.root = abs
	w.filter, err = scanner.NewFilter(abs, w.opts.ExcludePatterns)
	if err != nil {
		slog.Warn("ignore file not applied", slog.String("error", err.Error()))
	}
	if err := w.addTree(abs); err != nil {
		return fmt.Errorf("watch %s: %w", abs, err)
	}

	go w.loop(ctx)
	return nil
}

// Stop releases the fsnotify handle and closes Events. Safe to call more than once.
func (w *Watcher) Stop() error {
	var err error
	w.stopOnce.Do(func() {
		err = w.fs.Close()
		w.debouncer.Stop()
	})
	return err
}

func (w *Watcher) loop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			_ = w.Stop()
			return
		case ev, ok := <-w.fs.Events:
			if !ok {
				return
			}
			w.handle(ev)
		case err, ok := <-w.fs.Errors:
			if !ok {
				return
			}
			select {
			case w.errors <- err:
			default:
				slog.Warn("watcher error", slog.String("error", err.Error()))
			}
		}
	}
}

func (w *Watcher) handle(ev fsnotify.Event) {
	var op Operation
	switch {
	case ev.Has(fsnotify.Create):
		op = OpCreate
	case ev.Has(fsnotify.Write):
		op = OpModify
	case ev.Has(fsnotify.Remove):
		op = OpDelete
	case ev.Has(fsnotify.Rename):
		op = OpRename
	default:
		return
	}

	isDir := false
	if fi, err := os.Stat(ev.Name); err == nil {
		isDir = fi.IsDir()
	}
	if filepath.Dir(ev.Name) == w.root && filepath.Base(ev.Name) == scanner.IgnoreFileName {
		if err := w.filter.Reload(); err != nil {
			slog.Warn("ignore file not reloaded", slog.String("error", err.Error()))
		}
		// Any rule change can add or remove documents.
		w.debouncer.Add(FileEvent{Path: scanner.IgnoreFileName, Operation: OpModify, Timestamp: time.Now()})
		return
	}

	rel, ok := w.relative(ev.Name, isDir)
	if !ok {
		return
	}

	if op == OpCreate && isDir {
		if err := w.addTree(ev.Name); err != nil {
			slog.Warn("failed to watch new directory",
				slog.String("path", ev.Name),
				slog.String("error", err.Error()))
		}
	}

	w.debouncer.Add(FileEvent{Path: rel, Operation: op, IsDir: isDir, Timestamp: time.Now()})
}

// relative maps an absolute event path to a root-relative one and reports
// false for paths that must not trigger rebuilds.
func (w *Watcher) relative(abs string, isDir bool) (string, bool) {
	for _, dir := range w.opts.IgnoreDirs {
		if within(abs, dir) {
			return "", false
		}
	}
	rel, err := filepath.Rel(w.root, abs)
	if err != nil || rel == "." || strings.HasPrefix(rel, "..") {
		return "", false
	}
	rel = filepath.ToSlash(rel)
	if w.filter.Excluded(rel, isDir) {
		return "", false
	}
	return rel, true
}

func (w *Watcher) addTree(dir string) error {
	return filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if !d.IsDir() {
			return nil
		}
		if path != w.root {
			if _, ok := w.relative(path, true); !ok {
				return filepath.SkipDir
			}
		}
		return w.fs.Add(path)
	})
}

func within(path, dir string) bool {
	if dir == "" {
		return false
	}
	rel, err := filepath.Rel(dir, path)
	return err == nil && rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}
