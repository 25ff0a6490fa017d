package index

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/gofrs/flock"
)

// lockRetryDelay is how often Lock polls a lock held by another process.
const lockRetryDelay = 250 * time.Millisecond

// BuildLock is the cross-process single-writer lock for one data directory.
// Works on all platforms supported by gofrs/flock.
type BuildLock struct {
	path   string
	flock  *flock.Flock
	locked bool
}

// NewBuildLock creates a lock backed by the file at path.
func NewBuildLock(path string) *BuildLock {
	return &BuildLock{
		path:  path,
		flock: flock.New(path),
	}
}

// Lock blocks until the lock is acquired or ctx is done.
func (l *BuildLock) Lock(ctx context.Context) error {
	if err := os.MkdirAll(filepath.Dir(l.path), 0o755); err != nil {
		return fmt.Errorf("failed to create lock directory: %w", err)
	}

	acquired, err := l.flock.TryLockContext(ctx, lockRetryDelay)
	if err != nil {
		return fmt.Errorf("failed to acquire build lock %s: %w", l.path, err)
	}
	if !acquired {
		return fmt.Errorf("failed to acquire build lock %s: %w", l.path, ctx.Err())
	}
	l.locked = true
	return nil
}

// Unlock releases the lock. It's safe to call on an unlocked BuildLock.
func (l *BuildLock) Unlock() error {
	if !l.locked {
		return nil
	}
	l.locked = false
	if err := l.flock.Unlock(); err != nil {
		return fmt.Errorf("failed to release build lock: %w", err)
	}
	return nil
}

// Path returns the path to the lock file.
func (l *BuildLock) Path() string {
	return l.path
}
