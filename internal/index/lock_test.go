package index

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildLock_LockUnlock(t *testing.T) {
	path := filepath.Join(t.TempDir(), "data", ".build.lock")
	lock := NewBuildLock(path)

	require.NoError(t, lock.Lock(context.Background()))

	_, err := os.Stat(lock.Path())
	assert.NoError(t, err, "lock file should be created with its directory")

	require.NoError(t, lock.Unlock())
}

func TestBuildLock_UnlockWithoutLock(t *testing.T) {
	lock := NewBuildLock(filepath.Join(t.TempDir(), ".build.lock"))

	assert.NoError(t, lock.Unlock())
	assert.NoError(t, lock.Unlock())
}

func TestBuildLock_SecondHolderExcluded(t *testing.T) {
	// Given: one holder of the lock
	path := filepath.Join(t.TempDir(), ".build.lock")
	first := NewBuildLock(path)
	require.NoError(t, first.Lock(context.Background()))

	// When: a second lock on the same file tries to acquire it
	second := NewBuildLock(path)
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	err := second.Lock(ctx)

	// Then: it is refused until the first releases
	require.Error(t, err)

	require.NoError(t, first.Unlock())
	require.NoError(t, second.Lock(context.Background()))
	require.NoError(t, second.Unlock())
}

func TestBuildLock_LockHonorsContext(t *testing.T) {
	// Given: a held lock
	path := filepath.Join(t.TempDir(), ".build.lock")
	holder := NewBuildLock(path)
	require.NoError(t, holder.Lock(context.Background()))
	defer func() { _ = holder.Unlock() }()

	// When: another lock waits with a short deadline
	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	waiter := NewBuildLock(path)
	err := waiter.Lock(ctx)

	// Then: it gives up with the context error
	require.Error(t, err)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}
