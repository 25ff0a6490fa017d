package store

import (
	"fmt"
	"os"
	"path/filepath"
)

// Artifact names under the data directory.
const (
	FileCacheDirName  = "file_cache"
	IndexDirName      = "index"
	MetadataFileName  = "index_metadata.json"
	VectorsFileName   = "vectors.flat"
	DocstoreFileName  = "docstore.json"
	FingerprintDBName = "fingerprints.db"
	BuildLockFileName = ".build.lock"
)

// Layout resolves artifact paths under one data directory.
type Layout struct {
	DataDir string
}

// NewLayout returns the layout rooted at dataDir.
func NewLayout(dataDir string) Layout {
	return Layout{DataDir: dataDir}
}

func (l Layout) FileCacheDir() string      { return filepath.Join(l.DataDir, FileCacheDirName) }
func (l Layout) IndexDir() string          { return filepath.Join(l.DataDir, IndexDirName) }
func (l Layout) MetadataPath() string      { return filepath.Join(l.DataDir, MetadataFileName) }
func (l Layout) FingerprintDBPath() string { return filepath.Join(l.DataDir, FingerprintDBName) }
func (l Layout) LockPath() string          { return filepath.Join(l.DataDir, BuildLockFileName) }

// GenerationDir is the directory holding the artifacts of one build.
func (l Layout) GenerationDir(buildID string) string {
	return filepath.Join(l.IndexDir(), buildID)
}

func (l Layout) VectorsPath(buildID string) string {
	return filepath.Join(l.GenerationDir(buildID), VectorsFileName)
}

func (l Layout) DocstorePath(buildID string) string {
	return filepath.Join(l.GenerationDir(buildID), DocstoreFileName)
}

// Generations lists the generation directories currently on disk.
func (l Layout) Generations() ([]string, error) {
	entries, err := os.ReadDir(l.IndexDir())
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to list generations: %w", err)
	}
	var ids []string
	for _, e := range entries {
		if e.IsDir() {
			ids = append(ids, e.Name())
		}
	}
	return ids, nil
}

// PruneGenerations removes every generation directory not named in keep.
// It returns the number removed.
func (l Layout) PruneGenerations(keep ...string) (int, error) {
	ids, err := l.Generations()
	if err != nil {
		return 0, err
	}
	keepSet := make(map[string]bool, len(keep))
	for _, k := range keep {
		if k != "" {
			keepSet[k] = true
		}
	}
	removed := 0
	for _, id := range ids {
		if keepSet[id] {
			continue
		}
		if err := os.RemoveAll(l.GenerationDir(id)); err != nil {
			return removed, fmt.Errorf("failed to remove generation %s: %w", id, err)
		}
		removed++
	}
	return removed, nil
}

// Reset removes the per-file cache, every index generation and the
// metadata. The fingerprint database is left to the tracker that holds it open.
func (l Layout) Reset() error {
	for _, p := range []string{l.FileCacheDir(), l.IndexDir(), l.MetadataPath()} {
		if err := os.RemoveAll(p); err != nil {
			return fmt.Errorf("failed to remove %s: %w", p, err)
		}
	}
	return nil
}
