// Package cache persists the chunks and embeddings of each source file so
// unchanged files are not re-embedded.
package cache

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/Aman-CERP/tutor/internal/chunk"
	"github.com/Aman-CERP/tutor/internal/store"
)

// ErrMiss is returned by Load when a file has no usable cache entry.
var ErrMiss = errors.New("cache miss")

// Entry is the cached state of one file. Embeddings[i] belongs to Chunks[i].
type Entry struct {
	Chunks     []chunk.Chunk
	Embeddings [][]float32
	Dimensions int
}

// Store keeps one chunk artifact and one embedding artifact per file id.
type Store struct {
	dir string
}

// NewStore returns a store rooted at dir (usually <data>/file_cache).
func NewStore(dir string) *Store {
	return &Store{dir: dir}
}

// Dir returns the cache directory.
func (s *Store) Dir() string {
	return s.dir
}

func (s *Store) chunksPath(fileID string) string {
	return filepath.Join(s.dir, fileID+"_chunks.json")
}

func (s *Store) embeddingsPath(fileID string) string {
	return filepath.Join(s.dir, fileID+"_embeddings.bin")
}

// Load returns the entry for fileID.
// A missing artifact, or one that cannot be decoded or disagrees with its
// sibling, yields ErrMiss; a partial entry is never returned.
func (s *Store) Load(fileID string) (*Entry, error) {
	chunksPath := s.chunksPath(fileID)
	embPath := s.embeddingsPath(fileID)
	if !exists(chunksPath) || !exists(embPath) {
		return nil, ErrMiss
	}

	data, err := os.ReadFile(chunksPath)
	if err != nil {
		return nil, s.unusable(fileID, "read chunks", err)
	}
	var chunks []chunk.Chunk
	if err := json.Unmarshal(data, &chunks); err != nil {
		return nil, s.unusable(fileID, "decode chunks", err)
	}

	dims, embeddings, err := store.LoadMatrix(embPath)
	if err != nil {
		return nil, s.unusable(fileID, "load embeddings", err)
	}
	if len(embeddings) != len(chunks) {
		return nil, s.unusable(fileID, "row count",
			fmt.Errorf("%d chunks but %d embeddings", len(chunks), len(embeddings)))
	}
	for i, c := range chunks {
		if c.FileID != fileID || c.Index != i {
			return nil, s.unusable(fileID, "chunk order",
				fmt.Errorf("chunk %d is %s", i, c.ID))
		}
	}

	return &Entry{Chunks: chunks, Embeddings: embeddings, Dimensions: dims}, nil
}

func (s *Store) unusable(fileID, stage string, err error) error {
	slog.Warn("cache entry unusable, treating as miss",
		slog.String("file_id", fileID),
		slog.String("stage", stage),
		slog.String("error", err.Error()))
	return ErrMiss
}

// Save replaces the entry for fileID. The chunk count must equal the number
// of embedding rows. Each artifact is renamed into place. An interrupted save
// may leave a new matrix beside old chunks, so callers drop the file's
// fingerprint before Save and record it again only after Save returns.
func (s *Store) Save(fileID string, entry *Entry) error {
	if len(entry.Chunks) != len(entry.Embeddings) {
		return fmt.Errorf("cache entry for %s: %d chunks but %d embeddings",
			fileID, len(entry.Chunks), len(entry.Embeddings))
	}
	dims := entry.Dimensions
	if dims == 0 && len(entry.Embeddings) > 0 {
		dims = len(entry.Embeddings[0])
	}

	if err := store.SaveMatrix(s.embeddingsPath(fileID), dims, entry.Embeddings); err != nil {
		return fmt.Errorf("save embeddings for %s: %w", fileID, err)
	}
	err := store.WriteFileAtomic(s.chunksPath(fileID), func(w io.Writer) error {
		return json.NewEncoder(w).Encode(entry.Chunks)
	})
	if err != nil {
		return fmt.Errorf("save chunks for %s: %w", fileID, err)
	}
	return nil
}

// Delete removes both artifacts for fileID. Missing files are not an error.
func (s *Store) Delete(fileID string) error {
	for _, p := range []string{s.chunksPath(fileID), s.embeddingsPath(fileID)} {
		if err := os.Remove(p); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("delete cache artifact %s: %w", p, err)
		}
	}
	return nil
}

func exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
