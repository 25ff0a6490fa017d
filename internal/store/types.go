package store

import (
	"errors"
	"time"
)

// IndexTypeFlatIP identifies an exhaustive inner-product index over
// unit-normalized vectors.
const IndexTypeFlatIP = "flat-ip"

// ErrDimensionMismatch is returned when a vector does not match the index width.
var ErrDimensionMismatch = errors.New("vector dimension mismatch")

// SearchResult is one ranked hit from a vector search.
type SearchResult struct {
	Row   int     // Row in the index, also the docstore position
	Score float32 // Inner product; cosine similarity for unit vectors
}

// UnsupportedFile records a discovered file that contributed no chunks.
type UnsupportedFile struct {
	Path   string `json:"path"`
	Reason string `json:"reason"`
}

// IndexedFile is the fingerprint record of one file that contributed chunks
// to the published index.
type IndexedFile struct {
	Path       string `json:"path"`
	FileID     string `json:"file_id"`
	MtimeNS    int64  `json:"mtime_ns"`
	SizeBytes  int64  `json:"size_bytes"`
	ChunkCount int    `json:"chunk_count"`
}

// BuildStats summarizes what a build did with each discovered file.
type BuildStats struct {
	Discovered  int `json:"discovered"`
	Reused      int `json:"reused"`
	Recomputed  int `json:"recomputed"`
	Failed      int `json:"failed"`
	Unsupported int `json:"unsupported"`
	Pruned      int `json:"pruned"`
}

// IndexMetadata describes the published index. It is the single switch
// readers follow: BuildID names the generation directory holding the
// vectors and docstore.
type IndexMetadata struct {
	BuildID          string            `json:"build_id"`
	BuiltAt          time.Time         `json:"built_at"`
	IndexBuilt       bool              `json:"index_built"`
	TotalChunks      int               `json:"total_chunks"`
	EmbeddingModel   string            `json:"embedding_model"`
	Dimensions       int               `json:"dimensions"`
	IndexType        string            `json:"index_type"`
	SourceDir        string            `json:"source_dir"`
	ChunkSizeWords   int               `json:"chunk_size_words"`
	OverlapWords     int               `json:"overlap_words"`
	FilesIndexed     []IndexedFile     `json:"files_indexed"`
	UnsupportedFiles []UnsupportedFile `json:"unsupported_files"`
	Stats            BuildStats        `json:"stats"`
	DurationMS       int64             `json:"duration_ms"`
}
