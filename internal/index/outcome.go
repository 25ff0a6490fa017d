package index

import (
	"github.com/Aman-CERP/tutor/internal/chunk"
	"github.com/Aman-CERP/tutor/internal/fingerprint"
	"github.com/Aman-CERP/tutor/internal/store"
)

// Skip reasons produced by the builder itself. Extraction reasons come from
// the extract package.
const (
	ReasonEmbeddingFailed  = "embedding-failed"
	ReasonEmbeddingTimeout = "embedding-timeout"
	ReasonUnchunkable      = "no-chunks-after-split"
)

// Status is what the builder did with one supported file.
type Status int

const (
	// StatusReused means the cached chunks and embeddings were used verbatim.
	StatusReused Status = iota
	// StatusRecomputed means the file was extracted, chunked and embedded.
	StatusRecomputed
	// StatusSkipped means the file contributes nothing to this build.
	StatusSkipped
)

func (s Status) String() string {
	switch s {
	case StatusReused:
		return "reused"
	case StatusRecomputed:
		return "recomputed"
	case StatusSkipped:
		return "skipped"
	default:
		return "unknown"
	}
}

// FileOutcome is the typed result of processing one file. Per-file failures
// are outcomes, never errors out of Build.
type FileOutcome struct {
	Path        string
	FileID      string
	Status      Status
	Reason      string // Set when Status is StatusSkipped
	Fingerprint fingerprint.Fingerprint
	Chunks      []chunk.Chunk
	Embeddings  [][]float32
}

// indexedFile is the metadata record of a reused or recomputed outcome.
func (o FileOutcome) indexedFile() store.IndexedFile {
	return store.IndexedFile{
		Path:       o.Path,
		FileID:     o.FileID,
		MtimeNS:    o.Fingerprint.MtimeNS,
		SizeBytes:  o.Fingerprint.SizeBytes,
		ChunkCount: len(o.Chunks),
	}
}

func skipped(path, fileID, reason string) FileOutcome {
	return FileOutcome{Path: path, FileID: fileID, Status: StatusSkipped, Reason: reason}
}
