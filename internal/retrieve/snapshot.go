package retrieve

import (
	"errors"
	"fmt"
	"os"

	tutorerrors "github.com/Aman-CERP/tutor/internal/errors"
	"github.com/Aman-CERP/tutor/internal/store"
)

// Snapshot is one published generation of the index, loaded read-only.
// A snapshot whose metadata is nil or unbuilt has no data.
type Snapshot struct {
	Meta     *store.IndexMetadata
	Index    *store.FlatIndex
	Docstore *store.Docstore
}

// Built reports whether the snapshot holds a non-empty index.
func (s *Snapshot) Built() bool {
	return s != nil && s.Meta != nil && s.Meta.IndexBuilt && s.Index != nil && s.Index.Rows() > 0
}

// Rows is the number of indexed chunks.
func (s *Snapshot) Rows() int {
	if !s.Built() {
		return 0
	}
	return s.Index.Rows()
}

// LoadSnapshot reads the generation the metadata file currently points at.
// A missing metadata file yields an unbuilt snapshot, not an error.
func LoadSnapshot(layout store.Layout) (*Snapshot, error) {
	meta, err := store.LoadMetadata(layout.MetadataPath())
	if errors.Is(err, os.ErrNotExist) {
		return &Snapshot{}, nil
	}
	if err != nil {
		return nil, corrupt("read index metadata", err)
	}
	if !meta.IndexBuilt {
		return &Snapshot{Meta: meta}, nil
	}

	idx, err := store.LoadFlatIndex(layout.VectorsPath(meta.BuildID))
	if err != nil {
		return nil, corrupt("load index vectors", err).WithDetail("build_id", meta.BuildID)
	}
	ds, err := store.LoadDocstore(layout.DocstorePath(meta.BuildID))
	if err != nil {
		return nil, corrupt("load docstore", err).WithDetail("build_id", meta.BuildID)
	}

	switch {
	case ds.BuildID != meta.BuildID:
		return nil, corrupt(fmt.Sprintf("docstore belongs to build %s, metadata to %s", ds.BuildID, meta.BuildID), nil)
	case idx.Rows() != len(ds.Chunks):
		return nil, corrupt(fmt.Sprintf("index has %d rows but docstore has %d chunks", idx.Rows(), len(ds.Chunks)), nil)
	case meta.TotalChunks != len(ds.Chunks):
		return nil, corrupt(fmt.Sprintf("metadata lists %d chunks but docstore has %d", meta.TotalChunks, len(ds.Chunks)), nil)
	case idx.Rows() > 0 && idx.Dimensions() != meta.Dimensions:
		return nil, corrupt(fmt.Sprintf("index has %d dimensions, metadata %d", idx.Dimensions(), meta.Dimensions), nil)
	}

	return &Snapshot{Meta: meta, Index: idx, Docstore: ds}, nil
}

func corrupt(msg string, cause error) *tutorerrors.TutorError {
	return tutorerrors.New(tutorerrors.ErrCodeCorruptIndex, msg, cause).
		WithSuggestion("Rebuild the index with 'tutor index --force'")
}
