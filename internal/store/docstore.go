package store

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/Aman-CERP/tutor/internal/chunk"
)

// Docstore is the ordered chunk list parallel to the index rows.
type Docstore struct {
	BuildID string        `json:"build_id"`
	Chunks  []chunk.Chunk `json:"chunks"`
}

// SaveDocstore writes the docstore atomically.
func SaveDocstore(path string, ds *Docstore) error {
	return WriteFileAtomic(path, func(w io.Writer) error {
		enc := json.NewEncoder(w)
		if err := enc.Encode(ds); err != nil {
			return fmt.Errorf("encode docstore: %w", err)
		}
		return nil
	})
}

// LoadDocstore reads a docstore.
func LoadDocstore(path string) (*Docstore, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var ds Docstore
	if err := json.Unmarshal(data, &ds); err != nil {
		return nil, fmt.Errorf("decode docstore %s: %w", path, err)
	}
	return &ds, nil
}
