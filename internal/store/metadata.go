package store

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
)

// SaveMetadata publishes meta by atomically replacing the metadata file.
func SaveMetadata(path string, meta *IndexMetadata) error {
	return WriteFileAtomic(path, func(w io.Writer) error {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		if err := enc.Encode(meta); err != nil {
			return fmt.Errorf("encode index metadata: %w", err)
		}
		return nil
	})
}

// LoadMetadata reads the metadata file. A missing file is reported with an
// error satisfying errors.Is(err, os.ErrNotExist).
func LoadMetadata(path string) (*IndexMetadata, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var meta IndexMetadata
	if err := json.Unmarshal(data, &meta); err != nil {
		return nil, fmt.Errorf("decode index metadata %s: %w", path, err)
	}
	return &meta, nil
}
