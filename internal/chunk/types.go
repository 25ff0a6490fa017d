package chunk

import "fmt"

// Chunk defaults, in words.
const (
	DefaultChunkSizeWords = 500
	DefaultOverlapWords   = 50
)

// Chunk is a retrievable unit of text from one source file.
// A file's chunks are only ever replaced as a whole set.
type Chunk struct {
	ID         string `json:"id"`          // <file_id>::chunk_<index>
	Text       string `json:"text"`        // Words joined by single spaces
	FileID     string `json:"file_id"`     // See fingerprint.FileID
	SourcePath string `json:"source_path"` // Absolute path of the source file
	Index      int    `json:"chunk_index"` // Ordinal within the file, from 0
}

// ID returns the composite chunk id for the i-th chunk of a file.
func ID(fileID string, i int) string {
	return fmt.Sprintf("%s::chunk_%d", fileID, i)
}
