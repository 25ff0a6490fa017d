package chunk

import "strings"

// Split breaks text into windows of chunkSizeWords whitespace-separated words.
// Consecutive windows share overlapWords words; the window start advances by
// max(1, chunkSizeWords-overlapWords) and stops after the first window that
// reaches the last word, which may be shorter than chunkSizeWords. Text of at
// most chunkSizeWords words is a single chunk. Whitespace-only input yields an
// empty slice.
//
// Words inside a chunk are joined by a single space, so the original
// whitespace layout is not preserved.
func Split(text string, chunkSizeWords, overlapWords int) []string {
	words := strings.Fields(text)
	if len(words) == 0 {
		return []string{}
	}
	if chunkSizeWords <= 0 {
		chunkSizeWords = 1
	}
	if overlapWords < 0 {
		overlapWords = 0
	}
	step := chunkSizeWords - overlapWords
	if step < 1 {
		step = 1
	}

	chunks := make([]string, 0, len(words)/step+1)
	for start := 0; start < len(words); start += step {
		end := start + chunkSizeWords
		if end > len(words) {
			end = len(words)
		}
		chunks = append(chunks, strings.Join(words[start:end], " "))
		if end == len(words) {
			break
		}
	}
	return chunks
}

// Records wraps the chunk texts of one file into ordered Chunk records.
func Records(fileID, sourcePath string, texts []string) []Chunk {
	out := make([]Chunk, len(texts))
	for i, t := range texts {
		out[i] = Chunk{
			ID:         ID(fileID, i),
			Text:       t,
			FileID:     fileID,
			SourcePath: sourcePath,
			Index:      i,
		}
	}
	return out
}
