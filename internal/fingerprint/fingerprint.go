// Package fingerprint detects whether a source file changed since it was last
// embedded, and persists the per-file records used for that decision.
package fingerprint

import (
	"crypto/sha1"
	"encoding/hex"
	"fmt"
	"hash/fnv"
	"io"
	"os"
	"time"
)

// Fingerprint is the cheap change signal for one file.
type Fingerprint struct {
	MtimeNS   int64
	SizeBytes int64
	// ContentHash is the FNV-1a 64 hex digest of the file bytes. Empty unless
	// content hashing was requested.
	ContentHash string
}

// Record is the persisted state of the last successful (re)compute of a file.
type Record struct {
	Path           string
	FileID         string
	MtimeNS        int64
	SizeBytes      int64
	ContentHash    string
	EmbeddingModel string
	ChunkCount     int
	IndexedAt      time.Time
}

// Fingerprint returns the change signal stored in the record.
func (r Record) Fingerprint() Fingerprint {
	return Fingerprint{MtimeNS: r.MtimeNS, SizeBytes: r.SizeBytes, ContentHash: r.ContentHash}
}

// FileID returns the stable identifier of a file: the first 16 hex characters
// of the SHA-1 of its absolute path. It does not depend on content.
func FileID(absPath string) string {
	sum := sha1.Sum([]byte(absPath))
	return hex.EncodeToString(sum[:])[:16]
}

// Compute stats path and, when withContentHash is set, hashes its bytes.
func Compute(path string, withContentHash bool) (Fingerprint, error) {
	info, err := os.Stat(path)
	if err != nil {
		return Fingerprint{}, fmt.Errorf("stat %s: %w", path, err)
	}
	fp := Fingerprint{
		MtimeNS:   info.ModTime().UnixNano(),
		SizeBytes: info.Size(),
	}
	if withContentHash {
		h, err := hashFile(path)
		if err != nil {
			return Fingerprint{}, err
		}
		fp.ContentHash = h
	}
	return fp, nil
}

func hashFile(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("open %s: %w", path, err)
	}
	defer func() { _ = f.Close() }()

	h := fnv.New64a()
	if _, err := io.Copy(h, f); err != nil {
		return "", fmt.Errorf("hash %s: %w", path, err)
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

// Unchanged reports whether a file can reuse its cached chunks and embeddings.
// It requires a previous record with identical mtime and size that was
// produced by the same embedding model. Content hashes are compared only when
// both sides carry one.
//
// Without content hashing, a rewrite that keeps both size and mtime is
// treated as unchanged.
func Unchanged(prev *Record, cur Fingerprint, model string) bool {
	if prev == nil {
		return false
	}
	if prev.MtimeNS != cur.MtimeNS || prev.SizeBytes != cur.SizeBytes {
		return false
	}
	if prev.EmbeddingModel != model {
		return false
	}
	if prev.ContentHash != "" && cur.ContentHash != "" && prev.ContentHash != cur.ContentHash {
		return false
	}
	return true
}
