package embed

import (
	"context"
	"math"
	"time"
)

// Common embedding constants
const (
	// DefaultBatchSize is the number of texts sent per embedding request.
	DefaultBatchSize = 32

	// MaxBatchSize caps a single request.
	MaxBatchSize = 256

	// DefaultTimeout bounds one embedding request attempt.
	DefaultTimeout = 60 * time.Second

	// DefaultMaxRetries is the default number of attempts per request.
	DefaultMaxRetries = 3

	// StaticDimensions is the width of the static embedder's vectors.
	StaticDimensions = 256
)

// Embedder turns texts into fixed-width unit vectors.
// Implementations must be deterministic for a given model and safe for
// concurrent use.
type Embedder interface {
	// Embed generates the embedding for a single text.
	Embed(ctx context.Context, text string) ([]float32, error)

	// EmbedBatch generates one embedding per text, in input order.
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)

	// Dimensions returns the vector width.
	Dimensions() int

	// ModelName identifies the embedding space. Vectors from different model
	// names must never be compared.
	ModelName() string

	// Available reports whether the embedder can serve requests.
	Available(ctx context.Context) bool

	// Close releases resources.
	Close() error
}

// normalizeVector returns a unit-length copy of v. Zero vectors are returned as is.
func normalizeVector(v []float32) []float32 {
	var sumSquares float64
	for _, val := range v {
		sumSquares += float64(val) * float64(val)
	}

	magnitude := math.Sqrt(sumSquares)
	if magnitude == 0 {
		return v
	}

	normalized := make([]float32, len(v))
	for i, val := range v {
		normalized[i] = float32(float64(val) / magnitude)
	}
	return normalized
}
