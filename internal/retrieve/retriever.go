// Package retrieve answers queries against the published flat index: it embeds
// the query, ranks every chunk by inner product and trims the best matches to a
// character budget.
package retrieve

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync/atomic"
	"time"
	"unicode/utf8"

	"github.com/Aman-CERP/tutor/internal/chunk"
	"github.com/Aman-CERP/tutor/internal/embed"
	tutorerrors "github.com/Aman-CERP/tutor/internal/errors"
	"github.com/Aman-CERP/tutor/internal/store"
)

// ContextSeparator joins chunk texts in the assembled context.
const ContextSeparator = "\n\n"

// Match is one chunk included in the context.
type Match struct {
	Chunk chunk.Chunk `json:"chunk"`
	Score float32     `json:"score"`
	Rank  int         `json:"rank"` // 1-based position among the search candidates
}

// Result is the budgeted context and the chunks it was built from, in rank
// order. An empty Context means nothing relevant was found, which is not an
// error.
type Result struct {
	Context string  `json:"context"`
	Chunks  []Match `json:"chunks"`
	BuildID string  `json:"build_id"`
}

// Found reports whether any context was retrieved.
func (r *Result) Found() bool {
	return strings.TrimSpace(r.Context) != ""
}

// Retriever serves queries from an immutable snapshot. Reload swaps in the
// latest published generation; calls in flight keep the snapshot they started
// with.
type Retriever struct {
	layout   store.Layout
	embedder embed.Embedder
	snap     atomic.Pointer[Snapshot]
}

// Open loads the current snapshot from dataDir. An unbuilt index is not an
// error here; Retrieve reports it.
func Open(dataDir string, embedder embed.Embedder) (*Retriever, error) {
	if embedder == nil {
		return nil, fmt.Errorf("embedder is required")
	}
	r := &Retriever{layout: store.NewLayout(dataDir), embedder: embedder}
	if err := r.Reload(); err != nil {
		return nil, err
	}
	return r, nil
}

// Reload loads the generation the metadata currently points at. On error the
// previous snapshot stays in place.
func (r *Retriever) Reload() error {
	snap, err := LoadSnapshot(r.layout)
	if err != nil {
		return err
	}
	r.snap.Store(snap)
	slog.Debug("retriever snapshot loaded",
		slog.Bool("built", snap.Built()),
		slog.Int("rows", snap.Rows()))
	return nil
}

// Snapshot returns the snapshot new queries will use.
func (r *Retriever) Snapshot() *Snapshot {
	return r.snap.Load()
}

// Retrieve embeds query, takes the min(topK, total) best chunks and
// accumulates their texts until the next one would exceed maxContextChars.
// The first candidate is always included so the context is never empty
// while matches exist. Character counts are in runes.
func (r *Retriever) Retrieve(ctx context.Context, query string, topK, maxContextChars int) (*Result, error) {
	start := time.Now()

	if strings.TrimSpace(query) == "" {
		return nil, tutorerrors.New(tutorerrors.ErrCodeQueryEmpty, "query must not be empty", nil)
	}
	if topK <= 0 {
		return nil, tutorerrors.ValidationError(fmt.Sprintf("top_k must be positive, got %d", topK), nil)
	}

	snap := r.snap.Load()
	if !snap.Built() {
		return nil, tutorerrors.New(tutorerrors.ErrCodeNoIndex, "index is not built or empty", nil).
			WithSuggestion("Add documents to the source directory and run 'tutor index'")
	}

	if model := r.embedder.ModelName(); model != snap.Meta.EmbeddingModel {
		return nil, tutorerrors.New(tutorerrors.ErrCodeModelMismatch,
			fmt.Sprintf("query embedder %q differs from index model %q", model, snap.Meta.EmbeddingModel), nil).
			WithSuggestion("Rebuild the index with the configured embedder, or configure the model the index was built with")
	}

	vec, err := r.embedder.Embed(ctx, query)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, tutorerrors.New(tutorerrors.ErrCodeEmbeddingFailed, "embed query", err)
	}
	if len(vec) != snap.Index.Dimensions() {
		return nil, tutorerrors.New(tutorerrors.ErrCodeDimensionMismatch,
			fmt.Sprintf("query has %d dimensions, index has %d", len(vec), snap.Index.Dimensions()), nil)
	}

	query32 := append([]float32(nil), vec...)
	store.NormalizeInPlace(query32)

	hits, err := snap.Index.Search(query32, topK)
	if err != nil {
		return nil, tutorerrors.Wrap(tutorerrors.ErrCodeInternal, err)
	}

	res := assemble(snap, hits, maxContextChars)

	slog.Debug("retrieve_complete",
		slog.Int("candidates", len(hits)),
		slog.Int("included", len(res.Chunks)),
		slog.Int("context_chars", utf8.RuneCountInString(res.Context)),
		slog.Duration("duration", time.Since(start)))

	return res, nil
}

func assemble(snap *Snapshot, hits []store.SearchResult, maxContextChars int) *Result {
	res := &Result{Chunks: []Match{}, BuildID: snap.Meta.BuildID}
	parts := make([]string, 0, len(hits))
	total := 0

	for rank, hit := range hits {
		if hit.Row < 0 || hit.Row >= len(snap.Docstore.Chunks) {
			continue
		}
		c := snap.Docstore.Chunks[hit.Row]
		if c.Text == "" {
			continue
		}
		n := utf8.RuneCountInString(c.Text)
		if total+n > maxContextChars && len(parts) > 0 {
			break
		}
		parts = append(parts, c.Text)
		res.Chunks = append(res.Chunks, Match{Chunk: c, Score: hit.Score, Rank: rank + 1})
		total += n
	}

	res.Context = strings.Join(parts, ContextSeparator)
	return res
}
