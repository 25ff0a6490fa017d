// Package index builds the searchable flat index from a directory of source
// documents, reusing cached per-file embeddings for files that did not change.
package index

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/Aman-CERP/tutor/internal/cache"
	"github.com/Aman-CERP/tutor/internal/chunk"
	"github.com/Aman-CERP/tutor/internal/embed"
	tutorerrors "github.com/Aman-CERP/tutor/internal/errors"
	"github.com/Aman-CERP/tutor/internal/extract"
	"github.com/Aman-CERP/tutor/internal/fingerprint"
	"github.com/Aman-CERP/tutor/internal/scanner"
	"github.com/Aman-CERP/tutor/internal/store"
	"github.com/Aman-CERP/tutor/internal/ui"
)

// DefaultFileTimeout bounds extraction plus embedding of a single file.
const DefaultFileTimeout = 2 * time.Minute

// Options tune a Builder.
type Options struct {
	ChunkSizeWords  int
	OverlapWords    int
	Workers         int           // 0 = NumCPU
	FileTimeout     time.Duration // 0 = DefaultFileTimeout
	ContentHash     bool          // Also compare content hashes
	PruneDeleted    bool          // Drop records and caches of vanished files
	ExcludePatterns []string
}

// Dependencies are the collaborators a Builder needs.
type Dependencies struct {
	Layout    store.Layout
	Embedder  embed.Embedder
	Extractor extract.Extractor
	Tracker   *fingerprint.Tracker
	Cache     *cache.Store

	// Renderer receives progress. Nil means ui.NopRenderer.
	Renderer ui.Renderer

	// Now and NewBuildID are overridable for tests.
	Now        func() time.Time
	NewBuildID func() string
}

// Builder runs offline index builds. Builds are serialized within the
// process by a mutex and across processes by a file lock in the data dir.
type Builder struct {
	deps    Dependencies
	opts    Options
	scanner *scanner.Scanner
	lock    *BuildLock
	mu      sync.Mutex
}

// NewBuilder validates dependencies and returns a Builder.
func NewBuilder(deps Dependencies, opts Options) (*Builder, error) {
	if deps.Layout.DataDir == "" {
		return nil, fmt.Errorf("data directory is required")
	}
	if deps.Embedder == nil {
		return nil, fmt.Errorf("embedder is required")
	}
	if deps.Extractor == nil {
		return nil, fmt.Errorf("extractor is required")
	}
	if deps.Tracker == nil {
		return nil, fmt.Errorf("fingerprint tracker is required")
	}
	if deps.Cache == nil {
		return nil, fmt.Errorf("cache store is required")
	}
	if deps.Renderer == nil {
		deps.Renderer = ui.NopRenderer{}
	}
	if deps.Now == nil {
		deps.Now = time.Now
	}
	if deps.NewBuildID == nil {
		deps.NewBuildID = uuid.NewString
	}

	if opts.ChunkSizeWords <= 0 {
		opts.ChunkSizeWords = chunk.DefaultChunkSizeWords
	}
	if opts.OverlapWords < 0 {
		opts.OverlapWords = 0
	}
	if opts.Workers <= 0 {
		opts.Workers = runtime.NumCPU()
	}
	if opts.FileTimeout <= 0 {
		opts.FileTimeout = DefaultFileTimeout
	}

	return &Builder{
		deps:    deps,
		opts:    opts,
		scanner: scanner.New(),
		lock:    NewBuildLock(deps.Layout.LockPath()),
	}, nil
}

// SetRenderer swaps the progress renderer for subsequent builds.
func (b *Builder) SetRenderer(r ui.Renderer) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if r == nil {
		r = ui.NopRenderer{}
	}
	b.deps.Renderer = r
}

// Build discovers the files under sourceDir, reuses or recomputes each
// file's chunks and embeddings, and publishes a new flat index.
//
// Per-file failures are recorded in the metadata's unsupported files and
// never abort the build. Only persistence failures and cancellation return
// an error.
func (b *Builder) Build(ctx context.Context, sourceDir string) (*store.IndexMetadata, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if err := b.lock.Lock(ctx); err != nil {
		return nil, err
	}
	defer func() {
		if err := b.lock.Unlock(); err != nil {
			slog.Warn("failed to release build lock", slog.String("error", err.Error()))
		}
	}()

	return b.build(ctx, sourceDir)
}

func (b *Builder) build(ctx context.Context, sourceDir string) (*store.IndexMetadata, error) {
	start := b.deps.Now()
	var timings ui.StageTimings
	renderer := b.deps.Renderer

	absSource, err := filepath.Abs(sourceDir)
	if err != nil {
		return nil, tutorerrors.InternalError("resolve source directory", err)
	}

	model := b.deps.Embedder.ModelName()
	dims := b.deps.Embedder.Dimensions()

	// Stage 1: discover
	renderer.UpdateProgress(ui.ProgressEvent{
		Stage:   ui.StageScanning,
		Message: fmt.Sprintf("Scanning %s...", absSource),
	})
	slog.Info("index_scan_started", slog.String("path", absSource))

	scanStart := time.Now()
	discovery, err := b.scanner.Discover(ctx, &scanner.ScanOptions{
		RootDir:         absSource,
		ExcludePatterns: b.opts.ExcludePatterns,
		IsSupported:     extract.IsSupported,
	})
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, tutorerrors.New(tutorerrors.ErrCodeIndexFailed, "scan source directory", err)
	}
	timings.Scan = time.Since(scanStart)

	slog.Info("index_scan_complete",
		slog.Int("supported", len(discovery.Supported)),
		slog.Int("unsupported", len(discovery.Unsupported)))

	// Stage 2: reuse or recompute each supported file
	embedStart := time.Now()
	outcomes, err := b.processFiles(ctx, discovery.Supported, model, dims)
	if err != nil {
		return nil, err
	}
	timings.Embed = time.Since(embedStart)

	// Stage 3: assemble and publish
	publishStart := time.Now()
	renderer.UpdateProgress(ui.ProgressEvent{Stage: ui.StagePublishing, Message: "Publishing index..."})

	meta := &store.IndexMetadata{
		BuildID:          b.deps.NewBuildID(),
		BuiltAt:          start.UTC(),
		EmbeddingModel:   model,
		Dimensions:       dims,
		SourceDir:        absSource,
		ChunkSizeWords:   b.opts.ChunkSizeWords,
		OverlapWords:     b.opts.OverlapWords,
		FilesIndexed:     []store.IndexedFile{},
		UnsupportedFiles: []store.UnsupportedFile{},
	}
	meta.Stats.Discovered = len(discovery.Supported) + len(discovery.Unsupported)
	meta.Stats.Unsupported = len(discovery.Unsupported)

	var (
		chunks  []chunk.Chunk
		vectors [][]float32
	)
	for _, o := range outcomes {
		switch o.Status {
		case StatusReused:
			meta.Stats.Reused++
		case StatusRecomputed:
			meta.Stats.Recomputed++
		case StatusSkipped:
			meta.Stats.Failed++
			meta.UnsupportedFiles = append(meta.UnsupportedFiles, store.UnsupportedFile{Path: o.Path, Reason: o.Reason})
			continue
		}
		meta.FilesIndexed = append(meta.FilesIndexed, o.indexedFile())
		chunks = append(chunks, o.Chunks...)
		vectors = append(vectors, o.Embeddings...)
	}
	for _, f := range discovery.Unsupported {
		meta.UnsupportedFiles = append(meta.UnsupportedFiles, store.UnsupportedFile{
			Path:   f.AbsPath,
			Reason: extract.ReasonExtensionNotSupported,
		})
		renderer.AddError(ui.ErrorEvent{File: f.AbsPath, Err: errors.New(extract.ReasonExtensionNotSupported), IsWarn: true})
	}

	if b.opts.PruneDeleted {
		pruned, err := b.pruneDeleted(ctx, absSource, discovery)
		if err != nil {
			return nil, err
		}
		meta.Stats.Pruned = pruned
	}

	prevBuildID := b.publishedBuildID()
	if err := b.publish(meta, chunks, vectors); err != nil {
		return nil, err
	}

	// Keep the previous generation for readers that loaded it before the swap
	keep := []string{prevBuildID}
	if meta.IndexBuilt {
		keep = append(keep, meta.BuildID)
	}
	if removed, err := b.deps.Layout.PruneGenerations(keep...); err != nil {
		slog.Warn("failed to prune old index generations", slog.String("error", err.Error()))
	} else if removed > 0 {
		slog.Debug("pruned index generations", slog.Int("removed", removed))
	}
	timings.Publish = time.Since(publishStart)

	duration := b.deps.Now().Sub(start)
	meta.DurationMS = duration.Milliseconds()

	renderer.Complete(ui.CompletionStats{
		Files:      len(meta.FilesIndexed),
		Chunks:     meta.TotalChunks,
		Reused:     meta.Stats.Reused,
		Recomputed: meta.Stats.Recomputed,
		Skipped:    len(meta.UnsupportedFiles),
		IndexBuilt: meta.IndexBuilt,
		Duration:   duration,
		Warnings:   len(meta.UnsupportedFiles),
		Stages:     timings,
		Embedder: ui.EmbedderInfo{
			Backend:    backendName(b.deps.Embedder),
			Model:      model,
			Dimensions: dims,
		},
	})

	slog.Info("index_complete",
		slog.String("build_id", meta.BuildID),
		slog.Bool("index_built", meta.IndexBuilt),
		slog.Int("files", len(meta.FilesIndexed)),
		slog.Int("chunks", meta.TotalChunks),
		slog.Int("reused", meta.Stats.Reused),
		slog.Int("recomputed", meta.Stats.Recomputed),
		slog.Int("failed", meta.Stats.Failed),
		slog.Int("unsupported", meta.Stats.Unsupported),
		slog.Int("pruned", meta.Stats.Pruned),
		slog.Int64("duration_scan_ms", timings.Scan.Milliseconds()),
		slog.Int64("duration_embed_ms", timings.Embed.Milliseconds()),
		slog.Int64("duration_publish_ms", timings.Publish.Milliseconds()),
		slog.String("embedder_model", model))

	return meta, nil
}

// processFiles handles supported files in parallel. outcomes[i] belongs to
// files[i], so concatenation keeps discovery order.
func (b *Builder) processFiles(ctx context.Context, files []*scanner.FileInfo, model string, dims int) ([]FileOutcome, error) {
	outcomes := make([]FileOutcome, len(files))
	var done atomic.Int64

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(b.opts.Workers)

	for i, f := range files {
		g.Go(func() error {
			o, err := b.processFile(gctx, f.AbsPath, model, dims)
			if err != nil {
				return err
			}
			outcomes[i] = o

			if o.Status == StatusSkipped {
				b.deps.Renderer.AddError(ui.ErrorEvent{File: o.Path, Err: errors.New(o.Reason), IsWarn: true})
			}
			b.deps.Renderer.UpdateProgress(ui.ProgressEvent{
				Stage:       ui.StageEmbedding,
				Current:     int(done.Add(1)),
				Total:       len(files),
				CurrentFile: f.Path,
			})
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, err
	}
	return outcomes, nil
}

// processFile decides reuse versus recompute for one file. The returned
// error is non-nil only for fatal conditions: persistence failures and
// cancellation of the whole build.
func (b *Builder) processFile(ctx context.Context, path, model string, dims int) (FileOutcome, error) {
	fileID := fingerprint.FileID(path)

	fp, err := fingerprint.Compute(path, b.opts.ContentHash)
	if err != nil {
		slog.Warn("failed to stat source file", slog.String("path", path), slog.String("error", err.Error()))
		return skipped(path, fileID, extract.ReasonUnreadable), nil
	}

	prev, err := b.deps.Tracker.Get(ctx, path)
	if err != nil {
		if ctx.Err() != nil {
			return FileOutcome{}, ctx.Err()
		}
		slog.Warn("failed to read fingerprint, recomputing",
			slog.String("path", path),
			slog.String("error", err.Error()))
		prev = nil
	}

	if fingerprint.Unchanged(prev, fp, model) {
		entry, err := b.deps.Cache.Load(fileID)
		if err == nil && entry.Dimensions == dims {
			return FileOutcome{
				Path:        path,
				FileID:      fileID,
				Status:      StatusReused,
				Fingerprint: fp,
				Chunks:      entry.Chunks,
				Embeddings:  entry.Embeddings,
			}, nil
		}
		slog.Debug("cache unusable for unchanged file, recomputing", slog.String("path", path))
	}

	return b.recompute(ctx, path, fileID, fp, model, dims)
}

func (b *Builder) recompute(ctx context.Context, path, fileID string, fp fingerprint.Fingerprint, model string, dims int) (FileOutcome, error) {
	fileCtx, cancel := context.WithTimeout(ctx, b.opts.FileTimeout)
	defer cancel()

	// timedOut distinguishes the per-file deadline from cancellation of the build
	timedOut := func() bool {
		return ctx.Err() == nil && errors.Is(fileCtx.Err(), context.DeadlineExceeded)
	}

	res := b.deps.Extractor.Extract(fileCtx, path)
	if ctx.Err() != nil {
		return FileOutcome{}, ctx.Err()
	}
	if timedOut() {
		return skipped(path, fileID, ReasonEmbeddingTimeout), nil
	}
	if !res.OK() {
		return skipped(path, fileID, res.Reason), nil
	}

	texts := chunk.Split(res.Text, b.opts.ChunkSizeWords, b.opts.OverlapWords)
	if len(texts) == 0 {
		return skipped(path, fileID, ReasonUnchunkable), nil
	}

	vectors, err := b.deps.Embedder.EmbedBatch(fileCtx, texts)
	if err != nil {
		if ctx.Err() != nil {
			return FileOutcome{}, ctx.Err()
		}
		reason := ReasonEmbeddingFailed
		if timedOut() {
			reason = ReasonEmbeddingTimeout
		}
		slog.Warn("embedding failed, keeping previous cache",
			slog.String("path", path),
			slog.String("reason", reason),
			slog.String("error", err.Error()))
		return skipped(path, fileID, reason), nil
	}
	if err := checkVectors(vectors, len(texts), dims); err != nil {
		slog.Warn("embedder returned unusable vectors",
			slog.String("path", path),
			slog.String("error", err.Error()))
		return skipped(path, fileID, ReasonEmbeddingFailed), nil
	}

	unit := make([][]float32, len(vectors))
	for i, v := range vectors {
		unit[i] = append([]float32(nil), v...)
		store.NormalizeInPlace(unit[i])
	}
	chunks := chunk.Records(fileID, path, texts)

	// A save that fails halfway must not leave a record that vouches for
	// the half-written entry.
	if err := b.deps.Tracker.Delete(ctx, []string{path}); err != nil {
		if ctx.Err() != nil {
			return FileOutcome{}, ctx.Err()
		}
		return FileOutcome{}, tutorerrors.PersistError("clear fingerprint", err).
			WithDetail("path", path)
	}

	entry := &cache.Entry{Chunks: chunks, Embeddings: unit, Dimensions: dims}
	if err := b.deps.Cache.Save(fileID, entry); err != nil {
		return FileOutcome{}, tutorerrors.PersistError("write embedding cache", err).
			WithDetail("path", path)
	}

	rec := fingerprint.Record{
		Path:           path,
		FileID:         fileID,
		MtimeNS:        fp.MtimeNS,
		SizeBytes:      fp.SizeBytes,
		ContentHash:    fp.ContentHash,
		EmbeddingModel: model,
		ChunkCount:     len(chunks),
		IndexedAt:      b.deps.Now().UTC(),
	}
	if err := b.deps.Tracker.Upsert(ctx, rec); err != nil {
		if ctx.Err() != nil {
			return FileOutcome{}, ctx.Err()
		}
		return FileOutcome{}, tutorerrors.PersistError("write fingerprint", err).
			WithDetail("path", path)
	}

	return FileOutcome{
		Path:        path,
		FileID:      fileID,
		Status:      StatusRecomputed,
		Fingerprint: fp,
		Chunks:      chunks,
		Embeddings:  unit,
	}, nil
}

func checkVectors(vectors [][]float32, want, dims int) error {
	if len(vectors) != want {
		return fmt.Errorf("got %d embeddings for %d chunks", len(vectors), want)
	}
	for i, v := range vectors {
		if len(v) != dims {
			return fmt.Errorf("embedding %d has %d dimensions, expected %d", i, len(v), dims)
		}
	}
	return nil
}

// publish writes the generation directory and then swaps the metadata file.
// With no chunks only the metadata is written, marking the index unbuilt.
func (b *Builder) publish(meta *store.IndexMetadata, chunks []chunk.Chunk, vectors [][]float32) error {
	layout := b.deps.Layout

	if len(chunks) > 0 {
		idx := store.NewFlatIndex(meta.Dimensions)
		if err := idx.Add(vectors...); err != nil {
			return tutorerrors.InternalError("assemble index", err)
		}
		if idx.Rows() != len(chunks) {
			return tutorerrors.InternalError(
				fmt.Sprintf("index has %d rows for %d chunks", idx.Rows(), len(chunks)), nil)
		}

		if err := os.MkdirAll(layout.GenerationDir(meta.BuildID), 0o755); err != nil {
			return tutorerrors.PersistError("create index generation", err)
		}
		if err := idx.Save(layout.VectorsPath(meta.BuildID)); err != nil {
			return tutorerrors.PersistError("write index vectors", err)
		}
		ds := &store.Docstore{BuildID: meta.BuildID, Chunks: chunks}
		if err := store.SaveDocstore(layout.DocstorePath(meta.BuildID), ds); err != nil {
			return tutorerrors.PersistError("write docstore", err)
		}

		meta.IndexBuilt = true
		meta.IndexType = store.IndexTypeFlatIP
		meta.TotalChunks = len(chunks)
	}

	if err := store.SaveMetadata(layout.MetadataPath(), meta); err != nil {
		return tutorerrors.PersistError("write index metadata", err)
	}
	return nil
}

// publishedBuildID returns the build id readers currently follow, if any.
func (b *Builder) publishedBuildID() string {
	meta, err := store.LoadMetadata(b.deps.Layout.MetadataPath())
	if err != nil || !meta.IndexBuilt {
		return ""
	}
	return meta.BuildID
}

// Reset removes every index artifact so the next build recomputes all files.
// The fingerprint database is cleared in place because the tracker keeps it open.
func (b *Builder) Reset(ctx context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if err := b.lock.Lock(ctx); err != nil {
		return err
	}
	defer func() { _ = b.lock.Unlock() }()

	records, err := b.deps.Tracker.All(ctx)
	if err != nil {
		return tutorerrors.PersistError("list fingerprints", err)
	}
	paths := make([]string, len(records))
	for i, r := range records {
		paths[i] = r.Path
	}
	if err := b.deps.Tracker.Delete(ctx, paths); err != nil {
		return tutorerrors.PersistError("clear fingerprints", err)
	}

	layout := b.deps.Layout
	if err := layout.Reset(); err != nil {
		return tutorerrors.PersistError("remove index data", err).WithDetail("data_dir", layout.DataDir)
	}

	slog.Info("index_reset", slog.String("data_dir", layout.DataDir), slog.Int("fingerprints", len(paths)))
	return nil
}

func backendName(e embed.Embedder) string {
	if c, ok := e.(*embed.CachedEmbedder); ok {
		e = c.Inner()
	}
	switch e.(type) {
	case *embed.StaticEmbedder:
		return string(embed.ProviderStatic)
	case *embed.OllamaEmbedder:
		return string(embed.ProviderOllama)
	default:
		return "custom"
	}
}
