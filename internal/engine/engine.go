// Package engine owns every long-lived component of a tutor process: the
// embedder, fingerprint tracker, cache store, builder, retriever and generator.
// Commands create one Engine from the loaded configuration and pass it around
// explicitly.
package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/Aman-CERP/tutor/internal/answer"
	"github.com/Aman-CERP/tutor/internal/cache"
	"github.com/Aman-CERP/tutor/internal/config"
	"github.com/Aman-CERP/tutor/internal/embed"
	"github.com/Aman-CERP/tutor/internal/extract"
	"github.com/Aman-CERP/tutor/internal/fingerprint"
	"github.com/Aman-CERP/tutor/internal/index"
	"github.com/Aman-CERP/tutor/internal/retrieve"
	"github.com/Aman-CERP/tutor/internal/store"
	"github.com/Aman-CERP/tutor/internal/ui"
)

// Option customizes an Engine. Injected components are owned by the caller
// except where noted.
type Option func(*Engine)

// WithEmbedder uses e instead of the configured provider. The engine closes it.
func WithEmbedder(e embed.Embedder) Option {
	return func(eng *Engine) { eng.embedder = e }
}

// WithGenerator uses g instead of the configured generation provider.
// The engine closes it.
func WithGenerator(g answer.Generator) Option {
	return func(eng *Engine) { eng.generator = g }
}

// WithExtractor replaces the file extractor.
func WithExtractor(x extract.Extractor) Option {
	return func(eng *Engine) { eng.extractor = x }
}

// WithRenderer sets the progress renderer used by builds.
func WithRenderer(r ui.Renderer) Option {
	return func(eng *Engine) { eng.renderer = r }
}

// Engine is the explicit context object for indexing and querying one corpus.
type Engine struct {
	cfg    *config.Config
	layout store.Layout

	embedder      embed.Embedder
	queryEmbedder embed.Embedder // LRU-wrapped embedder, or embedder itself
	extractor     extract.Extractor
	tracker       *fingerprint.Tracker
	cache         *cache.Store
	builder       *index.Builder
	generator     answer.Generator
	renderer      ui.Renderer

	mu        sync.Mutex
	retriever *retrieve.Retriever
	closed    bool
}

// New wires the components described by cfg. cfg must have resolved paths.
func New(ctx context.Context, cfg *config.Config, opts ...Option) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	e := &Engine{
		cfg:    cfg,
		layout: store.NewLayout(cfg.Paths.DataDir),
	}
	for _, opt := range opts {
		opt(e)
	}

	var err error
	if e.embedder == nil {
		e.embedder, err = newEmbedder(ctx, cfg)
		if err != nil {
			return nil, err
		}
	}
	e.queryEmbedder = e.embedder
	if cfg.Embeddings.CacheSize > 0 {
		e.queryEmbedder = embed.NewCachedEmbedder(e.embedder, cfg.Embeddings.CacheSize)
	}

	if e.extractor == nil {
		e.extractor = extract.New(extract.WithMaxFileSize(int64(cfg.Index.MaxFileSizeMB) * 1024 * 1024))
	}

	e.tracker, err = fingerprint.Open(e.layout.FingerprintDBPath())
	if err != nil {
		_ = e.embedder.Close()
		return nil, fmt.Errorf("failed to open fingerprint database: %w", err)
	}
	e.cache = cache.NewStore(e.layout.FileCacheDir())

	e.builder, err = index.NewBuilder(index.Dependencies{
		Layout:    e.layout,
		Embedder:  e.embedder,
		Extractor: e.extractor,
		Tracker:   e.tracker,
		Cache:     e.cache,
		Renderer:  e.renderer,
	}, index.Options{
		ChunkSizeWords:  cfg.Chunking.ChunkSizeWords,
		OverlapWords:    cfg.Chunking.OverlapWords,
		Workers:         cfg.Index.Workers,
		FileTimeout:     cfg.Embeddings.FileTimeout,
		ContentHash:     cfg.Index.ContentHash,
		PruneDeleted:    cfg.Index.PruneDeleted,
		ExcludePatterns: cfg.Paths.Exclude,
	})
	if err != nil {
		_ = e.Close()
		return nil, err
	}

	if e.generator == nil && strings.EqualFold(cfg.Generation.Provider, "ollama") {
		host := cfg.Generation.OllamaHost
		if host == "" {
			host = cfg.Embeddings.OllamaHost
		}
		e.generator = answer.NewOllamaGenerator(answer.OllamaConfig{
			Host:         host,
			Model:        cfg.Generation.Model,
			MaxNewTokens: cfg.Generation.MaxNewTokens,
			Temperature:  cfg.Generation.Temperature,
			TopP:         cfg.Generation.TopP,
			Timeout:      cfg.Generation.Timeout,
		})
	}

	slog.Debug("engine ready",
		slog.String("source_dir", cfg.Paths.SourceDir),
		slog.String("data_dir", cfg.Paths.DataDir),
		slog.String("embedder", e.embedder.ModelName()),
		slog.Bool("generator", e.generator != nil))

	return e, nil
}

func newEmbedder(ctx context.Context, cfg *config.Config) (embed.Embedder, error) {
	provider, err := embed.ParseProvider(cfg.Embeddings.Provider)
	if err != nil {
		return nil, err
	}
	return embed.New(ctx, embed.Options{
		Provider:   provider,
		Model:      cfg.Embeddings.Model,
		OllamaHost: cfg.Embeddings.OllamaHost,
		BatchSize:  cfg.Embeddings.BatchSize,
	})
}

// Config returns the configuration the engine was built from.
func (e *Engine) Config() *config.Config { return e.cfg }

// Layout returns the data directory layout.
func (e *Engine) Layout() store.Layout { return e.layout }

// Embedder returns the build-time embedder.
func (e *Engine) Embedder() embed.Embedder { return e.embedder }

// Generator returns the answer generator, or nil when generation is disabled.
func (e *Engine) Generator() answer.Generator { return e.generator }

// Tracker returns the fingerprint tracker.
func (e *Engine) Tracker() *fingerprint.Tracker { return e.tracker }

// SetRenderer changes where build progress goes.
func (e *Engine) SetRenderer(r ui.Renderer) {
	e.builder.SetRenderer(r)
}

// Build indexes the configured source directory and refreshes an open
// retriever so later queries see the new generation.
func (e *Engine) Build(ctx context.Context) (*store.IndexMetadata, error) {
	meta, err := e.builder.Build(ctx, e.cfg.Paths.SourceDir)
	if err != nil {
		return nil, err
	}

	e.mu.Lock()
	r := e.retriever
	e.mu.Unlock()
	if r != nil {
		if err := r.Reload(); err != nil {
			slog.Warn("failed to reload retriever after build", slog.String("error", err.Error()))
		}
	}
	return meta, nil
}

// Reset removes all index data so the next Build recomputes every file.
func (e *Engine) Reset(ctx context.Context) error {
	return e.builder.Reset(ctx)
}

// Retriever opens the published index on first use.
func (e *Engine) Retriever() (*retrieve.Retriever, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return nil, errors.New("engine is closed")
	}
	if e.retriever == nil {
		r, err := retrieve.Open(e.layout.DataDir, e.queryEmbedder)
		if err != nil {
			return nil, err
		}
		e.retriever = r
	}
	return e.retriever, nil
}

// Search retrieves budgeted context for query. topK <= 0 uses the configured value.
func (e *Engine) Search(ctx context.Context, query string, topK int) (*retrieve.Result, error) {
	r, err := e.Retriever()
	if err != nil {
		return nil, err
	}
	if topK <= 0 {
		topK = e.cfg.Retrieval.TopK
	}
	return r.Retrieve(ctx, query, topK, e.cfg.Retrieval.MaxContextChars)
}

// Ask answers question from the indexed textbooks.
func (e *Engine) Ask(ctx context.Context, question string) (*answer.Answer, error) {
	r, err := e.Retriever()
	if err != nil {
		return nil, err
	}
	tutor := answer.NewTutor(r, e.generator, answer.Options{
		TopK:            e.cfg.Retrieval.TopK,
		MaxContextChars: e.cfg.Retrieval.MaxContextChars,
	})
	return tutor.Answer(ctx, question)
}

// Close releases every component. It is safe to call more than once.
func (e *Engine) Close() error {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return nil
	}
	e.closed = true
	e.mu.Unlock()

	var errs []error
	if e.generator != nil {
		errs = append(errs, e.generator.Close())
	}
	if e.tracker != nil {
		errs = append(errs, e.tracker.Close())
	}
	if e.embedder != nil {
		errs = append(errs, e.embedder.Close())
	}
	return errors.Join(errs...)
}
