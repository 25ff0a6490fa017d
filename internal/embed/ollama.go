package embed

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	tutorerrors "github.com/Aman-CERP/tutor/internal/errors"
	"github.com/Aman-CERP/tutor/internal/ollama"
)

// DefaultOllamaModel is the default Ollama embedding model.
const DefaultOllamaModel = "nomic-embed-text"

// OllamaConfig configures the Ollama embedder.
type OllamaConfig struct {
	// Host is the Ollama API endpoint (default: http://localhost:11434).
	Host string

	// Model is the embedding model (default: nomic-embed-text).
	Model string

	// Dimensions overrides auto-detection when non-zero.
	Dimensions int

	// BatchSize is the number of texts per /api/embed request.
	BatchSize int

	// Timeout bounds each request attempt.
	Timeout time.Duration

	// Retry controls backoff between attempts.
	Retry ollama.RetryConfig

	// SkipHealthCheck skips model discovery and dimension probing.
	// Dimensions must then be set.
	SkipHealthCheck bool
}

// DefaultOllamaConfig returns sensible defaults.
func DefaultOllamaConfig() OllamaConfig {
	return OllamaConfig{
		Host:      ollama.DefaultHost,
		Model:     DefaultOllamaModel,
		BatchSize: DefaultBatchSize,
		Timeout:   DefaultTimeout,
		Retry:     ollama.DefaultRetryConfig(),
	}
}

// OllamaEmbedder generates embeddings through Ollama's /api/embed endpoint.
// Returned vectors are normalized to unit length.
type OllamaEmbedder struct {
	client    *ollama.Client
	config    OllamaConfig
	modelName string
	dims      int

	mu     sync.RWMutex
	closed bool
}

var _ Embedder = (*OllamaEmbedder)(nil)

// NewOllamaEmbedder connects to Ollama, resolves the model and detects its
// output width.
func NewOllamaEmbedder(ctx context.Context, cfg OllamaConfig) (*OllamaEmbedder, error) {
	defaults := DefaultOllamaConfig()
	if cfg.Host == "" {
		cfg.Host = defaults.Host
	}
	if cfg.Model == "" {
		cfg.Model = defaults.Model
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = defaults.BatchSize
	}
	if cfg.BatchSize > MaxBatchSize {
		cfg.BatchSize = MaxBatchSize
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaults.Timeout
	}
	if cfg.Retry.MaxAttempts <= 0 {
		cfg.Retry = defaults.Retry
	}

	e := &OllamaEmbedder{
		client:    ollama.NewClient(cfg.Host),
		config:    cfg,
		modelName: cfg.Model,
		dims:      cfg.Dimensions,
	}

	if !cfg.SkipHealthCheck {
		name, ok, err := e.client.FindModel(ctx, cfg.Model)
		if err != nil {
			e.client.Close()
			return nil, tutorerrors.New(tutorerrors.ErrCodeNetworkUnavailable,
				fmt.Sprintf("cannot reach Ollama at %s", e.client.Host()), err).
				WithSuggestion("start Ollama with 'ollama serve' or set embeddings.provider to 'static'")
		}
		if !ok {
			e.client.Close()
			return nil, tutorerrors.ConfigError(fmt.Sprintf("embedding model %q is not installed", cfg.Model), nil).
				WithSuggestion(fmt.Sprintf("run 'ollama pull %s'", cfg.Model))
		}
		e.modelName = name

		if e.dims == 0 {
			vecs, err := e.embedWithRetry(ctx, []string{"dimension detection"})
			if err != nil {
				e.client.Close()
				return nil, fmt.Errorf("failed to detect embedding dimensions: %w", err)
			}
			e.dims = len(vecs[0])
		}
	}

	if e.dims == 0 {
		e.client.Close()
		return nil, fmt.Errorf("embedding dimensions unknown: set Dimensions when skipping the health check")
	}

	return e, nil
}

// Embed generates the embedding for a single text. Blank text yields the zero vector.
func (e *OllamaEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	vecs, err := e.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vecs[0], nil
}

// EmbedBatch embeds texts in requests of at most BatchSize texts.
func (e *OllamaEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if e.isClosed() {
		return nil, fmt.Errorf("embedder is closed")
	}

	results := make([][]float32, len(texts))
	var (
		idx     []int
		pending []string
	)
	for i, text := range texts {
		if strings.TrimSpace(text) == "" {
			results[i] = make([]float32, e.dims)
			continue
		}
		idx = append(idx, i)
		pending = append(pending, text)
	}

	for start := 0; start < len(pending); start += e.config.BatchSize {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		end := min(start+e.config.BatchSize, len(pending))

		vecs, err := e.embedWithRetry(ctx, pending[start:end])
		if err != nil {
			return nil, err
		}
		for j, v := range vecs {
			if len(v) != e.dims {
				return nil, tutorerrors.New(tutorerrors.ErrCodeDimensionMismatch,
					fmt.Sprintf("model %s returned %d dimensions, expected %d", e.modelName, len(v), e.dims), nil)
			}
			results[idx[start+j]] = v
		}
	}
	return results, nil
}

func (e *OllamaEmbedder) embedWithRetry(ctx context.Context, texts []string) ([][]float32, error) {
	var out [][]float32
	attempt := 0
	err := ollama.Retry(ctx, e.config.Retry, func(ctx context.Context) error {
		attempt++
		reqCtx, cancel := context.WithTimeout(ctx, e.config.Timeout)
		defer cancel()

		vecs, err := e.doEmbed(reqCtx, texts)
		if err != nil {
			slog.Debug("embedding_attempt_failed",
				slog.Int("attempt", attempt),
				slog.Int("texts_count", len(texts)),
				slog.String("error", err.Error()))
			return err
		}
		out = vecs
		return nil
	})
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, tutorerrors.New(tutorerrors.ErrCodeEmbeddingFailed,
			fmt.Sprintf("embedding %d texts with %s failed", len(texts), e.modelName), err)
	}
	return out, nil
}

func (e *OllamaEmbedder) doEmbed(ctx context.Context, texts []string) ([][]float32, error) {
	var input any = texts
	if len(texts) == 1 {
		input = texts[0]
	}

	var resp ollama.EmbedResponse
	if err := e.client.PostJSON(ctx, "/api/embed", ollama.EmbedRequest{Model: e.modelName, Input: input}, &resp); err != nil {
		return nil, err
	}
	if len(resp.Embeddings) != len(texts) {
		return nil, fmt.Errorf("ollama returned %d embeddings for %d texts", len(resp.Embeddings), len(texts))
	}

	out := make([][]float32, len(resp.Embeddings))
	for i, emb := range resp.Embeddings {
		v := make([]float32, len(emb))
		for j, x := range emb {
			v[j] = float32(x)
		}
		out[i] = normalizeVector(v)
	}
	return out, nil
}

// Dimensions returns the embedding dimension.
func (e *OllamaEmbedder) Dimensions() int {
	return e.dims
}

// ModelName returns the resolved model name.
func (e *OllamaEmbedder) ModelName() string {
	return e.modelName
}

// Available reports whether Ollama is reachable and still has the model.
func (e *OllamaEmbedder) Available(ctx context.Context) bool {
	if e.isClosed() {
		return false
	}
	_, ok, err := e.client.FindModel(ctx, e.modelName)
	return err == nil && ok
}

// Close releases idle connections.
func (e *OllamaEmbedder) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return nil
	}
	e.closed = true
	e.client.Close()
	return nil
}

func (e *OllamaEmbedder) isClosed() bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.closed
}
