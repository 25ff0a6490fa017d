package embed

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// ProviderType names an embedder implementation.
type ProviderType string

const (
	ProviderStatic ProviderType = "static"
	ProviderOllama ProviderType = "ollama"
)

// Options selects and configures an embedder.
type Options struct {
	Provider   ProviderType
	Model      string
	OllamaHost string
	BatchSize  int
	Timeout    time.Duration
}

// ParseProvider converts a config string to a ProviderType.
func ParseProvider(s string) (ProviderType, error) {
	switch ProviderType(strings.ToLower(strings.TrimSpace(s))) {
	case ProviderStatic:
		return ProviderStatic, nil
	case ProviderOllama:
		return ProviderOllama, nil
	default:
		return "", fmt.Errorf("unknown embeddings provider %q (use: static, ollama)", s)
	}
}

// New creates the embedder selected by opts.
func New(ctx context.Context, opts Options) (Embedder, error) {
	switch opts.Provider {
	case ProviderStatic, "":
		return NewStaticEmbedder(), nil
	case ProviderOllama:
		cfg := DefaultOllamaConfig()
		if opts.OllamaHost != "" {
			cfg.Host = opts.OllamaHost
		}
		if opts.Model != "" {
			cfg.Model = opts.Model
		}
		if opts.BatchSize > 0 {
			cfg.BatchSize = opts.BatchSize
		}
		if opts.Timeout > 0 {
			cfg.Timeout = opts.Timeout
		}
		return NewOllamaEmbedder(ctx, cfg)
	default:
		return nil, fmt.Errorf("unknown embeddings provider %q", opts.Provider)
	}
}
