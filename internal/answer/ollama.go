package answer

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	tutorerrors "github.com/Aman-CERP/tutor/internal/errors"
	"github.com/Aman-CERP/tutor/internal/ollama"
)

// DefaultGeneratorModel is the default Ollama generation model.
const DefaultGeneratorModel = "tinyllama"

// OllamaConfig configures the Ollama generator.
type OllamaConfig struct {
	Host         string
	Model        string
	MaxNewTokens int
	Temperature  float64
	TopP         float64
	Timeout      time.Duration // Per attempt
	Retry        ollama.RetryConfig
}

// OllamaGenerator calls Ollama's non-streaming /api/generate endpoint.
type OllamaGenerator struct {
	client *ollama.Client
	config OllamaConfig
}

var _ Generator = (*OllamaGenerator)(nil)

// NewOllamaGenerator creates a generator. It does not contact Ollama; use
// Available to check the model is installed.
func NewOllamaGenerator(cfg OllamaConfig) *OllamaGenerator {
	if cfg.Model == "" {
		cfg.Model = DefaultGeneratorModel
	}
	if cfg.MaxNewTokens <= 0 {
		cfg.MaxNewTokens = 256
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 2 * time.Minute
	}
	if cfg.Retry.MaxAttempts <= 0 {
		cfg.Retry = ollama.DefaultRetryConfig()
	}
	return &OllamaGenerator{client: ollama.NewClient(cfg.Host), config: cfg}
}

// Generate returns the model's completion of prompt.
func (g *OllamaGenerator) Generate(ctx context.Context, prompt string) (string, error) {
	req := ollama.GenerateRequest{
		Model:  g.config.Model,
		Prompt: prompt,
		Stream: false,
		Options: ollama.GenerateOptions{
			NumPredict:  g.config.MaxNewTokens,
			Temperature: g.config.Temperature,
			TopP:        g.config.TopP,
		},
	}

	var resp ollama.GenerateResponse
	err := ollama.Retry(ctx, g.config.Retry, func(ctx context.Context) error {
		reqCtx, cancel := context.WithTimeout(ctx, g.config.Timeout)
		defer cancel()
		return g.client.PostJSON(reqCtx, "/api/generate", req, &resp)
	})
	if err != nil {
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		slog.Warn("generation failed",
			slog.String("model", g.config.Model),
			slog.String("error", err.Error()))
		return "", tutorerrors.New(tutorerrors.ErrCodeGenerationFailed,
			fmt.Sprintf("ollama generation with %s failed", g.config.Model), err).
			WithSuggestion(fmt.Sprintf("check 'ollama list' includes %s", g.config.Model))
	}
	return resp.Response, nil
}

// ModelName returns the configured model.
func (g *OllamaGenerator) ModelName() string {
	return g.config.Model
}

// Host returns the Ollama endpoint.
func (g *OllamaGenerator) Host() string {
	return g.client.Host()
}

// Available reports whether Ollama is reachable and has the model.
func (g *OllamaGenerator) Available(ctx context.Context) bool {
	_, ok, err := g.client.FindModel(ctx, g.config.Model)
	return err == nil && ok
}

// Close releases idle connections.
func (g *OllamaGenerator) Close() error {
	g.client.Close()
	return nil
}
