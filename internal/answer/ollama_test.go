package answer

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	tutorerrors "github.com/Aman-CERP/tutor/internal/errors"
	"github.com/Aman-CERP/tutor/internal/ollama"
)

type fakeGenerate struct {
	calls     atomic.Int32
	failFirst atomic.Int32
	status    int // Non-zero fails every call with this status
	last      atomic.Pointer[ollama.GenerateRequest]
}

func newFakeGenerate(t *testing.T, f *fakeGenerate) string {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/tags":
			_ = json.NewEncoder(w).Encode(ollama.ModelListResponse{
				Models: []ollama.ModelInfo{{Name: "tinyllama:latest"}},
			})
		case "/api/generate":
			f.calls.Add(1)
			if f.status != 0 {
				http.Error(w, "nope", f.status)
				return
			}
			if f.failFirst.Load() > 0 {
				f.failFirst.Add(-1)
				http.Error(w, "loading model", http.StatusServiceUnavailable)
				return
			}
			var req ollama.GenerateRequest
			require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
			f.last.Store(&req)
			_ = json.NewEncoder(w).Encode(ollama.GenerateResponse{
				Model:    req.Model,
				Response: "Plants make food from light.",
				Done:     true,
			})
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(srv.Close)
	return srv.URL
}

func fastRetry() ollama.RetryConfig {
	return ollama.RetryConfig{MaxAttempts: 3, InitialDelay: time.Millisecond, MaxDelay: 5 * time.Millisecond, Multiplier: 2}
}

func TestOllamaGenerator_Generate(t *testing.T) {
	// Given: a generator with explicit sampling options
	f := &fakeGenerate{}
	g := NewOllamaGenerator(OllamaConfig{
		Host:         newFakeGenerate(t, f),
		Model:        "tinyllama",
		MaxNewTokens: 64,
		Temperature:  0.3,
		TopP:         0.9,
		Retry:        fastRetry(),
	})
	defer func() { _ = g.Close() }()

	// When: generating
	out, err := g.Generate(context.Background(), "[SYSTEM]\nx\n\n[ANSWER]")

	// Then: one non-streaming request carried the options
	require.NoError(t, err)
	assert.Equal(t, "Plants make food from light.", out)
	req := f.last.Load()
	require.NotNil(t, req)
	assert.False(t, req.Stream)
	assert.Equal(t, "tinyllama", req.Model)
	assert.Equal(t, 64, req.Options.NumPredict)
	assert.InDelta(t, 0.3, req.Options.Temperature, 1e-9)
	assert.InDelta(t, 0.9, req.Options.TopP, 1e-9)
}

func TestOllamaGenerator_RetriesTransientFailures(t *testing.T) {
	f := &fakeGenerate{}
	f.failFirst.Store(2)
	g := NewOllamaGenerator(OllamaConfig{Host: newFakeGenerate(t, f), Retry: fastRetry()})

	out, err := g.Generate(context.Background(), "prompt")

	require.NoError(t, err)
	assert.NotEmpty(t, out)
	assert.Equal(t, int32(3), f.calls.Load())
}

func TestOllamaGenerator_PermanentFailureNotRetried(t *testing.T) {
	f := &fakeGenerate{status: http.StatusNotFound}
	g := NewOllamaGenerator(OllamaConfig{Host: newFakeGenerate(t, f), Model: "missing", Retry: fastRetry()})

	_, err := g.Generate(context.Background(), "prompt")

	require.Error(t, err)
	assert.Equal(t, tutorerrors.ErrCodeGenerationFailed, tutorerrors.GetCode(err))
	assert.Equal(t, int32(1), f.calls.Load())
}

func TestOllamaGenerator_Available(t *testing.T) {
	host := newFakeGenerate(t, &fakeGenerate{})

	assert.True(t, NewOllamaGenerator(OllamaConfig{Host: host, Model: "tinyllama"}).Available(context.Background()))
	assert.False(t, NewOllamaGenerator(OllamaConfig{Host: host, Model: "llama3"}).Available(context.Background()))
}

func TestOllamaGenerator_Defaults(t *testing.T) {
	g := NewOllamaGenerator(OllamaConfig{})

	assert.Equal(t, DefaultGeneratorModel, g.ModelName())
	assert.Equal(t, ollama.DefaultHost, g.Host())
}
