package engine

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Aman-CERP/tutor/internal/answer"
	"github.com/Aman-CERP/tutor/internal/config"
	"github.com/Aman-CERP/tutor/internal/embed"
	tutorerrors "github.com/Aman-CERP/tutor/internal/errors"
	"github.com/Aman-CERP/tutor/internal/extract"
	"github.com/Aman-CERP/tutor/internal/ui"
)

type echoGenerator struct{ calls int }

func (g *echoGenerator) Generate(_ context.Context, _ string) (string, error) {
	g.calls++
	return "Chlorophyll absorbs light.", nil
}
func (g *echoGenerator) ModelName() string { return "echo" }
func (g *echoGenerator) Close() error      { return nil }

// upperExtractor reads files and upper-cases them, counting calls.
type upperExtractor struct{ calls atomic.Int32 }

func (x *upperExtractor) Extract(_ context.Context, path string) extract.Result {
	x.calls.Add(1)
	data, err := os.ReadFile(path)
	if err != nil {
		return extract.Result{Reason: err.Error()}
	}
	return extract.Result{Text: strings.ToUpper(string(data))}
}

// closeCountingEmbedder wraps the static embedder and counts Close calls.
type closeCountingEmbedder struct {
	*embed.StaticEmbedder
	closes int
}

func (c *closeCountingEmbedder) Close() error {
	c.closes++
	return c.StaticEmbedder.Close()
}

// completionRenderer keeps the last completion summary.
type completionRenderer struct {
	ui.NopRenderer
	stats *ui.CompletionStats
}

func (r *completionRenderer) Complete(s ui.CompletionStats) { r.stats = &s }

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	root := t.TempDir()
	cfg := config.NewConfig()
	cfg.Paths.SourceDir = filepath.Join(root, "books")
	cfg.Paths.DataDir = filepath.Join(root, "data")
	cfg.Chunking.ChunkSizeWords = 8
	cfg.Chunking.OverlapWords = 2
	cfg.Retrieval.TopK = 2
	cfg.Retrieval.MaxContextChars = 400
	require.NoError(t, os.MkdirAll(cfg.Paths.SourceDir, 0o755))
	return cfg
}

func writeBook(t *testing.T, cfg *config.Config, name, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(cfg.Paths.SourceDir, name), []byte(content), 0o644))
}

func TestNew_RejectsInvalidConfig(t *testing.T) {
	cfg := testConfig(t)
	cfg.Chunking.ChunkSizeWords = 0

	_, err := New(context.Background(), cfg)

	assert.ErrorIs(t, err, tutorerrors.ErrConfigInvalid)
}

func TestEngine_BuildThenSearchAndAsk(t *testing.T) {
	// Given: an engine over two textbooks with a stub generator
	cfg := testConfig(t)
	writeBook(t, cfg, "biology.txt", "Photosynthesis happens in chloroplasts where chlorophyll absorbs light energy")
	writeBook(t, cfg, "geography.md", "Rivers carve valleys and deposit sediment in deltas near the sea")
	gen := &echoGenerator{}
	eng, err := New(context.Background(), cfg, WithGenerator(gen))
	require.NoError(t, err)
	defer func() { _ = eng.Close() }()

	// When: building and querying
	meta, err := eng.Build(context.Background())
	require.NoError(t, err)
	res, err := eng.Search(context.Background(), "chlorophyll absorbs light", 0)
	require.NoError(t, err)
	ans, err := eng.Ask(context.Background(), "What absorbs light?")
	require.NoError(t, err)

	// Then: the biology chunk ranks first and the generator answered
	assert.True(t, meta.IndexBuilt)
	assert.Equal(t, embed.StaticModelName, meta.EmbeddingModel)
	require.NotEmpty(t, res.Chunks)
	assert.Contains(t, res.Chunks[0].Chunk.SourcePath, "biology.txt")
	assert.True(t, ans.Found)
	assert.Equal(t, "Chlorophyll absorbs light.", ans.Text)
	assert.Equal(t, 1, gen.calls)
}

func TestEngine_InjectedComponents(t *testing.T) {
	// Given: an engine with injected embedder, extractor and renderer
	cfg := testConfig(t)
	writeBook(t, cfg, "a.txt", "mitochondria produce energy")
	emb := &closeCountingEmbedder{StaticEmbedder: embed.NewStaticEmbedder()}
	ext := &upperExtractor{}
	ren := &completionRenderer{}
	eng, err := New(context.Background(), cfg,
		WithEmbedder(emb), WithExtractor(ext), WithRenderer(ren))
	require.NoError(t, err)

	// When: building and searching
	_, err = eng.Build(context.Background())
	require.NoError(t, err)
	res, err := eng.Search(context.Background(), "MITOCHONDRIA", 1)
	require.NoError(t, err)
	require.NoError(t, eng.Close())

	// Then: every injected component took part and the engine closed the embedder
	assert.EqualValues(t, 1, ext.calls.Load())
	require.NotNil(t, ren.stats)
	assert.Equal(t, 1, ren.stats.Files)
	require.Len(t, res.Chunks, 1)
	assert.Contains(t, res.Chunks[0].Chunk.Text, "MITOCHONDRIA")
	assert.Equal(t, 1, emb.closes)
}

func TestEngine_SearchBeforeBuildReportsNoIndex(t *testing.T) {
	eng, err := New(context.Background(), testConfig(t))
	require.NoError(t, err)
	defer func() { _ = eng.Close() }()

	_, err = eng.Search(context.Background(), "anything", 3)

	assert.ErrorIs(t, err, tutorerrors.ErrNoIndex)
}

func TestEngine_BuildRefreshesOpenRetriever(t *testing.T) {
	cfg := testConfig(t)
	writeBook(t, cfg, "a.txt", "alpha beta gamma")
	eng, err := New(context.Background(), cfg)
	require.NoError(t, err)
	defer func() { _ = eng.Close() }()

	first, err := eng.Build(context.Background())
	require.NoError(t, err)
	r, err := eng.Retriever()
	require.NoError(t, err)
	assert.Equal(t, first.BuildID, r.Snapshot().Meta.BuildID)

	// When: the corpus changes and is rebuilt
	writeBook(t, cfg, "b.txt", "delta epsilon zeta")
	second, err := eng.Build(context.Background())
	require.NoError(t, err)

	// Then: the same retriever serves the new generation
	assert.Equal(t, second.BuildID, r.Snapshot().Meta.BuildID)
	assert.Equal(t, 2, r.Snapshot().Rows())
}

func TestEngine_AskWithoutGenerator(t *testing.T) {
	cfg := testConfig(t)
	writeBook(t, cfg, "a.txt", "osmosis moves water across membranes")
	eng, err := New(context.Background(), cfg)
	require.NoError(t, err)
	defer func() { _ = eng.Close() }()
	_, err = eng.Build(context.Background())
	require.NoError(t, err)

	ans, err := eng.Ask(context.Background(), "what is osmosis")

	require.NoError(t, err)
	assert.True(t, ans.Found)
	assert.False(t, ans.Generated)
	assert.Nil(t, eng.Generator())
}

func TestEngine_OllamaGeneratorFromConfig(t *testing.T) {
	cfg := testConfig(t)
	cfg.Generation.Provider = "ollama"
	cfg.Generation.Model = "tinyllama"

	eng, err := New(context.Background(), cfg)
	require.NoError(t, err)
	defer func() { _ = eng.Close() }()

	g, ok := eng.Generator().(*answer.OllamaGenerator)
	require.True(t, ok)
	assert.Equal(t, "tinyllama", g.ModelName())
}

func TestEngine_Status(t *testing.T) {
	cfg := testConfig(t)
	writeBook(t, cfg, "a.txt", "alpha beta gamma")
	writeBook(t, cfg, "notes.bin", "xx")
	eng, err := New(context.Background(), cfg)
	require.NoError(t, err)
	defer func() { _ = eng.Close() }()

	before, err := eng.Status(context.Background())
	require.NoError(t, err)
	assert.False(t, before.IndexBuilt)

	_, err = eng.Build(context.Background())
	require.NoError(t, err)
	info, err := eng.Status(context.Background())
	require.NoError(t, err)

	assert.True(t, info.IndexBuilt)
	assert.Equal(t, 1, info.FilesIndexed)
	assert.Equal(t, 1, info.FilesSkipped)
	assert.Equal(t, 1, info.TrackedFiles)
	assert.Equal(t, 1, info.Generations)
	assert.Equal(t, "static", info.EmbedderType)
	assert.Equal(t, "ready", info.EmbedderStatus)
	assert.Equal(t, "n/a", info.GeneratorStatus)
	assert.Positive(t, info.FingerprintsSz)
	assert.Positive(t, info.TotalSize)
}

func TestEngine_ResetAndClose(t *testing.T) {
	cfg := testConfig(t)
	writeBook(t, cfg, "a.txt", "alpha beta gamma")
	eng, err := New(context.Background(), cfg)
	require.NoError(t, err)
	_, err = eng.Build(context.Background())
	require.NoError(t, err)

	require.NoError(t, eng.Reset(context.Background()))
	info, err := eng.Status(context.Background())
	require.NoError(t, err)
	assert.False(t, info.IndexBuilt)
	assert.Zero(t, info.TrackedFiles)

	require.NoError(t, eng.Close())
	require.NoError(t, eng.Close())
	_, err = eng.Retriever()
	assert.Error(t, err)
}
