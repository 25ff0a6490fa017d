package retrieve

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Aman-CERP/tutor/internal/chunk"
	"github.com/Aman-CERP/tutor/internal/embed"
	tutorerrors "github.com/Aman-CERP/tutor/internal/errors"
	"github.com/Aman-CERP/tutor/internal/store"
)

// publish writes a generation holding texts and points the metadata at it.
func publish(t *testing.T, layout store.Layout, buildID string, emb embed.Embedder, texts ...string) {
	t.Helper()
	ctx := context.Background()

	vecs, err := emb.EmbedBatch(ctx, texts)
	require.NoError(t, err)
	idx := store.NewFlatIndex(emb.Dimensions())
	require.NoError(t, idx.Add(vecs...))
	require.NoError(t, idx.Save(layout.VectorsPath(buildID)))

	chunks := chunk.Records("f"+buildID, "/books/"+buildID+".txt", texts)
	require.NoError(t, store.SaveDocstore(layout.DocstorePath(buildID), &store.Docstore{BuildID: buildID, Chunks: chunks}))

	require.NoError(t, store.SaveMetadata(layout.MetadataPath(), &store.IndexMetadata{
		BuildID:        buildID,
		IndexBuilt:     true,
		TotalChunks:    len(texts),
		EmbeddingModel: emb.ModelName(),
		Dimensions:     emb.Dimensions(),
		IndexType:      store.IndexTypeFlatIP,
	}))
}

func matchTexts(res *Result) []string {
	out := make([]string, len(res.Chunks))
	for i, m := range res.Chunks {
		out[i] = m.Chunk.Text
	}
	return out
}

// wideEmbedder reports the static model name with a different width.
type wideEmbedder struct{ *embed.StaticEmbedder }

func (wideEmbedder) Dimensions() int { return 8 }
func (wideEmbedder) Embed(context.Context, string) ([]float32, error) {
	return []float32{1, 0, 0, 0, 0, 0, 0, 0}, nil
}

func TestRetrieve_ReturnsClosestChunk(t *testing.T) {
	// Given: the A/B corpus split into 2-word chunks
	layout := store.NewLayout(t.TempDir())
	emb := embed.NewStaticEmbedder()
	publish(t, layout, "b1", emb, "alpha beta", "gamma delta", "epsilon zeta")
	r, err := Open(layout.DataDir, emb)
	require.NoError(t, err)

	// When: querying with the text of one chunk and top_k=1
	res, err := r.Retrieve(context.Background(), "gamma delta", 1, 1000)

	// Then: that chunk is the sole result
	require.NoError(t, err)
	require.Len(t, res.Chunks, 1)
	assert.Equal(t, "gamma delta", res.Chunks[0].Chunk.Text)
	assert.Equal(t, "gamma delta", res.Context)
	assert.Equal(t, 1, res.Chunks[0].Rank)
	assert.Equal(t, "b1", res.BuildID)
	assert.True(t, res.Found())
}

func TestRetrieve_CandidatesInNonIncreasingScoreOrder(t *testing.T) {
	layout := store.NewLayout(t.TempDir())
	emb := embed.NewStaticEmbedder()
	publish(t, layout, "b1", emb,
		"photosynthesis converts light energy",
		"plants use light to make food",
		"volcanoes erupt molten rock",
		"light energy drives photosynthesis in plants")
	r, err := Open(layout.DataDir, emb)
	require.NoError(t, err)

	res, err := r.Retrieve(context.Background(), "how do plants use light energy", 3, 10000)
	require.NoError(t, err)

	require.Len(t, res.Chunks, 3)
	for i := 1; i < len(res.Chunks); i++ {
		assert.GreaterOrEqual(t, res.Chunks[i-1].Score, res.Chunks[i].Score)
		assert.Equal(t, i+1, res.Chunks[i].Rank)
	}
}

func TestRetrieve_TopKLargerThanIndex(t *testing.T) {
	layout := store.NewLayout(t.TempDir())
	emb := embed.NewStaticEmbedder()
	publish(t, layout, "b1", emb, "alpha beta", "gamma delta")
	r, err := Open(layout.DataDir, emb)
	require.NoError(t, err)

	res, err := r.Retrieve(context.Background(), "alpha", 50, 1000)

	require.NoError(t, err)
	assert.Len(t, res.Chunks, 2)
}

func TestRetrieve_FirstCandidateAlwaysIncluded(t *testing.T) {
	// Given: a chunk longer than the whole budget
	layout := store.NewLayout(t.TempDir())
	emb := embed.NewStaticEmbedder()
	long := strings.Repeat("mitochondria ", 20)
	publish(t, layout, "b1", emb, long, "ribosome protein")
	r, err := Open(layout.DataDir, emb)
	require.NoError(t, err)

	// When: retrieving with a tiny budget
	res, err := r.Retrieve(context.Background(), "mitochondria", 2, 5)

	// Then: only the first candidate, over budget, is returned
	require.NoError(t, err)
	assert.Equal(t, []string{long}, matchTexts(res))
	assert.Equal(t, long, res.Context)
}

func TestRetrieve_StopsBeforeExceedingBudget(t *testing.T) {
	layout := store.NewLayout(t.TempDir())
	emb := embed.NewStaticEmbedder()
	// 10, 10 and 10 runes
	publish(t, layout, "b1", emb, "cell cells", "cell walls", "cell xxxxx")
	r, err := Open(layout.DataDir, emb)
	require.NoError(t, err)

	res, err := r.Retrieve(context.Background(), "cell", 3, 25)
	require.NoError(t, err)

	// Two chunks fit (20 runes), a third would make 30
	assert.Len(t, res.Chunks, 2)
	assert.Equal(t, strings.Join(matchTexts(res), ContextSeparator), res.Context)
}

func TestRetrieve_BudgetCountsRunes(t *testing.T) {
	layout := store.NewLayout(t.TempDir())
	emb := embed.NewStaticEmbedder()
	publish(t, layout, "b1", emb, "ñañaña", "ñañaño")
	r, err := Open(layout.DataDir, emb)
	require.NoError(t, err)

	res, err := r.Retrieve(context.Background(), "ñañaña", 2, 12)

	require.NoError(t, err)
	assert.Len(t, res.Chunks, 2)
}

func TestRetrieve_SkipsEmptyChunkText(t *testing.T) {
	layout := store.NewLayout(t.TempDir())
	emb := embed.NewStaticEmbedder()
	publish(t, layout, "b1", emb, "", "gamma delta")
	r, err := Open(layout.DataDir, emb)
	require.NoError(t, err)

	res, err := r.Retrieve(context.Background(), "gamma", 2, 1000)

	require.NoError(t, err)
	assert.Equal(t, []string{"gamma delta"}, matchTexts(res))
}

func TestRetrieve_Errors(t *testing.T) {
	emb := embed.NewStaticEmbedder()

	t.Run("empty query", func(t *testing.T) {
		layout := store.NewLayout(t.TempDir())
		publish(t, layout, "b1", emb, "alpha")
		r, err := Open(layout.DataDir, emb)
		require.NoError(t, err)

		_, err = r.Retrieve(context.Background(), "  \n", 3, 100)
		assert.ErrorIs(t, err, tutorerrors.ErrQueryEmpty)
	})

	t.Run("no metadata", func(t *testing.T) {
		r, err := Open(t.TempDir(), emb)
		require.NoError(t, err)

		_, err = r.Retrieve(context.Background(), "alpha", 3, 100)
		assert.ErrorIs(t, err, tutorerrors.ErrNoIndex)
	})

	t.Run("index not built", func(t *testing.T) {
		layout := store.NewLayout(t.TempDir())
		require.NoError(t, store.SaveMetadata(layout.MetadataPath(), &store.IndexMetadata{BuildID: "b0"}))
		r, err := Open(layout.DataDir, emb)
		require.NoError(t, err)

		_, err = r.Retrieve(context.Background(), "alpha", 3, 100)
		assert.ErrorIs(t, err, tutorerrors.ErrNoIndex)
	})

	t.Run("model mismatch", func(t *testing.T) {
		layout := store.NewLayout(t.TempDir())
		publish(t, layout, "b1", emb, "alpha")
		meta, err := store.LoadMetadata(layout.MetadataPath())
		require.NoError(t, err)
		meta.EmbeddingModel = "nomic-embed-text"
		require.NoError(t, store.SaveMetadata(layout.MetadataPath(), meta))
		r, err := Open(layout.DataDir, emb)
		require.NoError(t, err)

		_, err = r.Retrieve(context.Background(), "alpha", 3, 100)
		assert.ErrorIs(t, err, tutorerrors.ErrModelMismatch)
	})

	t.Run("dimension mismatch", func(t *testing.T) {
		layout := store.NewLayout(t.TempDir())
		publish(t, layout, "b1", emb, "alpha")
		r, err := Open(layout.DataDir, wideEmbedder{emb})
		require.NoError(t, err)

		_, err = r.Retrieve(context.Background(), "alpha", 3, 100)
		assert.ErrorIs(t, err, tutorerrors.ErrDimensionMismatch)
	})

	t.Run("non-positive top_k", func(t *testing.T) {
		layout := store.NewLayout(t.TempDir())
		publish(t, layout, "b1", emb, "alpha")
		r, err := Open(layout.DataDir, emb)
		require.NoError(t, err)

		_, err = r.Retrieve(context.Background(), "alpha", 0, 100)
		assert.Equal(t, tutorerrors.ErrCodeInvalidInput, tutorerrors.GetCode(err))
	})
}

func TestOpen_RejectsMisalignedGeneration(t *testing.T) {
	// Given: metadata pointing at a docstore from another build
	layout := store.NewLayout(t.TempDir())
	emb := embed.NewStaticEmbedder()
	publish(t, layout, "b1", emb, "alpha", "beta")
	require.NoError(t, store.SaveDocstore(layout.DocstorePath("b1"), &store.Docstore{
		BuildID: "other",
		Chunks:  chunk.Records("x", "/x", []string{"alpha", "beta"}),
	}))

	_, err := Open(layout.DataDir, emb)

	assert.ErrorIs(t, err, tutorerrors.ErrCorruptIndex)
}

func TestOpen_RejectsRowCountMismatch(t *testing.T) {
	layout := store.NewLayout(t.TempDir())
	emb := embed.NewStaticEmbedder()
	publish(t, layout, "b1", emb, "alpha", "beta")
	require.NoError(t, store.SaveDocstore(layout.DocstorePath("b1"), &store.Docstore{
		BuildID: "b1",
		Chunks:  chunk.Records("x", "/x", []string{"alpha"}),
	}))

	_, err := Open(layout.DataDir, emb)

	assert.ErrorIs(t, err, tutorerrors.ErrCorruptIndex)
}

func TestReload_SwapsSnapshot(t *testing.T) {
	layout := store.NewLayout(t.TempDir())
	emb := embed.NewStaticEmbedder()
	publish(t, layout, "b1", emb, "alpha beta")
	r, err := Open(layout.DataDir, emb)
	require.NoError(t, err)

	publish(t, layout, "b2", emb, "gamma delta", "epsilon zeta")
	assert.Equal(t, "b1", r.Snapshot().Meta.BuildID)

	require.NoError(t, r.Reload())
	assert.Equal(t, "b2", r.Snapshot().Meta.BuildID)
	assert.Equal(t, 2, r.Snapshot().Rows())
}

func TestReload_ConcurrentQueriesSeeConsistentSnapshots(t *testing.T) {
	// Given: generations whose chunk texts name their build
	layout := store.NewLayout(t.TempDir())
	emb := embed.NewStaticEmbedder()
	gen := func(i int) (string, []string) {
		id := fmt.Sprintf("b%d", i)
		texts := make([]string, i+1)
		for j := range texts {
			texts[j] = fmt.Sprintf("%s topic %d", id, j)
		}
		return id, texts
	}
	id, texts := gen(1)
	publish(t, layout, id, emb, texts...)
	r, err := Open(layout.DataDir, emb)
	require.NoError(t, err)

	// When: queries run while new generations are published and reloaded
	var wg sync.WaitGroup
	stop := make(chan struct{})
	errs := make(chan error, 64)
	for w := 0; w < 4; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				select {
				case <-stop:
					return
				default:
				}
				res, err := r.Retrieve(context.Background(), "topic", 10, 100000)
				if err != nil {
					errs <- err
					return
				}
				for _, m := range res.Chunks {
					if !strings.HasPrefix(m.Chunk.Text, res.BuildID+" ") {
						errs <- fmt.Errorf("chunk %q served from snapshot %s", m.Chunk.Text, res.BuildID)
						return
					}
				}
			}
		}()
	}
	for i := 2; i <= 6; i++ {
		id, texts := gen(i)
		publish(t, layout, id, emb, texts...)
		require.NoError(t, r.Reload())
	}
	close(stop)
	wg.Wait()
	close(errs)

	// Then: every result came from a single aligned snapshot
	for err := range errs {
		t.Error(err)
	}
	assert.Equal(t, "b6", r.Snapshot().Meta.BuildID)
}
