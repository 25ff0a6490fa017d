package fingerprint

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFileID_StableAndPathBased(t *testing.T) {
	id := FileID("/books/biology.txt")

	assert.Len(t, id, 16)
	assert.Equal(t, id, FileID("/books/biology.txt"))
	assert.NotEqual(t, id, FileID("/books/chemistry.txt"))
}

func TestCompute_StatAndOptionalHash(t *testing.T) {
	path := filepath.Join(t.TempDir(), "a.txt")
	require.NoError(t, os.WriteFile(path, []byte("alpha beta"), 0o644))

	fp, err := Compute(path, false)
	require.NoError(t, err)
	assert.EqualValues(t, 10, fp.SizeBytes)
	assert.NotZero(t, fp.MtimeNS)
	assert.Empty(t, fp.ContentHash)

	hashed, err := Compute(path, true)
	require.NoError(t, err)
	assert.Len(t, hashed.ContentHash, 16)
	assert.Equal(t, fp.MtimeNS, hashed.MtimeNS)

	_, err = Compute(filepath.Join(t.TempDir(), "missing"), false)
	assert.Error(t, err)
}

func TestUnchanged(t *testing.T) {
	prev := &Record{MtimeNS: 100, SizeBytes: 10, EmbeddingModel: "static"}

	tests := []struct {
		name  string
		prev  *Record
		cur   Fingerprint
		model string
		want  bool
	}{
		{"no previous record", nil, Fingerprint{MtimeNS: 100, SizeBytes: 10}, "static", false},
		{"identical", prev, Fingerprint{MtimeNS: 100, SizeBytes: 10}, "static", true},
		{"size changed", prev, Fingerprint{MtimeNS: 100, SizeBytes: 11}, "static", false},
		{"mtime changed", prev, Fingerprint{MtimeNS: 101, SizeBytes: 10}, "static", false},
		{"model changed", prev, Fingerprint{MtimeNS: 100, SizeBytes: 10}, "nomic", false},
		{"hash only on one side", prev, Fingerprint{MtimeNS: 100, SizeBytes: 10, ContentHash: "ab"}, "static", true},
		{
			"hash differs",
			&Record{MtimeNS: 100, SizeBytes: 10, EmbeddingModel: "static", ContentHash: "aa"},
			Fingerprint{MtimeNS: 100, SizeBytes: 10, ContentHash: "bb"}, "static", false,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Unchanged(tt.prev, tt.cur, tt.model))
		})
	}
}

func TestTracker_UpsertGetAllDelete(t *testing.T) {
	ctx := context.Background()
	tr, err := Open(filepath.Join(t.TempDir(), DBFileName))
	require.NoError(t, err)
	defer func() { _ = tr.Close() }()

	// Given: no records
	got, err := tr.Get(ctx, "/b/a.txt")
	require.NoError(t, err)
	assert.Nil(t, got)

	// When: upserting twice for the same path
	rec := Record{Path: "/b/a.txt", FileID: FileID("/b/a.txt"), MtimeNS: 1, SizeBytes: 2, EmbeddingModel: "static", ChunkCount: 3}
	require.NoError(t, tr.Upsert(ctx, rec))
	rec.SizeBytes = 5
	require.NoError(t, tr.Upsert(ctx, rec))
	require.NoError(t, tr.Upsert(ctx, Record{Path: "/b/b.txt", FileID: "x", EmbeddingModel: "static"}))

	// Then: the latest values are stored
	got, err = tr.Get(ctx, "/b/a.txt")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.EqualValues(t, 5, got.SizeBytes)
	assert.Equal(t, 3, got.ChunkCount)
	assert.False(t, got.IndexedAt.IsZero())

	all, err := tr.All(ctx)
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, "/b/a.txt", all[0].Path)

	require.NoError(t, tr.Delete(ctx, []string{"/b/a.txt"}))
	n, err := tr.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestTracker_PersistsAcrossReopen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), DBFileName)
	when := time.Unix(0, 1_700_000_000_123_456_789)

	tr, err := Open(path)
	require.NoError(t, err)
	require.NoError(t, tr.Upsert(ctx, Record{Path: "/x", FileID: "id", MtimeNS: 7, SizeBytes: 8, ContentHash: "ff", EmbeddingModel: "m", IndexedAt: when}))
	require.NoError(t, tr.Close())

	tr, err = Open(path)
	require.NoError(t, err)
	defer func() { _ = tr.Close() }()

	got, err := tr.Get(ctx, "/x")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, Fingerprint{MtimeNS: 7, SizeBytes: 8, ContentHash: "ff"}, got.Fingerprint())
	assert.True(t, when.Equal(got.IndexedAt))
}

func TestOpen_CorruptDatabaseIsRecreated(t *testing.T) {
	path := filepath.Join(t.TempDir(), DBFileName)
	require.NoError(t, os.WriteFile(path, []byte("definitely not sqlite, just some bytes that are long enough"), 0o644))

	tr, err := Open(path)
	require.NoError(t, err)
	defer func() { _ = tr.Close() }()

	n, err := tr.Count(context.Background())
	require.NoError(t, err)
	assert.Zero(t, n)
}
