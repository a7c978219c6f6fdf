package filestore

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jinford/docchat/internal/core/ingestion"
)

func testChunks() []*ingestion.Chunk {
	return []*ingestion.Chunk{
		{ID: uuid.New(), Ordinal: 0, Text: "Annual leave is 20 days.", StartOffset: 0, EndOffset: 24, Embedding: []float32{1, 0, 0}},
		{ID: uuid.New(), Ordinal: 1, Text: "Sick leave is 10 days.", StartOffset: 25, EndOffset: 47, Embedding: []float32{0, 1, 0}},
		{ID: uuid.New(), Ordinal: 2, Text: "Remote work requires approval.", StartOffset: 48, EndOffset: 78, Embedding: []float32{0, 0, 1}},
	}
}

func testMeta() ingestion.Metadata {
	return ingestion.Metadata{ModelName: "text-embedding-3-small", Dimension: 3}
}

func TestStore_ExistsBeforeAndAfterSave(t *testing.T) {
	path := filepath.Join(t.TempDir(), "index.json")
	store := New(path)
	ctx := context.Background()

	exists, err := store.Exists(ctx)
	require.NoError(t, err)
	assert.False(t, exists)

	require.NoError(t, store.SaveAll(ctx, testMeta(), testChunks()))

	exists, err = store.Exists(ctx)
	require.NoError(t, err)
	assert.True(t, exists)
}

func TestStore_SaveAllCreatesParentDirectories(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "deeper", "index.json")
	store := New(path)

	require.NoError(t, store.SaveAll(context.Background(), testMeta(), testChunks()))

	_, err := os.Stat(path)
	assert.NoError(t, err)
}

func TestStore_PersistenceRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "index.json")
	ctx := context.Background()
	chunks := testChunks()

	require.NoError(t, New(path).SaveAll(ctx, testMeta(), chunks))

	// 別のStoreインスタンスで読み直す（キャッシュなし）
	reopened := New(path)

	count, err := reopened.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, len(chunks), count)

	for _, chunk := range chunks {
		got, err := reopened.GetChunk(ctx, chunk.ID)
		require.NoError(t, err)
		record, ok := got.Get()
		require.True(t, ok)
		assert.Equal(t, chunk.Ordinal, record.Ordinal)
		assert.Equal(t, chunk.Text, record.Text)
	}
}

func TestStore_GetChunkUnknownIDReturnsNone(t *testing.T) {
	path := filepath.Join(t.TempDir(), "index.json")
	store := New(path)
	ctx := context.Background()
	require.NoError(t, store.SaveAll(ctx, testMeta(), testChunks()))

	got, err := store.GetChunk(ctx, uuid.New())
	require.NoError(t, err)
	assert.True(t, got.IsAbsent())
}

func TestStore_SearchOrdersByScoreDescending(t *testing.T) {
	path := filepath.Join(t.TempDir(), "index.json")
	store := New(path)
	ctx := context.Background()
	require.NoError(t, store.SaveAll(ctx, testMeta(), testChunks()))

	// Ordinal 1 のベクトルに最も近く、次いで Ordinal 0
	results, err := store.Search(ctx, []float32{0.3, 1, 0}, 2)
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, 1, results[0].Ordinal)
	assert.Equal(t, 0, results[1].Ordinal)
	assert.Greater(t, results[0].Score, results[1].Score)
}

func TestStore_SearchTiesKeepDocumentOrder(t *testing.T) {
	path := filepath.Join(t.TempDir(), "index.json")
	store := New(path)
	ctx := context.Background()

	// 全チャンクが同一ベクトル。スコア同点なら出現順を保つ
	chunks := []*ingestion.Chunk{
		{ID: uuid.New(), Ordinal: 0, Text: "a", Embedding: []float32{1, 1, 0}},
		{ID: uuid.New(), Ordinal: 1, Text: "b", Embedding: []float32{1, 1, 0}},
		{ID: uuid.New(), Ordinal: 2, Text: "c", Embedding: []float32{1, 1, 0}},
	}
	require.NoError(t, store.SaveAll(ctx, testMeta(), chunks))

	results, err := store.Search(ctx, []float32{1, 1, 0}, 0)
	require.NoError(t, err)
	require.Len(t, results, 3)
	for i, result := range results {
		assert.Equal(t, i, result.Ordinal)
	}
}

func TestStore_SearchLimitExceedsChunkCount(t *testing.T) {
	path := filepath.Join(t.TempDir(), "index.json")
	store := New(path)
	ctx := context.Background()
	require.NoError(t, store.SaveAll(ctx, testMeta(), testChunks()))

	results, err := store.Search(ctx, []float32{1, 0, 0}, 10)
	require.NoError(t, err)
	assert.Len(t, results, 3)
}

func TestStore_SearchEmptyIndex(t *testing.T) {
	store := New(filepath.Join(t.TempDir(), "index.json"))

	results, err := store.Search(context.Background(), []float32{1, 0, 0}, 4)
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestStore_SearchDimensionMismatch(t *testing.T) {
	path := filepath.Join(t.TempDir(), "index.json")
	store := New(path)
	ctx := context.Background()
	require.NoError(t, store.SaveAll(ctx, testMeta(), testChunks()))

	_, err := store.Search(ctx, []float32{1, 0}, 4)
	assert.Error(t, err)
}

func TestStore_SaveAllReplacesExistingIndex(t *testing.T) {
	path := filepath.Join(t.TempDir(), "index.json")
	store := New(path)
	ctx := context.Background()

	require.NoError(t, store.SaveAll(ctx, testMeta(), testChunks()))

	replacement := []*ingestion.Chunk{
		{ID: uuid.New(), Ordinal: 0, Text: "only chunk", Embedding: []float32{1, 0, 0}},
	}
	require.NoError(t, store.SaveAll(ctx, testMeta(), replacement))

	count, err := store.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	// 再読込でも置き換え後の内容が見える
	count, err = New(path).Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestCosineSimilarity(t *testing.T) {
	assert.InDelta(t, 1.0, cosineSimilarity([]float32{1, 0}, []float32{2, 0}), 1e-9)
	assert.InDelta(t, 0.0, cosineSimilarity([]float32{1, 0}, []float32{0, 1}), 1e-9)
	assert.InDelta(t, -1.0, cosineSimilarity([]float32{1, 0}, []float32{-1, 0}), 1e-9)

	// 長さ不一致とゼロベクトルは0を返す
	assert.Equal(t, 0.0, cosineSimilarity([]float32{1}, []float32{1, 0}))
	assert.Equal(t, 0.0, cosineSimilarity([]float32{0, 0}, []float32{1, 0}))
}
