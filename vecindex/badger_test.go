package vecindex

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sableridge/pagerag/core"
	badgerstore "github.com/sableridge/pagerag/storage/badger"
)

func newTestIndex(t *testing.T) Index {
	t.Helper()
	backend, err := badgerstore.OpenBackend("", true)
	require.NoError(t, err)
	t.Cleanup(func() { backend.Close() })

	idx, err := NewBadgerIndex(backend)
	require.NoError(t, err)
	return idx
}

func testChunk(ingestionId string, ordinal int, text string) core.Chunk {
	return core.Chunk{
		Id:          core.ChunkId(ingestionId, ordinal),
		IngestionId: ingestionId,
		DeviceId:    "device-1",
		Text:        text,
		Ordinal:     ordinal,
		TokenCount:  len(text) / 4,
	}
}

func TestIndex_StoreValidation(t *testing.T) {
	idx := newTestIndex(t)
	ctx := context.Background()
	ns := Namespace{DeviceId: "device-1", IngestionId: "ing-1"}

	t.Run("count mismatch", func(t *testing.T) {
		err := idx.Store(ctx, ns, []core.Chunk{testChunk("ing-1", 0, "a")}, nil)
		assert.ErrorIs(t, err, ErrCountMismatch)
	})

	t.Run("dimension mismatch writes nothing", func(t *testing.T) {
		chunks := []core.Chunk{
			testChunk("ing-1", 0, "first"),
			testChunk("ing-1", 1, "second"),
		}
		vectors := [][]float32{{1, 0}, {0, 1, 0}}
		err := idx.Store(ctx, ns, chunks, vectors)
		assert.ErrorIs(t, err, ErrDimensionMismatch)

		matches, err := idx.Search(ctx, ns, []float32{1, 0}, 0, 10)
		require.NoError(t, err)
		assert.Empty(t, matches)
	})

	t.Run("empty batch is a no-op", func(t *testing.T) {
		assert.NoError(t, idx.Store(ctx, ns, nil, nil))
	})
}

func TestIndex_DimensionIsFixedByFirstStore(t *testing.T) {
	idx := newTestIndex(t)
	ctx := context.Background()
	ns := Namespace{DeviceId: "device-1", IngestionId: "ing-1"}

	require.NoError(t, idx.Store(ctx, ns, []core.Chunk{testChunk("ing-1", 0, "alpha")}, [][]float32{{1, 0}}))

	t.Run("later store with another dimension is rejected", func(t *testing.T) {
		other := Namespace{DeviceId: "device-2", IngestionId: "ing-2"}
		err := idx.Store(ctx, other, []core.Chunk{testChunk("ing-2", 0, "beta")}, [][]float32{{1, 0, 0}})
		assert.ErrorIs(t, err, ErrDimensionMismatch)

		matches, err := idx.Search(ctx, other, []float32{1, 0}, 0, 10)
		require.NoError(t, err)
		assert.Empty(t, matches, "rejected store must write nothing")
	})

	t.Run("mismatched query vector is rejected", func(t *testing.T) {
		_, err := idx.Search(ctx, ns, []float32{1, 0, 0}, 0, 10)
		assert.ErrorIs(t, err, ErrDimensionMismatch)
	})

	t.Run("matching dimension still works", func(t *testing.T) {
		require.NoError(t, idx.Store(ctx, ns, []core.Chunk{testChunk("ing-1", 1, "gamma")}, [][]float32{{0, 1}}))

		matches, err := idx.Search(ctx, ns, []float32{1, 0}, 0, 10)
		require.NoError(t, err)
		assert.Len(t, matches, 2)
	})
}

func TestIndex_SearchOrderingAndFloor(t *testing.T) {
	idx := newTestIndex(t)
	ctx := context.Background()
	ns := Namespace{DeviceId: "device-1", IngestionId: "ing-1"}

	chunks := []core.Chunk{
		testChunk("ing-1", 0, "exact match"),
		testChunk("ing-1", 1, "close match"),
		testChunk("ing-1", 2, "orthogonal"),
		testChunk("ing-1", 3, "opposite"),
	}
	vectors := [][]float32{
		{1, 0},     // score 1.0
		{0.8, 0.6}, // score 0.9
		{0, 1},     // score 0.5
		{-1, 0},    // score 0.0
	}
	require.NoError(t, idx.Store(ctx, ns, chunks, vectors))

	t.Run("scores map onto the unit interval", func(t *testing.T) {
		matches, err := idx.Search(ctx, ns, []float32{1, 0}, 0, 10)
		require.NoError(t, err)
		require.Len(t, matches, 4)
		assert.InDelta(t, 1.0, matches[0].Score, 1e-6)
		assert.InDelta(t, 0.9, matches[1].Score, 1e-6)
		assert.InDelta(t, 0.5, matches[2].Score, 1e-6)
		assert.InDelta(t, 0.0, matches[3].Score, 1e-6)
	})

	t.Run("floor filters weak matches", func(t *testing.T) {
		matches, err := idx.Search(ctx, ns, []float32{1, 0}, 0.6, 10)
		require.NoError(t, err)
		require.Len(t, matches, 2)
		assert.Equal(t, 0, matches[0].Chunk.Ordinal)
		assert.Equal(t, 1, matches[1].Chunk.Ordinal)
	})

	t.Run("limit truncates", func(t *testing.T) {
		matches, err := idx.Search(ctx, ns, []float32{1, 0}, 0, 1)
		require.NoError(t, err)
		require.Len(t, matches, 1)
		assert.Equal(t, "exact match", matches[0].Chunk.Text)
	})
}

func TestIndex_TieBreaksOnOrdinal(t *testing.T) {
	idx := newTestIndex(t)
	ctx := context.Background()
	ns := Namespace{DeviceId: "device-1", IngestionId: "ing-1"}

	chunks := []core.Chunk{
		testChunk("ing-1", 2, "later twin"),
		testChunk("ing-1", 0, "earlier twin"),
	}
	vectors := [][]float32{{1, 0}, {1, 0}}
	require.NoError(t, idx.Store(ctx, ns, chunks, vectors))

	matches, err := idx.Search(ctx, ns, []float32{1, 0}, 0, 10)
	require.NoError(t, err)
	require.Len(t, matches, 2)
	assert.Equal(t, 0, matches[0].Chunk.Ordinal)
	assert.Equal(t, 2, matches[1].Chunk.Ordinal)
}

func TestIndex_NamespaceIsolation(t *testing.T) {
	idx := newTestIndex(t)
	ctx := context.Background()

	nsA := Namespace{DeviceId: "device-a", IngestionId: "ing-a"}
	nsB := Namespace{DeviceId: "device-b", IngestionId: "ing-b"}

	require.NoError(t, idx.Store(ctx, nsA, []core.Chunk{testChunk("ing-a", 0, "alpha")}, [][]float32{{1, 0}}))
	require.NoError(t, idx.Store(ctx, nsB, []core.Chunk{testChunk("ing-b", 0, "beta")}, [][]float32{{1, 0}}))

	matches, err := idx.Search(ctx, nsA, []float32{1, 0}, 0, 10)
	require.NoError(t, err)
	require.Len(t, matches, 1)
	assert.Equal(t, "alpha", matches[0].Chunk.Text)
}

func TestIndex_DeleteNamespace(t *testing.T) {
	idx := newTestIndex(t)
	ctx := context.Background()
	ns := Namespace{DeviceId: "device-1", IngestionId: "ing-1"}

	require.NoError(t, idx.Store(ctx, ns, []core.Chunk{testChunk("ing-1", 0, "gone soon")}, [][]float32{{1, 0}}))
	require.NoError(t, idx.DeleteNamespace(ctx, ns))

	matches, err := idx.Search(ctx, ns, []float32{1, 0}, 0, 10)
	require.NoError(t, err)
	assert.Empty(t, matches)
}
