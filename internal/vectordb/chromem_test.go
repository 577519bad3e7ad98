package vectordb

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"textbook-rag/internal/config"
)

func newTestChromem(t *testing.T) *Chromem {
	t.Helper()
	store, err := NewChromem(&config.ChromemConfig{Collection: "book_chunks", InMemory: true})
	require.NoError(t, err)
	require.NoError(t, store.EnsureCollection(context.Background(), 3))
	return store
}

func seedPoints(t *testing.T, store *Chromem) {
	t.Helper()
	points := []Point{
		{ID: 1, Vector: []float32{1, 0, 0}, Payload: Payload{BookID: "book-a", ChunkID: 1, Content: "PID control basics", Chapter: "Week 1", Position: 0}},
		{ID: 2, Vector: []float32{0, 1, 0}, Payload: Payload{BookID: "book-a", ChunkID: 2, Content: "Sensor fusion", Chapter: "Week 2", Position: 1}},
		{ID: 3, Vector: []float32{1, 0, 0}, Payload: Payload{BookID: "book-b", ChunkID: 3, Content: "Unrelated book", Position: 0}},
	}
	require.NoError(t, store.Upsert(context.Background(), points))
}

func TestChromemSearchFiltersByBookAndThreshold(t *testing.T) {
	store := newTestChromem(t)
	seedPoints(t, store)

	// The query vector matches point 1 exactly and is orthogonal to
	// point 2, which the threshold drops.
	hits, err := store.Search(context.Background(), []float32{1, 0, 0}, "book-a", 5, 0.5)
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, uint64(1), hits[0].ID)
	assert.Equal(t, "book-a", hits[0].Payload.BookID)
	assert.Equal(t, "PID control basics", hits[0].Payload.Content)
	assert.Equal(t, "Week 1", hits[0].Payload.Chapter)
	assert.InDelta(t, 1.0, float64(hits[0].Score), 1e-3)
}

func TestChromemSearchLimitAboveFilteredCount(t *testing.T) {
	// book-b holds a single point; asking for more than it has must
	// return that one hit, not an error.
	store := newTestChromem(t)
	seedPoints(t, store)

	hits, err := store.Search(context.Background(), []float32{1, 0, 0}, "book-b", 5, 0.5)
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, uint64(3), hits[0].ID)
	assert.Equal(t, "book-b", hits[0].Payload.BookID)
}

func TestChromemSearchEmptyCollection(t *testing.T) {
	store := newTestChromem(t)
	hits, err := store.Search(context.Background(), []float32{1, 0, 0}, "book-a", 5, 0.5)
	require.NoError(t, err)
	assert.Empty(t, hits)
}

func TestChromemCountPerBook(t *testing.T) {
	ctx := context.Background()
	store := newTestChromem(t)
	seedPoints(t, store)

	n, err := store.Count(ctx, "book-a")
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	n, err = store.Count(ctx, "book-b")
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	total, err := store.Count(ctx, "")
	require.NoError(t, err)
	assert.Equal(t, 3, total)
}

func TestChromemUpsertSameIDOverwrites(t *testing.T) {
	ctx := context.Background()
	store := newTestChromem(t)
	seedPoints(t, store)

	require.NoError(t, store.Upsert(ctx, []Point{
		{ID: 1, Vector: []float32{1, 0, 0}, Payload: Payload{BookID: "book-a", ChunkID: 1, Content: "PID control revised", Position: 0}},
	}))

	n, err := store.Count(ctx, "book-a")
	require.NoError(t, err)
	assert.Equal(t, 2, n, "re-ingestion does not duplicate")

	hits, err := store.Search(ctx, []float32{1, 0, 0}, "book-a", 5, 0.5)
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, "PID control revised", hits[0].Payload.Content)
}
