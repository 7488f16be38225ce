package memory

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"medreport/internal/domain"
)

func entryFor(docID string, ordinal int, vector []float32) domain.Entry {
	return domain.Entry{
		ID:     fmt.Sprintf("%s-%d", docID, ordinal),
		Vector: vector,
		Chunk: domain.Chunk{
			ID:       fmt.Sprintf("%s-%d", docID, ordinal),
			DocID:    docID,
			Ordinal:  ordinal,
			Filename: docID + ".pdf",
			Text:     fmt.Sprintf("chunk %d of %s", ordinal, docID),
		},
	}
}

func TestQueryFilterIsolation(t *testing.T) {
	ctx := context.Background()
	idx := NewIndex()
	require.NoError(t, idx.Upsert(ctx, []domain.Entry{
		entryFor("doc-a", 0, []float32{1, 0}),
		entryFor("doc-a", 1, []float32{0.9, 0.1}),
		entryFor("doc-b", 0, []float32{1, 0}),
	}))

	// Even with an identical vector, doc-b entries must never surface
	// when the filter names doc-a.
	results, err := idx.Query(ctx, []float32{1, 0}, 10, domain.Filter{DocID: "doc-a"})
	require.NoError(t, err)
	require.Len(t, results, 2)
	for _, r := range results {
		assert.Equal(t, "doc-a", r.Chunk.DocID)
	}
}

func TestQueryRequiresDocID(t *testing.T) {
	idx := NewIndex()
	_, err := idx.Query(context.Background(), []float32{1}, 5, domain.Filter{})
	require.Error(t, err)
}

func TestQueryRankingAndTies(t *testing.T) {
	ctx := context.Background()
	idx := NewIndex()
	require.NoError(t, idx.Upsert(ctx, []domain.Entry{
		entryFor("doc-a", 0, []float32{1, 0}), // exact match
		entryFor("doc-a", 1, []float32{0, 1}), // orthogonal
		entryFor("doc-a", 2, []float32{2, 0}), // same direction, ties with ordinal 0
	}))

	results, err := idx.Query(ctx, []float32{1, 0}, 3, domain.Filter{DocID: "doc-a"})
	require.NoError(t, err)
	require.Len(t, results, 3)
	// Cosine ignores magnitude, so ordinals 0 and 2 tie at 1.0 and keep
	// insertion order.
	assert.Equal(t, 0, results[0].Chunk.Ordinal)
	assert.Equal(t, 2, results[1].Chunk.Ordinal)
	assert.Equal(t, 1, results[2].Chunk.Ordinal)
}

func TestUpsertIdempotentPerID(t *testing.T) {
	ctx := context.Background()
	idx := NewIndex()
	e := entryFor("doc-a", 0, []float32{1, 0})
	require.NoError(t, idx.Upsert(ctx, []domain.Entry{e}))

	e.Chunk.Text = "replaced"
	require.NoError(t, idx.Upsert(ctx, []domain.Entry{e}))

	assert.Equal(t, 1, idx.Len())
	results, err := idx.Query(ctx, []float32{1, 0}, 1, domain.Filter{DocID: "doc-a"})
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "replaced", results[0].Chunk.Text)
}

func TestDeleteByDocScopedToFilename(t *testing.T) {
	ctx := context.Background()
	idx := NewIndex()
	a0 := entryFor("doc-a", 0, []float32{1, 0})
	a1 := entryFor("doc-a", 1, []float32{1, 0})
	a1.Chunk.Filename = "other.pdf"
	require.NoError(t, idx.Upsert(ctx, []domain.Entry{a0, a1}))

	require.NoError(t, idx.DeleteByDoc(ctx, domain.Filter{DocID: "doc-a", Filename: "other.pdf"}))
	assert.Equal(t, 1, idx.Len())

	require.NoError(t, idx.DeleteByDoc(ctx, domain.Filter{DocID: "doc-a"}))
	assert.Equal(t, 0, idx.Len())
}

func TestQueryTopKBound(t *testing.T) {
	ctx := context.Background()
	idx := NewIndex()
	for i := 0; i < 10; i++ {
		require.NoError(t, idx.Upsert(ctx, []domain.Entry{entryFor("doc-a", i, []float32{1, float32(i)})}))
	}
	results, err := idx.Query(ctx, []float32{1, 0}, 3, domain.Filter{DocID: "doc-a"})
	require.NoError(t, err)
	assert.Len(t, results, 3)
}

func TestCosineScores(t *testing.T) {
	assert.InDelta(t, 1.0, cosine([]float32{3, 4}, []float32{3, 4}), 1e-6)
	assert.InDelta(t, 0.0, cosine([]float32{1, 0}, []float32{0, 1}), 1e-6)
	assert.InDelta(t, -1.0, cosine([]float32{1, 0}, []float32{-1, 0}), 1e-6)
	assert.Zero(t, cosine([]float32{0, 0}, []float32{1, 0}))
}
