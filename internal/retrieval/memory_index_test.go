package retrieval

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/brunoamorim39/greasemonkey-ai/internal/model"
	appErr "github.com/brunoamorim39/greasemonkey-ai/internal/pkg/errors"
)

func chunk(id, collection, docID string, vec []float32) *model.DocumentChunk {
	return &model.DocumentChunk{
		ID:         id,
		Collection: collection,
		Content:    id,
		Embedding:  vec,
		Metadata:   model.ChunkMetadata{DocumentID: docID},
	}
}

func TestMemoryIndexQuery(t *testing.T) {
	idx := NewMemoryIndex()
	ctx := context.Background()
	require.NoError(t, idx.Upsert(ctx, []*model.DocumentChunk{
		chunk("same", "c", "d1", []float32{2, 0}),
		chunk("orthogonal", "c", "d1", []float32{0, 1}),
		chunk("opposite", "c", "d2", []float32{-1, 0}),
	}))

	hits, err := idx.Query(ctx, "c", []float32{1, 0}, 5)
	require.NoError(t, err)
	require.Len(t, hits, 3)
	require.Equal(t, "same", hits[0].Chunk.ID)
	require.InDelta(t, 1.0, hits[0].Score, 1e-6)
	require.InDelta(t, 0.0, hits[1].Score, 1e-6)
	require.Equal(t, 0.0, hits[2].Score)

	hits, err = idx.Query(ctx, "c", []float32{1, 0}, 1)
	require.NoError(t, err)
	require.Len(t, hits, 1)

	_, err = idx.Query(ctx, "missing", []float32{1, 0}, 1)
	require.ErrorIs(t, err, appErr.ErrCollectionNotFound)
}

func TestMemoryIndexUpsertAndDelete(t *testing.T) {
	idx := NewMemoryIndex()
	ctx := context.Background()
	require.NoError(t, idx.Upsert(ctx, []*model.DocumentChunk{chunk("x", "c", "d1", []float32{1, 0})}))
	require.NoError(t, idx.Upsert(ctx, []*model.DocumentChunk{chunk("x", "c", "d1", []float32{0, 1})}))
	hits, err := idx.Query(ctx, "c", []float32{0, 1}, 5)
	require.NoError(t, err)
	require.Len(t, hits, 1)
	require.InDelta(t, 1.0, hits[0].Score, 1e-6)

	require.NoError(t, idx.DeleteDocument(ctx, "c", "d1"))
	hits, err = idx.Query(ctx, "c", []float32{0, 1}, 5)
	require.NoError(t, err)
	require.Empty(t, hits)

	require.Error(t, idx.Upsert(ctx, []*model.DocumentChunk{chunk("y", "", "d", []float32{1})}))
	require.Error(t, idx.Upsert(ctx, []*model.DocumentChunk{chunk("y", "c", "d", nil)}))
}

func TestMemoryIndexWithEngine(t *testing.T) {
	idx := NewMemoryIndex()
	ctx := context.Background()
	require.NoError(t, idx.Upsert(ctx, []*model.DocumentChunk{
		chunk("sys", model.SystemCollection, "d1", []float32{1, 0.1}),
		chunk("mine", model.UserCollection("u1"), "d2", []float32{1, 0.5}),
	}))
	engine := NewEngine(&fixedEmbedder{vec: []float32{1, 0}}, idx)
	results, err := engine.Search(ctx, SearchRequest{Query: "q", UserID: "u1"})
	require.NoError(t, err)
	require.Len(t, results, 2)
	require.Equal(t, "sys", results[0].ChunkID)
	require.Greater(t, results[0].RelevanceScore, results[1].RelevanceScore)
}
