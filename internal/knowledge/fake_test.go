package knowledge

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/newgpp/parksuite-core/internal/domain"
)

// P7: retrieval with a query embedding orders results by non-decreasing
// cosine distance.
func TestFakeRepositoryVectorRetrieveOrdersByDistance(t *testing.T) {
	repo := NewFakeRepository()
	ctx := context.Background()

	_, err := repo.UpsertSource(ctx, domain.KnowledgeSource{SourceID: "s1", DocType: "rule", SourceType: "policy", Title: "t", IsActive: true})
	require.NoError(t, err)

	_, err = repo.IngestChunks(ctx, "s1", []domain.KnowledgeChunk{
		{ChunkIndex: 0, ChunkText: "near", Embedding: []float32{1, 0, 0}},
		{ChunkIndex: 1, ChunkText: "far", Embedding: []float32{0, 1, 0}},
		{ChunkIndex: 2, ChunkText: "middle", Embedding: []float32{0.7, 0.7, 0}},
	}, false)
	require.NoError(t, err)

	items, err := repo.Retrieve(ctx, domain.RetrieveFilter{
		QueryEmbedding: []float32{1, 0, 0},
		TopK:           10,
	})
	require.NoError(t, err)
	require.Len(t, items, 3)

	for i := 1; i < len(items); i++ {
		require.LessOrEqual(t, *items[i-1].Score, *items[i].Score)
	}
	require.Equal(t, "near", items[0].Content)
}
