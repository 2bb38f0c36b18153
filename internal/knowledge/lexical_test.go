package knowledge

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/newgpp/parksuite-core/internal/domain"
)

func TestRankLexicalOrdersByScoreThenTieBreak(t *testing.T) {
	candidates := []candidateRow{
		{item: domain.RetrievedItem{ChunkID: 3, SourceID: "b", Title: "停车收费规则", Content: "无关内容"}, chunkIndex: 0},
		{item: domain.RetrievedItem{ChunkID: 1, SourceID: "a", Title: "收费标准", Content: "停车场收费说明"}, chunkIndex: 0},
		{item: domain.RetrievedItem{ChunkID: 2, SourceID: "a", Title: "收费标准", Content: "停车场收费说明"}, chunkIndex: 1},
	}

	out := rankLexical(candidates, "停车场收费", 10)
	require.Len(t, out, 3)
	// a/chunk_index=0 and a/chunk_index=1 share equal scores (identical
	// title+content); tie-break orders by chunk_index.
	require.Equal(t, int64(1), out[0].ChunkID)
	require.Equal(t, int64(2), out[1].ChunkID)
}

func TestRankLexicalRespectsTopK(t *testing.T) {
	candidates := []candidateRow{
		{item: domain.RetrievedItem{ChunkID: 1, SourceID: "a", Title: "x", Content: "停车"}, chunkIndex: 0},
		{item: domain.RetrievedItem{ChunkID: 2, SourceID: "a", Title: "x", Content: "停车"}, chunkIndex: 1},
	}
	out := rankLexical(candidates, "停车", 1)
	require.Len(t, out, 1)
}
