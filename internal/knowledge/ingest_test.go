package knowledge

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/newgpp/parksuite-core/internal/domain"
)

func TestSplitTextOverlapsFixedSizeRuns(t *testing.T) {
	chunks := SplitText("abcdefghij", 4, 2)
	require.Equal(t, []string{"abcd", "cdef", "efgh", "ghij"}, chunks)
}

func TestSplitTextEmptyInputReturnsNil(t *testing.T) {
	require.Nil(t, SplitText("   ", 4, 2))
}

func TestSplitTextNonPositiveChunkSizeReturnsWholeText(t *testing.T) {
	require.Equal(t, []string{"a b c"}, SplitText("a  b   c", 0, 0))
}

func TestIngestorEmbedsAndStoresChunks(t *testing.T) {
	repo := NewFakeRepository()
	ctx := context.Background()
	_, err := repo.UpsertSource(ctx, domain.KnowledgeSource{SourceID: "src-1", DocType: "rule", SourceType: "manual", Title: "t", IsActive: true})
	require.NoError(t, err)

	embedCalls := 0
	embed := func(_ context.Context, _ string) ([]float32, error) {
		embedCalls++
		return []float32{0.1, 0.2}, nil
	}
	ing := NewIngestor(repo, embed, 4, 0)

	n, err := ing.IngestText(ctx, "src-1", "abcdefgh", nil, false)
	require.NoError(t, err)
	require.Equal(t, 2, n)
	require.Equal(t, 2, embedCalls)
}

func TestIngestorWithoutEmbedderStoresUnembeddedChunks(t *testing.T) {
	repo := NewFakeRepository()
	ctx := context.Background()
	_, err := repo.UpsertSource(ctx, domain.KnowledgeSource{SourceID: "src-2", DocType: "rule", SourceType: "manual", Title: "t", IsActive: true})
	require.NoError(t, err)

	ing := NewIngestor(repo, nil, 100, 0)
	n, err := ing.IngestText(ctx, "src-2", "short text", nil, false)
	require.NoError(t, err)
	require.Equal(t, 1, n)
}
