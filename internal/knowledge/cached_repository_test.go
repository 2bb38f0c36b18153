package knowledge_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/newgpp/parksuite-core/internal/cache"
	"github.com/newgpp/parksuite-core/internal/domain"
	"github.com/newgpp/parksuite-core/internal/knowledge"
)

type countingRepository struct {
	retrieveCalls int
	upsertCalls   int
	ingestCalls   int
	items         []domain.RetrievedItem
}

func (r *countingRepository) UpsertSource(_ context.Context, src domain.KnowledgeSource) (domain.KnowledgeSource, error) {
	r.upsertCalls++
	return src, nil
}

func (r *countingRepository) IngestChunks(_ context.Context, _ string, chunks []domain.KnowledgeChunk, _ bool) (int, error) {
	r.ingestCalls++
	return len(chunks), nil
}

func (r *countingRepository) Retrieve(_ context.Context, _ domain.RetrieveFilter) ([]domain.RetrievedItem, error) {
	r.retrieveCalls++
	return r.items, nil
}

func newRepoTestCache(t *testing.T) cache.Cache {
	t.Helper()
	c, err := cache.NewRistrettoCache()
	require.NoError(t, err)
	return c
}

func docType(s string) *string { return &s }

func TestCachedRepositoryCachesLexicalRetrieve(t *testing.T) {
	ctx := context.Background()
	inner := &countingRepository{items: []domain.RetrievedItem{{SourceID: "RAG000-1-rule_explain", Content: "hit"}}}
	cached := knowledge.NewCachedRepository(inner, newRepoTestCache(t))

	filter := domain.RetrieveFilter{DocType: docType("rule_explain"), QueryText: "超时怎么算", TopK: 5}

	items, err := cached.Retrieve(ctx, filter)
	require.NoError(t, err)
	require.Len(t, items, 1)

	items2, err := cached.Retrieve(ctx, filter)
	require.NoError(t, err)
	require.Equal(t, items, items2)
	require.Equal(t, 1, inner.retrieveCalls, "identical filter should be served from cache")
}

func TestCachedRepositoryDistinguishesQueryText(t *testing.T) {
	ctx := context.Background()
	inner := &countingRepository{items: []domain.RetrievedItem{{SourceID: "RAG000-1-rule_explain"}}}
	cached := knowledge.NewCachedRepository(inner, newRepoTestCache(t))

	base := domain.RetrieveFilter{DocType: docType("rule_explain"), TopK: 5}
	withA := base
	withA.QueryText = "query A"
	withB := base
	withB.QueryText = "query B"

	_, err := cached.Retrieve(ctx, withA)
	require.NoError(t, err)
	_, err = cached.Retrieve(ctx, withB)
	require.NoError(t, err)
	require.Equal(t, 2, inner.retrieveCalls, "distinct query text must not share a cache entry")
}

func TestCachedRepositoryDistinguishesVectorFromLexical(t *testing.T) {
	ctx := context.Background()
	inner := &countingRepository{items: []domain.RetrievedItem{{SourceID: "RAG000-1-rule_explain"}}}
	cached := knowledge.NewCachedRepository(inner, newRepoTestCache(t))

	lexical := domain.RetrieveFilter{QueryText: "same text", TopK: 5}
	vector := lexical
	vector.QueryEmbedding = []float32{0.1, 0.2, 0.3}

	_, err := cached.Retrieve(ctx, lexical)
	require.NoError(t, err)
	_, err = cached.Retrieve(ctx, vector)
	require.NoError(t, err)
	require.Equal(t, 2, inner.retrieveCalls, "a vector query must not reuse a lexical cache entry")
}

func TestCachedRepositoryPassesUpsertAndIngestThrough(t *testing.T) {
	ctx := context.Background()
	inner := &countingRepository{}
	cached := knowledge.NewCachedRepository(inner, newRepoTestCache(t))

	_, err := cached.UpsertSource(ctx, domain.KnowledgeSource{SourceID: "RAG000-1-rule_explain"})
	require.NoError(t, err)
	_, err = cached.UpsertSource(ctx, domain.KnowledgeSource{SourceID: "RAG000-1-rule_explain"})
	require.NoError(t, err)
	require.Equal(t, 2, inner.upsertCalls, "UpsertSource must never be cached")

	_, err = cached.IngestChunks(ctx, "RAG000-1-rule_explain", []domain.KnowledgeChunk{{ChunkText: "a"}}, false)
	require.NoError(t, err)
	require.Equal(t, 1, inner.ingestCalls)
}

func TestCachedRepositoryNilCacheDisablesCaching(t *testing.T) {
	ctx := context.Background()
	inner := &countingRepository{items: []domain.RetrievedItem{{SourceID: "RAG000-1-rule_explain"}}}
	cached := knowledge.NewCachedRepository(inner, nil)

	filter := domain.RetrieveFilter{QueryText: "x", TopK: 5}
	_, err := cached.Retrieve(ctx, filter)
	require.NoError(t, err)
	_, err = cached.Retrieve(ctx, filter)
	require.NoError(t, err)
	require.Equal(t, 2, inner.retrieveCalls, "nil cache must pass every call through")
}
