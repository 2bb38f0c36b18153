package knowledge_test

import (
	"context"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/newgpp/parksuite-core/internal/domain"
	"github.com/newgpp/parksuite-core/internal/knowledge"
)

const embeddingDim = 1536

// embeddingWithOneAt returns a unit vector with a 1 at index i and 0s
// elsewhere, so cosine distance ordering between fixture rows is
// deterministic without needing a real embedding model in the test.
func embeddingWithOneAt(i int) []float32 {
	vec := make([]float32, embeddingDim)
	vec[i] = 1
	return vec
}

func startPostgres(t *testing.T) string {
	t.Helper()
	ctx := context.Background()

	_, thisFile, _, _ := runtime.Caller(0)
	initScript := filepath.Join(filepath.Dir(thisFile), "..", "..", "migrations", "0001_init.sql")

	container, err := postgres.Run(ctx,
		"pgvector/pgvector:pg16",
		postgres.WithDatabase("parksuite_rag_test"),
		postgres.WithUsername("test"),
		postgres.WithPassword("test"),
		postgres.WithInitScripts(initScript),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second)),
	)
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = container.Terminate(context.Background())
	})

	connStr, err := container.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)
	return connStr
}

func TestPGRepositoryUpsertIngestAndRetrieveVector(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping testcontainers-backed test in -short mode")
	}

	ctx := context.Background()
	connStr := startPostgres(t)

	repo, err := knowledge.NewPGRepository(ctx, connStr, embeddingDim)
	require.NoError(t, err)
	t.Cleanup(repo.Close)

	cityCode := "SH"
	src, err := repo.UpsertSource(ctx, domain.KnowledgeSource{
		SourceID:   "RULE-SH-001",
		DocType:    "rule_explain",
		SourceType: "manual",
		Title:      "上海停车收费规则",
		CityCode:   &cityCode,
		LotCodes:   []string{"LOT-1"},
		IsActive:   true,
	})
	require.NoError(t, err)
	require.Equal(t, "RULE-SH-001", src.SourceID)

	_, err = repo.IngestChunks(ctx, src.SourceID, []domain.KnowledgeChunk{
		{ChunkIndex: 0, ChunkText: "第一段：工作日白天收费标准", Embedding: embeddingWithOneAt(0)},
		{ChunkIndex: 1, ChunkText: "第二段：夜间与节假日收费标准", Embedding: embeddingWithOneAt(1)},
	}, false)
	require.NoError(t, err)

	items, err := repo.Retrieve(ctx, domain.RetrieveFilter{
		QueryEmbedding: embeddingWithOneAt(0),
		TopK:           1,
	})
	require.NoError(t, err)
	require.Len(t, items, 1)
	require.Equal(t, "第一段：工作日白天收费标准", items[0].Content)
	require.NotNil(t, items[0].Score)

	// Re-ingesting with replaceExisting drops the old chunks.
	_, err = repo.IngestChunks(ctx, src.SourceID, []domain.KnowledgeChunk{
		{ChunkIndex: 0, ChunkText: "更新后的收费标准", Embedding: embeddingWithOneAt(2)},
	}, true)
	require.NoError(t, err)

	items, err = repo.Retrieve(ctx, domain.RetrieveFilter{
		QueryEmbedding: embeddingWithOneAt(2),
		TopK:           10,
	})
	require.NoError(t, err)
	require.Len(t, items, 1)
	require.Equal(t, "更新后的收费标准", items[0].Content)
}

func TestPGRepositoryIngestChunksRejectsUnknownSource(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping testcontainers-backed test in -short mode")
	}

	ctx := context.Background()
	connStr := startPostgres(t)

	repo, err := knowledge.NewPGRepository(ctx, connStr, embeddingDim)
	require.NoError(t, err)
	t.Cleanup(repo.Close)

	_, err = repo.IngestChunks(ctx, "does-not-exist", []domain.KnowledgeChunk{
		{ChunkIndex: 0, ChunkText: "x", Embedding: embeddingWithOneAt(0)},
	}, false)
	require.Error(t, err)
	var notFound *knowledge.ErrSourceNotFound
	require.ErrorAs(t, err, &notFound)
}
