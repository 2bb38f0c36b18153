// Package knowledge implements KnowledgeRepository: source/chunk upsert and
// ingestion, and filtered vector+lexical chunk retrieval, against a
// Postgres store with the pgvector extension.
package knowledge

import (
	"context"

	"github.com/newgpp/parksuite-core/internal/domain"
)

// Repository is the interface the workflow and HTTP layer depend on; the
// Postgres-backed implementation below and a fake (for unit tests) both
// satisfy it.
type Repository interface {
	UpsertSource(ctx context.Context, src domain.KnowledgeSource) (domain.KnowledgeSource, error)
	IngestChunks(ctx context.Context, sourceID string, chunks []domain.KnowledgeChunk, replaceExisting bool) (int, error)
	Retrieve(ctx context.Context, filter domain.RetrieveFilter) ([]domain.RetrievedItem, error)
}

// ErrSourceNotFound is returned by IngestChunks when sourceID names no
// existing KnowledgeSource.
type ErrSourceNotFound struct{ SourceID string }

func (e *ErrSourceNotFound) Error() string {
	return "knowledge: source not found: " + e.SourceID
}

// ErrEmbeddingDimMismatch is returned when a chunk's embedding length does
// not match the configured dimension.
type ErrEmbeddingDimMismatch struct {
	Expected, Actual int
}

func (e *ErrEmbeddingDimMismatch) Error() string {
	return "knowledge: embedding dimension mismatch"
}
