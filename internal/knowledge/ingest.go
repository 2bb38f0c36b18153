package knowledge

import (
	"context"
	"strings"

	"github.com/newgpp/parksuite-core/internal/domain"
)

// Embedder turns chunk text into the embedding space a Repository's vector
// branch expects. The real implementation calls an embeddings endpoint;
// tests and the lexical-only ingest path use a nil Embedder.
type Embedder func(ctx context.Context, text string) ([]float32, error)

// SplitText breaks text into overlapping fixed-size runs over its
// whitespace-collapsed form. overlap>=chunkSize degrades to no overlap.
// chunkSize<=0 returns the whole cleaned text as a single chunk.
func SplitText(text string, chunkSize, overlap int) []string {
	cleaned := strings.Join(strings.Fields(text), " ")
	if cleaned == "" {
		return nil
	}
	if chunkSize <= 0 {
		return []string{cleaned}
	}
	if overlap >= chunkSize {
		overlap = 0
	}

	runes := []rune(cleaned)
	step := chunkSize - overlap
	var chunks []string
	for start := 0; start < len(runes); start += step {
		end := start + chunkSize
		if end > len(runes) {
			end = len(runes)
		}
		chunks = append(chunks, string(runes[start:end]))
		if end == len(runes) {
			break
		}
	}
	return chunks
}

// Ingestor turns a raw source document into KnowledgeChunk rows and stores
// them against an already-registered KnowledgeSource, chunking and
// embedding so the caller never has to pre-split or pre-embed the text.
type Ingestor struct {
	repo      Repository
	embed     Embedder
	chunkSize int
	overlap   int
}

// NewIngestor builds an Ingestor. embed may be nil, in which case chunks
// are handed to the repository with no embedding: FakeRepository stores
// them for its lexical retrieval branch, while PGRepository rejects them
// with ErrEmbeddingDimMismatch.
func NewIngestor(repo Repository, embed Embedder, chunkSize, overlap int) *Ingestor {
	if chunkSize <= 0 {
		chunkSize = 400
	}
	if overlap < 0 {
		overlap = 80
	}
	return &Ingestor{repo: repo, embed: embed, chunkSize: chunkSize, overlap: overlap}
}

// IngestText splits text, embeds each piece (if an Embedder is configured),
// and stores the resulting chunks against sourceID, replacing any existing
// chunks for that source when replaceExisting is set.
func (g *Ingestor) IngestText(ctx context.Context, sourceID string, text string, scenarioID *string, replaceExisting bool) (int, error) {
	pieces := SplitText(text, g.chunkSize, g.overlap)
	chunks := make([]domain.KnowledgeChunk, 0, len(pieces))
	for i, piece := range pieces {
		var embedding []float32
		if g.embed != nil {
			vec, err := g.embed(ctx, piece)
			if err != nil {
				return 0, err
			}
			embedding = vec
		}
		chunks = append(chunks, domain.KnowledgeChunk{
			ScenarioID: scenarioID,
			ChunkIndex: i,
			ChunkText:  piece,
			Embedding:  embedding,
		})
	}
	return g.repo.IngestChunks(ctx, sourceID, chunks, replaceExisting)
}
