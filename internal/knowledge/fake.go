package knowledge

import (
	"context"
	"math"
	"sort"

	"github.com/newgpp/parksuite-core/internal/domain"
)

// FakeRepository is an in-memory Repository used by tests that exercise
// the workflow/resolver without a real Postgres instance.
type FakeRepository struct {
	sources map[string]domain.KnowledgeSource
	chunks  map[string][]domain.KnowledgeChunk // keyed by source_id
	nextID  int64
}

// NewFakeRepository returns an empty in-memory repository.
func NewFakeRepository() *FakeRepository {
	return &FakeRepository{
		sources: make(map[string]domain.KnowledgeSource),
		chunks:  make(map[string][]domain.KnowledgeChunk),
	}
}

func (f *FakeRepository) UpsertSource(_ context.Context, src domain.KnowledgeSource) (domain.KnowledgeSource, error) {
	f.sources[src.SourceID] = src
	return src, nil
}

func (f *FakeRepository) IngestChunks(_ context.Context, sourceID string, chunks []domain.KnowledgeChunk, replaceExisting bool) (int, error) {
	if _, ok := f.sources[sourceID]; !ok {
		return 0, &ErrSourceNotFound{SourceID: sourceID}
	}
	if replaceExisting {
		f.chunks[sourceID] = nil
	}
	for _, c := range chunks {
		f.nextID++
		c.ID = f.nextID
		f.chunks[sourceID] = append(f.chunks[sourceID], c)
	}
	return len(chunks), nil
}

func cosineDistance(a, b []float32) float64 {
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 1
	}
	similarity := dot / (math.Sqrt(normA) * math.Sqrt(normB))
	return 1 - similarity
}

func (f *FakeRepository) Retrieve(_ context.Context, filter domain.RetrieveFilter) ([]domain.RetrievedItem, error) {
	topK := filter.TopK
	if topK <= 0 {
		topK = 10
	}

	var candidates []candidateRow
	for sourceID, src := range f.sources {
		if !filter.IncludeInactive && !src.IsActive {
			continue
		}
		if filter.DocType != nil && src.DocType != *filter.DocType {
			continue
		}
		if filter.SourceType != nil && src.SourceType != *filter.SourceType {
			continue
		}
		if filter.CityCode != nil && (src.CityCode == nil || *src.CityCode != *filter.CityCode) {
			continue
		}
		if filter.LotCode != nil {
			hit := false
			for _, lc := range src.LotCodes {
				if lc == *filter.LotCode {
					hit = true
					break
				}
			}
			if !hit {
				continue
			}
		}
		if len(filter.SourceIDs) > 0 {
			hit := false
			for _, id := range filter.SourceIDs {
				if id == sourceID {
					hit = true
					break
				}
			}
			if !hit {
				continue
			}
		}
		if filter.AtTime != nil {
			if src.EffectiveFrom != nil && filter.AtTime.Before(*src.EffectiveFrom) {
				continue
			}
			if src.EffectiveTo != nil && !filter.AtTime.Before(*src.EffectiveTo) {
				continue
			}
		}

		for _, c := range f.chunks[sourceID] {
			candidates = append(candidates, candidateRow{
				item: domain.RetrievedItem{
					ChunkID:    c.ID,
					SourceID:   sourceID,
					DocType:    src.DocType,
					SourceType: src.SourceType,
					Title:      src.Title,
					Content:    c.ChunkText,
					ScenarioID: c.ScenarioID,
					Metadata:   c.Metadata,
				},
				chunkIndex: c.ChunkIndex,
				embedding:  c.Embedding,
			})
		}
	}

	if len(filter.QueryEmbedding) > 0 {
		sort.SliceStable(candidates, func(i, j int) bool {
			di := cosineDistance(filter.QueryEmbedding, candidates[i].embedding)
			dj := cosineDistance(filter.QueryEmbedding, candidates[j].embedding)
			if di != dj {
				return di < dj
			}
			if candidates[i].item.SourceID != candidates[j].item.SourceID {
				return candidates[i].item.SourceID < candidates[j].item.SourceID
			}
			if candidates[i].chunkIndex != candidates[j].chunkIndex {
				return candidates[i].chunkIndex < candidates[j].chunkIndex
			}
			return candidates[i].item.ChunkID < candidates[j].item.ChunkID
		})
		if len(candidates) > topK {
			candidates = candidates[:topK]
		}
		out := make([]domain.RetrievedItem, 0, len(candidates))
		for _, c := range candidates {
			d := cosineDistance(filter.QueryEmbedding, c.embedding)
			item := c.item
			item.Score = &d
			out = append(out, item)
		}
		return out, nil
	}

	if len(candidates) > 10*topK && 10*topK > 100 {
		candidates = candidates[:10*topK]
	} else if len(candidates) > 100 && 10*topK < 100 {
		candidates = candidates[:100]
	}
	return rankLexical(candidates, filter.QueryText, topK), nil
}
