package knowledge

import (
	"context"
	"encoding/binary"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/newgpp/parksuite-core/internal/cache"
	"github.com/newgpp/parksuite-core/internal/domain"
)

// CachedRepository decorates a Repository with a short-TTL read-through
// cache over Retrieve, the call a hybrid-answer turn is most likely to
// repeat verbatim (a clarify round re-running the same rule_explain
// lookup, two turns in the same session asking about the same lot).
// UpsertSource/IngestChunks pass straight through; a stale Retrieve hit is
// bounded by the TTL rather than actively invalidated, since ingestion is
// an infrequent admin operation relative to read traffic.
type CachedRepository struct {
	inner Repository
	c     cache.Cache
}

// NewCachedRepository wraps inner with c. A nil c disables caching.
func NewCachedRepository(inner Repository, c cache.Cache) *CachedRepository {
	return &CachedRepository{inner: inner, c: c}
}

var _ Repository = (*CachedRepository)(nil)

func (r *CachedRepository) UpsertSource(ctx context.Context, src domain.KnowledgeSource) (domain.KnowledgeSource, error) {
	return r.inner.UpsertSource(ctx, src)
}

func (r *CachedRepository) IngestChunks(ctx context.Context, sourceID string, chunks []domain.KnowledgeChunk, replaceExisting bool) (int, error) {
	return r.inner.IngestChunks(ctx, sourceID, chunks, replaceExisting)
}

func (r *CachedRepository) Retrieve(ctx context.Context, filter domain.RetrieveFilter) ([]domain.RetrievedItem, error) {
	if r.c == nil {
		return r.inner.Retrieve(ctx, filter)
	}

	key, ttl, err := retrievalCacheKey(filter)
	if err != nil {
		return r.inner.Retrieve(ctx, filter)
	}

	var cached []domain.RetrievedItem
	if hit, _ := r.c.GetJSON(ctx, key, &cached); hit {
		return cached, nil
	}

	items, err := r.inner.Retrieve(ctx, filter)
	if err != nil {
		return nil, err
	}
	_ = r.c.SetJSON(ctx, key, items, ttl)
	return items, nil
}

func retrievalCacheKey(filter domain.RetrieveFilter) (string, time.Duration, error) {
	ttl := cache.RetrievalLexicalTTL
	embeddingKey := ""
	if len(filter.QueryEmbedding) > 0 {
		ttl = cache.RetrievalVectorTTL
		buf := make([]byte, 4*len(filter.QueryEmbedding))
		for i, v := range filter.QueryEmbedding {
			binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(v))
		}
		embeddingKey = string(buf)
	}

	atTime := ""
	if filter.AtTime != nil {
		atTime = filter.AtTime.UTC().Format(time.RFC3339Nano)
	}

	filterHash, err := cache.HashKey(
		derefOrEmpty(filter.DocType), derefOrEmpty(filter.SourceType),
		derefOrEmpty(filter.CityCode), derefOrEmpty(filter.LotCode),
		strings.Join(filter.SourceIDs, ","), strconv.FormatBool(filter.IncludeInactive),
		strconv.Itoa(filter.TopK), atTime,
	)
	if err != nil {
		return "", 0, err
	}

	queryHash, err := cache.HashKey(filter.QueryText, embeddingKey)
	if err != nil {
		return "", 0, err
	}

	return fmt.Sprintf(cache.RetrievalKeyPattern, filterHash, queryHash), ttl, nil
}

func derefOrEmpty(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
