// Package cache adapts the teacher's Cache/SimpleCache split
// (internal/tools/cache.go in txplain) to this domain: a small
// get/set/has/delete interface in front of either an in-process
// ristretto cache or a shared Redis instance, with TTL and key-pattern
// constants for this service's cache families instead of the teacher's
// ABI/price/ENS ones.
package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"golang.org/x/crypto/blake2b"
)

// Per-family TTLs, named the way the teacher names its *TTLDuration
// constants.
const (
	RetrievalLexicalTTL = 5 * time.Minute
	RetrievalVectorTTL  = 5 * time.Minute
	BizOrderTTL         = 30 * time.Second
	BizArrearsTTL       = 15 * time.Second
	BizRulesTTL         = 5 * time.Minute
	LLMPromptDedupeTTL  = 10 * time.Minute
)

// Key-pattern constants, named the way the teacher names its *KeyPattern
// sprintf formats.
const (
	RetrievalKeyPattern = "retrieve:%s:%s" // filter-hash, query-hash
	BizOrderKeyPattern  = "biz-order:%s"
	BizArrearsKeyPattern = "biz-arrears:%s:%s"
	BizRulesKeyPattern  = "biz-rules:%s:%s"
)

// Cache is the unified interface the knowledge and biz packages depend on;
// a ristretto-backed and a Redis-backed implementation both satisfy it,
// mirroring the teacher's Cache interface.
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	GetJSON(ctx context.Context, key string, out interface{}) (bool, error)
	SetJSON(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
	Has(ctx context.Context, key string) (bool, error)
}

// HashKey derives a stable, fixed-width cache key component from free-form
// text (a retrieval query, an LLM prompt) using blake2b, so cache keys
// never embed raw user text.
func HashKey(parts ...string) (string, error) {
	h, err := blake2b.New256(nil)
	if err != nil {
		return "", fmt.Errorf("cache: init blake2b: %w", err)
	}
	for _, p := range parts {
		if _, err := h.Write([]byte(p)); err != nil {
			return "", fmt.Errorf("cache: hash: %w", err)
		}
		if _, err := h.Write([]byte{0}); err != nil {
			return "", fmt.Errorf("cache: hash: %w", err)
		}
	}
	return fmt.Sprintf("%x", h.Sum(nil))[:32], nil
}

func marshalJSON(v interface{}) ([]byte, error) {
	return json.Marshal(v)
}

func unmarshalJSON(b []byte, out interface{}) error {
	return json.Unmarshal(b, out)
}
