package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/dgraph-io/ristretto/v2"
)

// RistrettoCache is the in-process hot cache fronting knowledge retrieval
// and business-API responses, adapted from the teacher's SimpleCache but
// backed directly by ristretto instead of a data.Connector, since this
// service has no blockchain-RPC-shaped connector to wrap.
type RistrettoCache struct {
	c *ristretto.Cache[string, []byte]
}

// NewRistrettoCache builds a cache with 1e6 frequency counters, a 64MiB
// total cost budget and 64 buffer items.
func NewRistrettoCache() (*RistrettoCache, error) {
	c, err := ristretto.NewCache(&ristretto.Config[string, []byte]{
		NumCounters: 1e6,
		MaxCost:     1 << 26, // 64MiB
		BufferItems: 64,
	})
	if err != nil {
		return nil, fmt.Errorf("cache: new ristretto cache: %w", err)
	}
	return &RistrettoCache{c: c}, nil
}

func (r *RistrettoCache) Get(_ context.Context, key string) ([]byte, bool, error) {
	v, ok := r.c.Get(key)
	if !ok {
		return nil, false, nil
	}
	return v, true, nil
}

func (r *RistrettoCache) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	r.c.SetWithTTL(key, value, int64(len(value)), ttl)
	r.c.Wait()
	return nil
}

func (r *RistrettoCache) GetJSON(ctx context.Context, key string, out interface{}) (bool, error) {
	raw, ok, err := r.Get(ctx, key)
	if err != nil || !ok {
		return ok, err
	}
	if err := unmarshalJSON(raw, out); err != nil {
		return false, fmt.Errorf("cache: decode %s: %w", key, err)
	}
	return true, nil
}

func (r *RistrettoCache) SetJSON(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	raw, err := marshalJSON(value)
	if err != nil {
		return fmt.Errorf("cache: encode %s: %w", key, err)
	}
	return r.Set(ctx, key, raw, ttl)
}

func (r *RistrettoCache) Delete(_ context.Context, key string) error {
	r.c.Del(key)
	return nil
}

func (r *RistrettoCache) Has(ctx context.Context, key string) (bool, error) {
	_, ok, err := r.Get(ctx, key)
	return ok, err
}

// Close releases ristretto's background goroutines.
func (r *RistrettoCache) Close() {
	r.c.Close()
}
