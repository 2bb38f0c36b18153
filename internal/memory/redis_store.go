package memory

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-redsync/redsync/v4"
	"github.com/go-redsync/redsync/v4/redis/goredis/v9"
	"github.com/redis/go-redis/v9"

	"github.com/newgpp/parksuite-core/internal/domain"
)

const keyPrefix = "parksuite:session:"

// RedisStore backs SessionMemoryStore with a shared Redis instance, the
// default for multi-replica deployments. A redsync lock serializes the
// read-modify-write around Put so two concurrent requests for the same
// session_id don't race at the network layer — spec §5 still resolves
// concurrent writes as last-writer-wins, but the write itself is atomic.
type RedisStore struct {
	rdb *redis.Client
	rs  *redsync.Redsync
}

// NewRedisStore wraps an existing *redis.Client.
func NewRedisStore(rdb *redis.Client) *RedisStore {
	pool := goredis.NewPool(rdb)
	return &RedisStore{rdb: rdb, rs: redsync.New(pool)}
}

func sessionKey(sessionID string) string {
	return keyPrefix + sessionID
}

func (s *RedisStore) Get(ctx context.Context, sessionID string) (*domain.SessionState, error) {
	raw, err := s.rdb.Get(ctx, sessionKey(sessionID)).Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("memory: redis get %s: %w", sessionID, err)
	}
	var state domain.SessionState
	if err := json.Unmarshal(raw, &state); err != nil {
		return nil, fmt.Errorf("memory: decode session %s: %w", sessionID, err)
	}
	return &state, nil
}

func (s *RedisStore) Put(ctx context.Context, sessionID string, state domain.SessionState, ttl time.Duration, maxTurns, maxClarifyMessages int) error {
	mutex := s.rs.NewMutex("lock:"+sessionKey(sessionID), redsync.WithExpiry(5*time.Second))
	if err := mutex.LockContext(ctx); err != nil {
		return fmt.Errorf("memory: acquire session lock %s: %w", sessionID, err)
	}
	defer func() { _, _ = mutex.UnlockContext(ctx) }()

	existing, err := s.Get(ctx, sessionID)
	if err != nil {
		return err
	}
	if existing != nil {
		state.Slots = mergeSlots(existing.Slots, state.Slots)
	}
	state = truncateState(state, maxTurns, maxClarifyMessages)

	raw, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("memory: encode session %s: %w", sessionID, err)
	}
	if err := s.rdb.Set(ctx, sessionKey(sessionID), raw, ttl).Err(); err != nil {
		return fmt.Errorf("memory: redis set %s: %w", sessionID, err)
	}
	return nil
}
