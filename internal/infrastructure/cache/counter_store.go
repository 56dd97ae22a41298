package cache

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/lexledger/backend/internal/domain/ledger"
)

// DefaultCounterKeyPrefix namespaces document sequence keys
const DefaultCounterKeyPrefix = "ledger:seq:"

// RedisCounterStore hands out document sequence values with INCR on
// {prefix}{tenant}:{kind}. Redis must be persistent (AOF) for numbers to
// survive a restart without reuse.
type RedisCounterStore struct {
	client    redis.Cmdable
	keyPrefix string
}

// NewRedisCounterStore creates a counter store on an existing client
func NewRedisCounterStore(client redis.Cmdable, keyPrefix string) *RedisCounterStore {
	if keyPrefix == "" {
		keyPrefix = DefaultCounterKeyPrefix
	}
	return &RedisCounterStore{client: client, keyPrefix: keyPrefix}
}

// Key returns the Redis key holding the (tenant, kind) counter
func (s *RedisCounterStore) Key(tenantID uuid.UUID, kind ledger.CounterKind) string {
	return fmt.Sprintf("%s%s:%s", s.keyPrefix, tenantID, kind)
}

// Increment atomically increments and returns the counter
func (s *RedisCounterStore) Increment(ctx context.Context, tenantID uuid.UUID, kind ledger.CounterKind) (int64, error) {
	n, err := s.client.Incr(ctx, s.Key(tenantID, kind)).Result()
	if err != nil {
		return 0, fmt.Errorf("failed to increment %s counter: %w", kind, err)
	}
	return n, nil
}

type counterKey struct {
	tenantID uuid.UUID
	kind     ledger.CounterKind
}

// InMemoryCounterStore keeps counters in a mutex-guarded map. Values restart
// at 1 with every new store.
type InMemoryCounterStore struct {
	mu     sync.Mutex
	values map[counterKey]int64
}

// NewInMemoryCounterStore creates an empty in-memory counter store
func NewInMemoryCounterStore() *InMemoryCounterStore {
	return &InMemoryCounterStore{values: make(map[counterKey]int64)}
}

// Increment increments and returns the counter
func (s *InMemoryCounterStore) Increment(_ context.Context, tenantID uuid.UUID, kind ledger.CounterKind) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := counterKey{tenantID: tenantID, kind: kind}
	s.values[key]++
	return s.values[key], nil
}

var (
	_ ledger.CounterStore = (*RedisCounterStore)(nil)
	_ ledger.CounterStore = (*InMemoryCounterStore)(nil)
)
