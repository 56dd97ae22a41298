package cache

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/lexledger/backend/internal/domain/ledger"
	"github.com/lexledger/backend/internal/domain/shared"
	"github.com/lexledger/backend/internal/infrastructure/config"
)

// StoreFactory builds the Redis-backed or in-memory stores the ledger uses,
// sharing a single Redis client between them
type StoreFactory struct {
	cfg                   config.RedisConfig
	logger                *zap.Logger
	allowInMemoryFallback bool
	sweepInterval         time.Duration

	mu     sync.Mutex
	client *redis.Client
}

// StoreFactoryOption configures a StoreFactory
type StoreFactoryOption func(*StoreFactory)

// WithLogger sets the logger for the factory
func WithLogger(logger *zap.Logger) StoreFactoryOption {
	return func(f *StoreFactory) {
		f.logger = logger
	}
}

// WithInMemoryFallback controls whether the idempotency store falls back to
// memory when Redis is unreachable. Defaults to true.
func WithInMemoryFallback(allow bool) StoreFactoryOption {
	return func(f *StoreFactory) {
		f.allowInMemoryFallback = allow
	}
}

// NewStoreFactory creates a new factory
func NewStoreFactory(cfg config.RedisConfig, opts ...StoreFactoryOption) *StoreFactory {
	f := &StoreFactory{
		cfg:                   cfg,
		logger:                zap.NewNop(),
		allowInMemoryFallback: true,
		sweepInterval:         5 * time.Minute,
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Client returns the shared Redis client, connecting on first use
func (f *StoreFactory) Client(ctx context.Context) (*redis.Client, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.client != nil {
		return f.client, nil
	}
	if !f.cfg.Enabled {
		return nil, fmt.Errorf("redis is not enabled")
	}

	client := redis.NewClient(&redis.Options{
		Addr:     f.cfg.Addr(),
		Password: f.cfg.Password,
		DB:       f.cfg.DB,
	})
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to Redis at %s: %w", f.cfg.Addr(), err)
	}
	f.client = client
	return client, nil
}

// IdempotencyStore returns a Redis store when Redis is enabled and reachable,
// otherwise an in-memory store when fallback is allowed
func (f *StoreFactory) IdempotencyStore(ctx context.Context) (shared.IdempotencyStore, error) {
	if !f.cfg.Enabled {
		f.logger.Debug("Redis disabled, using in-memory idempotency store")
		return NewInMemoryIdempotencyStore(f.sweepInterval), nil
	}

	client, err := f.Client(ctx)
	if err == nil {
		f.logger.Info("Using Redis idempotency store", zap.String("addr", f.cfg.Addr()))
		return NewRedisIdempotencyStore(client, DefaultIdempotencyKeyPrefix), nil
	}
	if !f.allowInMemoryFallback {
		return nil, fmt.Errorf("redis required for idempotency but unavailable: %w", err)
	}
	f.logger.Warn("Redis unavailable, falling back to in-memory idempotency store",
		zap.Error(err))
	return NewInMemoryIdempotencyStore(f.sweepInterval), nil
}

// CounterStore returns the Redis sequence store. There is no fallback: an
// in-memory counter would reissue numbers after a restart.
func (f *StoreFactory) CounterStore(ctx context.Context) (ledger.CounterStore, error) {
	client, err := f.Client(ctx)
	if err != nil {
		return nil, fmt.Errorf("redis sequence backend unavailable: %w", err)
	}
	return NewRedisCounterStore(client, DefaultCounterKeyPrefix), nil
}

// Close closes the shared Redis client if one was opened
func (f *StoreFactory) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.client == nil {
		return nil
	}
	err := f.client.Close()
	f.client = nil
	return err
}
