package shared

import (
	"context"
	"time"
)

// IdempotencyStore records which event deliveries a handler already
// processed, so a redelivered event does not post twice.
type IdempotencyStore interface {
	// MarkProcessed returns true when key was not seen within ttl
	MarkProcessed(ctx context.Context, key string, ttl time.Duration) (bool, error)
	IsProcessed(ctx context.Context, key string) (bool, error)
	Close() error
}

// IdempotencyConfig controls deduplication of event deliveries
type IdempotencyConfig struct {
	TTL     time.Duration
	Enabled bool
}

// DefaultIdempotencyConfig remembers deliveries for a day
func DefaultIdempotencyConfig() IdempotencyConfig {
	return IdempotencyConfig{TTL: 24 * time.Hour, Enabled: true}
}
