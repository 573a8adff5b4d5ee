package shared

import (
	"context"
	"time"
)

// IdempotencyStore remembers request keys that were already handled
type IdempotencyStore interface {
	// MarkProcessed claims key for ttl.
	// Returns true if the key was newly claimed, false if it is still held.
	MarkProcessed(ctx context.Context, key string, ttl time.Duration) (bool, error)

	// Forget releases key so a failed request can be retried with it
	Forget(ctx context.Context, key string) error

	// Close releases resources held by the store
	Close() error
}
