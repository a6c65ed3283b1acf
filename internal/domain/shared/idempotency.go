package shared

import (
	"context"
	"time"
)

// IdempotencyStore remembers keys that were already handled
type IdempotencyStore interface {
	// MarkProcessed marks a key as processed with a TTL.
	// Returns true if the key was newly marked, false if it was already processed.
	MarkProcessed(ctx context.Context, key string, ttl time.Duration) (bool, error)

	// IsProcessed checks if a key has already been processed
	IsProcessed(ctx context.Context, key string) (bool, error)

	Close() error
}

// Lock is a non-blocking mutual exclusion primitive that may span processes
type Lock interface {
	// TryAcquire takes the lock for at most ttl and returns the holder's token.
	// Returns false without error when another holder owns it.
	TryAcquire(ctx context.Context, ttl time.Duration) (token string, acquired bool, err error)
	// Release gives the lock back if token still owns it. Releasing with a
	// token whose hold expired or was taken over is a no-op.
	Release(ctx context.Context, token string) error
}
