package cache

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/charity/backend/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// DefaultSweepLockKey is the Redis key guarding the drift-repair sweep
const DefaultSweepLockKey = "ledger:lock:sweep"

// InMemorySweepLock serializes sweeps within one process
type InMemorySweepLock struct {
	mu        sync.Mutex
	token     string
	heldUntil time.Time
	now       func() time.Time
}

// NewInMemorySweepLock creates an unheld lock
func NewInMemorySweepLock() *InMemorySweepLock {
	return &InMemorySweepLock{now: time.Now}
}

// TryAcquire takes the lock unless a live holder exists. An expired hold is taken over.
func (l *InMemorySweepLock) TryAcquire(ctx context.Context, ttl time.Duration) (string, bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	if l.token != "" && now.Before(l.heldUntil) {
		return "", false, nil
	}
	l.token = uuid.NewString()
	l.heldUntil = now.Add(ttl)
	return l.token, true, nil
}

// Release frees the lock if token is the current holder's
func (l *InMemorySweepLock) Release(ctx context.Context, token string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if token == "" || token != l.token {
		return nil
	}
	l.token = ""
	l.heldUntil = time.Time{}
	return nil
}

// releaseScript deletes the key only if this holder still owns it
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// RedisSweepLock is a single-key Redis lease shared by every instance.
// Each acquisition writes a fresh token and Release only deletes the key while
// it still carries that token, so a holder whose lease expired cannot free a
// successor's lock.
type RedisSweepLock struct {
	client redis.UniversalClient
	key    string
}

// NewRedisSweepLock creates a lock on key, defaulting to DefaultSweepLockKey
func NewRedisSweepLock(client redis.UniversalClient, key string) *RedisSweepLock {
	if key == "" {
		key = DefaultSweepLockKey
	}
	return &RedisSweepLock{client: client, key: key}
}

// TryAcquire attempts SET key token NX PX ttl
func (l *RedisSweepLock) TryAcquire(ctx context.Context, ttl time.Duration) (string, bool, error) {
	token := uuid.NewString()
	ok, err := l.client.SetNX(ctx, l.key, token, ttl).Result()
	if err != nil {
		return "", false, fmt.Errorf("failed to acquire sweep lock: %w", err)
	}
	if !ok {
		return "", false, nil
	}
	return token, true, nil
}

// Release deletes the key if it still carries token
func (l *RedisSweepLock) Release(ctx context.Context, token string) error {
	if token == "" {
		return nil
	}
	if err := releaseScript.Run(ctx, l.client, []string{l.key}, token).Err(); err != nil {
		return fmt.Errorf("failed to release sweep lock: %w", err)
	}
	return nil
}

var (
	_ shared.Lock = (*InMemorySweepLock)(nil)
	_ shared.Lock = (*RedisSweepLock)(nil)
)
