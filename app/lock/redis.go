package lock

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// compareAndDelete removes KEYS[1] only while it still carries this owner's token.
var compareAndDelete = redis.NewScript(`
if redis.call("get", KEYS[1]) == ARGV[1] then
	return redis.call("del", KEYS[1])
end
return 0
`)

// RedisLocker holds request locks as Redis keys whose value is a per-acquire
// owner token. Locks expire on their own after the TTL passed to Acquire.
type RedisLocker struct {
	client *redis.Client
	mu     sync.Mutex
	tokens map[string]string
}

func NewRedisLocker(client *redis.Client) *RedisLocker {
	return &RedisLocker{
		client: client,
		tokens: make(map[string]string),
	}
}

// Acquire claims key for ttl. It fails with ErrNotAcquired when another owner
// holds the key and with ErrAlreadyHeld when this locker does.
func (l *RedisLocker) Acquire(ctx context.Context, key string, ttl time.Duration) error {
	if ttl <= 0 {
		return fmt.Errorf("lock %s: ttl must be positive", key)
	}

	l.mu.Lock()
	_, mine := l.tokens[key]
	l.mu.Unlock()
	if mine {
		return ErrAlreadyHeld
	}

	token := uuid.NewString()
	ok, err := l.client.SetNX(ctx, key, token, ttl).Result()
	if err != nil {
		return fmt.Errorf("lock %s: %w", key, err)
	}
	if !ok {
		return ErrNotAcquired
	}

	l.mu.Lock()
	l.tokens[key] = token
	l.mu.Unlock()
	return nil
}

// Release drops key if this locker still owns it. A key that expired while
// held yields ErrLockLost; a key never acquired here is a no-op.
func (l *RedisLocker) Release(ctx context.Context, key string) error {
	l.mu.Lock()
	token, mine := l.tokens[key]
	delete(l.tokens, key)
	l.mu.Unlock()

	if !mine {
		return nil
	}

	deleted, err := compareAndDelete.Run(ctx, l.client, []string{key}, token).Int()
	if err != nil {
		return fmt.Errorf("unlock %s: %w", key, err)
	}
	if deleted == 0 {
		return ErrLockLost
	}
	return nil
}
