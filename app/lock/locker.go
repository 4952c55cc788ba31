package lock

import (
	"context"
	"errors"
	"time"
)

var (
	ErrAlreadyHeld = errors.New("lock already held by this process")
	ErrNotAcquired = errors.New("lock not acquired")
	// ErrLockLost is returned by Release when the lock expired, or was taken
	// over by another process, before it was released.
	ErrLockLost = errors.New("lock expired before release")
)

const requestKeyPrefix = "bills-due:request:"

// Locker guards a due-bill request against concurrent processing by another consumer.
type Locker interface {
	// Acquire attempts to lock a key for at most ttl.
	Acquire(ctx context.Context, key string, ttl time.Duration) error
	// Release frees the lock for the given key.
	Release(ctx context.Context, key string) error
}

// RequestKey returns the lock key for a due-bill request.
func RequestKey(requestID string) string {
	return requestKeyPrefix + requestID
}
