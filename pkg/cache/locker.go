package cache

import (
	"context"
	"errors"
	"time"
)

// ErrLockNotAcquired is returned when a lock is still held by someone else
// after the locker gave up waiting.
var ErrLockNotAcquired = errors.New("lock not acquired")

// Locker hands out short-lived advisory locks keyed by string.
// The returned unlock func is safe to call more than once.
type Locker interface {
	Lock(ctx context.Context, key string, ttl time.Duration) (unlock func(), err error)
}
