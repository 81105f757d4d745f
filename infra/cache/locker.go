package cache

import (
	"context"
	"time"

	"github.com/amirasaad/giftfund/pkg/cache"
)

const retryInterval = 50 * time.Millisecond

// acquireFunc makes one attempt to take the lock.
type acquireFunc func(ctx context.Context) (bool, error)

// waitFor retries try until it succeeds, wait elapses or ctx is done.
func waitFor(ctx context.Context, wait time.Duration, try acquireFunc) error {
	deadline := time.Now().Add(wait)
	for {
		ok, err := try(ctx)
		if err != nil {
			return err
		}
		if ok {
			return nil
		}
		if !time.Now().Before(deadline) {
			return cache.ErrLockNotAcquired
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(retryInterval):
		}
	}
}
