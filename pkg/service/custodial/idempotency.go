package custodial

import (
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
)

const (
	// Stripe retries a failed delivery for up to three days.
	defaultIdempotencyTTL        = 72 * time.Hour
	defaultIdempotencyMaxEntries = 10000
)

// IdempotencyTracker runs work at most once per key. Concurrent callers with
// the same key share one execution; a failed execution is not remembered so
// the next delivery retries it. Completed keys are forgotten after ttl, and
// the oldest are dropped first once maxEntries is reached.
type IdempotencyTracker struct {
	ttl        time.Duration
	maxEntries int
	now        func() time.Time

	mu        sync.Mutex
	processed map[string]time.Time
	order     []trackedKey
	inflight  singleflight.Group
}

type trackedKey struct {
	key string
	at  time.Time
}

// NewIdempotencyTracker falls back to the defaults for non-positive values.
func NewIdempotencyTracker(ttl time.Duration, maxEntries int) *IdempotencyTracker {
	if ttl <= 0 {
		ttl = defaultIdempotencyTTL
	}
	if maxEntries <= 0 {
		maxEntries = defaultIdempotencyMaxEntries
	}
	return &IdempotencyTracker{
		ttl:        ttl,
		maxEntries: maxEntries,
		now:        time.Now,
		processed:  make(map[string]time.Time),
	}
}

// Seen reports whether key completed successfully within the last ttl.
func (t *IdempotencyTracker) Seen(key string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	at, ok := t.processed[key]
	return ok && t.now().Sub(at) < t.ttl
}

// Len is the number of remembered keys, expired ones included until the
// next eviction.
func (t *IdempotencyTracker) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.processed)
}

// Do runs fn unless key already completed. skipped is true when fn was not
// run because of an earlier success.
func (t *IdempotencyTracker) Do(key string, fn func() error) (skipped bool, err error) {
	if key == "" {
		return false, fn()
	}
	if t.Seen(key) {
		return true, nil
	}
	v, err, _ := t.inflight.Do(key, func() (any, error) {
		if t.Seen(key) {
			return true, nil
		}
		if err := fn(); err != nil {
			return false, err
		}
		t.remember(key)
		return false, nil
	})
	if err != nil {
		return false, err
	}
	return v.(bool), nil
}

// remember records key. Keys share one ttl, so insertion order is also
// expiry order and eviction only trims the front of the queue. A queue entry
// whose key was remembered again later no longer owns the map slot.
func (t *IdempotencyTracker) remember(key string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	now := t.now()

	for len(t.order) > 0 {
		front := t.order[0]
		if now.Sub(front.at) < t.ttl && len(t.processed) < t.maxEntries {
			break
		}
		if at, ok := t.processed[front.key]; ok && at.Equal(front.at) {
			delete(t.processed, front.key)
		}
		t.order = t.order[1:]
	}

	t.processed[key] = now
	t.order = append(t.order, trackedKey{key: key, at: now})
}
