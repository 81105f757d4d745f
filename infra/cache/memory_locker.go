package cache

import (
	"context"
	"sync"
	"time"

	"github.com/amirasaad/giftfund/pkg/cache"
)

// MemoryLocker is a process-local Locker. Locks expire after their ttl so a
// crashed holder cannot wedge a key.
type MemoryLocker struct {
	mu    sync.Mutex
	held  map[string]memoryLock
	wait  time.Duration
	seq   uint64
	nowFn func() time.Time
}

type memoryLock struct {
	token     uint64
	expiresAt time.Time
}

// NewMemoryLocker creates a MemoryLocker that waits up to wait for a busy key.
func NewMemoryLocker(wait time.Duration) *MemoryLocker {
	return &MemoryLocker{
		held:  make(map[string]memoryLock),
		wait:  wait,
		nowFn: time.Now,
	}
}

func (l *MemoryLocker) Lock(ctx context.Context, key string, ttl time.Duration) (func(), error) {
	var token uint64
	err := waitFor(ctx, l.wait, func(context.Context) (bool, error) {
		l.mu.Lock()
		defer l.mu.Unlock()
		now := l.nowFn()
		if cur, ok := l.held[key]; ok && now.Before(cur.expiresAt) {
			return false, nil
		}
		l.seq++
		token = l.seq
		l.held[key] = memoryLock{token: token, expiresAt: now.Add(ttl)}
		return true, nil
	})
	if err != nil {
		return nil, err
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			l.mu.Lock()
			defer l.mu.Unlock()
			if cur, ok := l.held[key]; ok && cur.token == token {
				delete(l.held, key)
			}
		})
	}, nil
}

var _ cache.Locker = (*MemoryLocker)(nil)
