package cache

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/amirasaad/giftfund/pkg/cache"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// releaseScript deletes the key only while it still carries our token.
var releaseScript = redis.NewScript(`
if redis.call("get", KEYS[1]) == ARGV[1] then
	return redis.call("del", KEYS[1])
end
return 0
`)

// RedisLocker implements Locker with SET NX PX so locks are shared across
// replicas.
type RedisLocker struct {
	client *redis.Client
	prefix string
	wait   time.Duration
	logger *slog.Logger
}

// NewRedisLocker creates a RedisLocker from an existing client.
func NewRedisLocker(client *redis.Client, prefix string, wait time.Duration, logger *slog.Logger) *RedisLocker {
	return &RedisLocker{client: client, prefix: prefix, wait: wait, logger: logger}
}

// NewRedisLockerWithOptions creates a RedisLocker and its client from
// redis.Options.
func NewRedisLockerWithOptions(
	opt *redis.Options,
	prefix string,
	wait time.Duration,
	logger *slog.Logger,
) *RedisLocker {
	return NewRedisLocker(redis.NewClient(opt), prefix, wait, logger)
}

func (l *RedisLocker) key(key string) string {
	return l.prefix + key
}

func (l *RedisLocker) Lock(ctx context.Context, key string, ttl time.Duration) (func(), error) {
	token := uuid.NewString()
	fullKey := l.key(key)
	err := waitFor(ctx, l.wait, func(ctx context.Context) (bool, error) {
		ok, err := l.client.SetNX(ctx, fullKey, token, ttl).Result()
		if err != nil {
			return false, fmt.Errorf("redis lock %s: %w", key, err)
		}
		return ok, nil
	})
	if err != nil {
		return nil, err
	}
	l.logger.Debug("Redis lock acquired", "key", key)

	var once sync.Once
	return func() {
		once.Do(func() {
			// Release even if the request context is already cancelled.
			releaseCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			if err := releaseScript.Run(releaseCtx, l.client, []string{fullKey}, token).Err(); err != nil {
				l.logger.Warn("Redis lock release failed", "key", key, "error", err)
			}
		})
	}, nil
}

var _ cache.Locker = (*RedisLocker)(nil)
