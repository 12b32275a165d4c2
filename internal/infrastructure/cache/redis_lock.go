package cache

import (
	"context"
	"fmt"
	"math/rand/v2"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/erp/refundengine/internal/domain/lock"
)

// releaseScript deletes key only if its value still matches token, so a
// holder can never release (or be fooled into releasing) a lease that
// already passed to the next acquirer.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
else
	return 0
end
`)

// extendScript renews the TTL only if the caller still holds the lease.
var extendScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("PEXPIRE", KEYS[1], ARGV[2])
else
	return 0
end
`)

// RedisLocker implements lock.Locker over Redis SETNX/Lua: a Lua guard
// ensures Release/Extend never act on a lease another holder already took
// over.
type RedisLocker struct {
	client    *redis.Client
	owns      bool
	keyPrefix string
	retry     lock.RetryConfig
	logger    *zap.Logger
}

// NewRedisLocker builds a locker over its own Redis client.
func NewRedisLocker(cfg RedisConfig, logger *zap.Logger) (*RedisLocker, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RedisLocker{client: client, owns: true, keyPrefix: "lock:", retry: lock.DefaultRetryConfig(), logger: logger}, nil
}

// NewRedisLockerWithClient builds a locker over a shared client.
func NewRedisLockerWithClient(client *redis.Client, logger *zap.Logger) *RedisLocker {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RedisLocker{client: client, owns: false, keyPrefix: "lock:", retry: lock.DefaultRetryConfig(), logger: logger}
}

func (l *RedisLocker) redisKey(key string) string {
	return l.keyPrefix + key
}

// Acquire retries SETNX with capped, jittered backoff until the lease is
// obtained, ctx is done, or the retry ceiling is reached.
func (l *RedisLocker) Acquire(ctx context.Context, key string, lease time.Duration) (lock.Token, error) {
	token := lock.Token(uuid.New().String())
	redisKey := l.redisKey(key)

	for attempt := 0; attempt < l.retry.MaxAttempts; attempt++ {
		ok, err := l.client.SetNX(ctx, redisKey, string(token), lease).Result()
		if err != nil {
			return "", fmt.Errorf("lock acquire: %w", err)
		}
		if ok {
			return token, nil
		}

		delay := l.retry.BaseDelay * time.Duration(1<<attempt)
		if delay > l.retry.MaxDelay {
			delay = l.retry.MaxDelay
		}
		jitter := time.Duration(float64(delay) * l.retry.JitterFactor * (rand.Float64()*2 - 1))
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-time.After(delay + jitter):
		}
	}
	return "", lock.ErrLockTimeout
}

// Extend renews the lease, failing with ErrLockLost if token is no longer
// the current holder.
func (l *RedisLocker) Extend(ctx context.Context, key string, token lock.Token, lease time.Duration) error {
	res, err := extendScript.Run(ctx, l.client, []string{l.redisKey(key)}, string(token), lease.Milliseconds()).Int64()
	if err != nil {
		return fmt.Errorf("lock extend: %w", err)
	}
	if res == 0 {
		return lock.ErrLockLost
	}
	return nil
}

// Release gives up the lock. Idempotent: a missing or superseded key is
// not an error.
func (l *RedisLocker) Release(ctx context.Context, key string, token lock.Token) error {
	_, err := releaseScript.Run(ctx, l.client, []string{l.redisKey(key)}, string(token)).Int64()
	if err != nil {
		return fmt.Errorf("lock release: %w", err)
	}
	return nil
}

// Close releases the Redis client if this locker created it.
func (l *RedisLocker) Close() error {
	if l.owns {
		return l.client.Close()
	}
	return nil
}

var _ lock.Locker = (*RedisLocker)(nil)
