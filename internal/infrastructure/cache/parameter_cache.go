package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/erp/refundengine/internal/domain/parameter"
)

const defaultScanBatchSize = 100

// paramCacheEntry is the wire shape stored for a resolved parameter in both
// tiers.
type paramCacheEntry struct {
	Value  parameter.Value        `json:"value"`
	Source parameter.ResolvedSource `json:"source"`
}

type localEntry struct {
	entry     paramCacheEntry
	expiresAt time.Time
}

// TieredParameterCache is a two-tier (in-process + Redis) implementation of
// parameter.Cache: reads go L1 -> L2, writes populate both, and
// InvalidateName drops the entry from both tiers for every merchant sharing
// that parameter name via a Redis SCAN over its key prefix
// (pattern-delete-on-write).
type TieredParameterCache struct {
	l1     sync.Map // map[string]localEntry
	redis  *redis.Client
	owns   bool
	logger *zap.Logger
}

// NewTieredParameterCache builds a cache over its own Redis client.
func NewTieredParameterCache(cfg RedisConfig, logger *zap.Logger) (*TieredParameterCache, error) {
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
	return &TieredParameterCache{redis: client, owns: true, logger: logger}, nil
}

// NewTieredParameterCacheWithClient builds a cache over a shared client; the
// caller retains ownership and is responsible for closing it.
func NewTieredParameterCacheWithClient(client *redis.Client, logger *zap.Logger) *TieredParameterCache {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &TieredParameterCache{redis: client, owns: false, logger: logger}
}

func (c *TieredParameterCache) key(name, merchantID string) string {
	return fmt.Sprintf("parameter:%s:%s", name, merchantID)
}

func (c *TieredParameterCache) namePrefix(name string) string {
	return fmt.Sprintf("parameter:%s:*", name)
}

// Get checks the local tier first, then Redis, populating the local tier
// on an L2 hit.
func (c *TieredParameterCache) Get(ctx context.Context, name, merchantID string) (parameter.Value, parameter.ResolvedSource, bool, error) {
	key := c.key(name, merchantID)

	if v, ok := c.l1.Load(key); ok {
		le := v.(localEntry)
		if time.Now().Before(le.expiresAt) {
			return le.entry.Value, le.entry.Source, true, nil
		}
		c.l1.Delete(key)
	}

	data, err := c.redis.Get(ctx, key).Bytes()
	if err == redis.Nil {
		return parameter.Value{}, "", false, nil
	}
	if err != nil {
		return parameter.Value{}, "", false, fmt.Errorf("parameter cache get: %w", err)
	}

	var e paramCacheEntry
	if err := json.Unmarshal(data, &e); err != nil {
		c.logger.Warn("corrupted parameter cache entry, evicting", zap.String("key", key), zap.Error(err))
		_ = c.redis.Del(ctx, key)
		return parameter.Value{}, "", false, nil
	}

	ttl, err := c.redis.TTL(ctx, key).Result()
	if err != nil || ttl <= 0 {
		ttl = parameter.DefaultCacheTTL
	}
	c.l1.Store(key, localEntry{entry: e, expiresAt: time.Now().Add(ttl)})
	return e.Value, e.Source, true, nil
}

// Set writes through to Redis and populates the local tier.
func (c *TieredParameterCache) Set(ctx context.Context, name, merchantID string, value parameter.Value, source parameter.ResolvedSource, ttl time.Duration) error {
	if ttl <= 0 {
		ttl = parameter.DefaultCacheTTL
	}
	key := c.key(name, merchantID)
	e := paramCacheEntry{Value: value, Source: source}
	data, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("marshal parameter cache entry: %w", err)
	}
	if err := c.redis.Set(ctx, key, data, ttl).Err(); err != nil {
		return fmt.Errorf("parameter cache set: %w", err)
	}
	c.l1.Store(key, localEntry{entry: e, expiresAt: time.Now().Add(ttl)})
	return nil
}

// InvalidateName drops every cached entry for name, across all merchants,
// from both tiers.
func (c *TieredParameterCache) InvalidateName(ctx context.Context, name string) error {
	var cursor uint64
	for {
		keys, next, err := c.redis.Scan(ctx, cursor, c.namePrefix(name), defaultScanBatchSize).Result()
		if err != nil {
			return fmt.Errorf("parameter cache scan: %w", err)
		}
		if len(keys) > 0 {
			if err := c.redis.Del(ctx, keys...).Err(); err != nil {
				return fmt.Errorf("parameter cache invalidate: %w", err)
			}
			for _, k := range keys {
				c.l1.Delete(k)
			}
		}
		cursor = next
		if cursor == 0 {
			break
		}
	}
	return nil
}

// Close releases the Redis client if this cache created it.
func (c *TieredParameterCache) Close() error {
	if c.owns {
		return c.redis.Close()
	}
	return nil
}

var _ parameter.Cache = (*TieredParameterCache)(nil)
