package cache

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/redis/go-redis/v9"
)

// DefaultRedisPrefix namespaces every key written by RedisDriver.
const DefaultRedisPrefix = "siteworker"

// RedisDriver stores caches in Redis.
//
// Layout:
//
//	<prefix>:caches        sorted set of cache names scored by creation time
//	<prefix>:cache:<name>  hash of record key -> JSON entry
type RedisDriver struct {
	redis  *redis.Client
	prefix string
}

// NewRedisDriver creates a new cache driver with Redis backend.
func NewRedisDriver(redisClient *redis.Client, prefix string) *RedisDriver {
	if redisClient == nil {
		panic("redis client cannot be nil")
	}
	if prefix == "" {
		prefix = DefaultRedisPrefix
	}
	return &RedisDriver{
		redis:  redisClient,
		prefix: prefix,
	}
}

func (d *RedisDriver) Name() string { return "redis" }

func (d *RedisDriver) namesKey() string {
	return d.prefix + ":caches"
}

func (d *RedisDriver) cacheKey(name string) string {
	return d.prefix + ":cache:" + name
}

func (d *RedisDriver) creation() redis.Z {
	return redis.Z{Score: float64(time.Now().UnixMicro())}
}

func (d *RedisDriver) CreateCache(ctx context.Context, name string) error {
	z := d.creation()
	z.Member = name
	if err := d.redis.ZAddNX(ctx, d.namesKey(), z).Err(); err != nil {
		return fmt.Errorf("redis zadd: %w", err)
	}
	return nil
}

func (d *RedisDriver) CacheNames(ctx context.Context) ([]string, error) {
	names, err := d.redis.ZRange(ctx, d.namesKey(), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("redis zrange: %w", err)
	}
	return names, nil
}

func (d *RedisDriver) HasCache(ctx context.Context, name string) (bool, error) {
	err := d.redis.ZScore(ctx, d.namesKey(), name).Err()
	if err != nil {
		if err == redis.Nil {
			return false, nil
		}
		return false, fmt.Errorf("redis zscore: %w", err)
	}
	return true, nil
}

func (d *RedisDriver) DropCache(ctx context.Context, name string) (bool, error) {
	var removed *redis.IntCmd
	_, err := d.redis.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		removed = pipe.ZRem(ctx, d.namesKey(), name)
		pipe.Del(ctx, d.cacheKey(name))
		return nil
	})
	if err != nil {
		return false, fmt.Errorf("redis drop: %w", err)
	}
	return removed.Val() > 0, nil
}

func (d *RedisDriver) Get(ctx context.Context, name, key string) ([]byte, error) {
	data, err := d.redis.HGet(ctx, d.cacheKey(name), key).Bytes()
	if err != nil {
		if err == redis.Nil {
			return nil, ErrCacheMiss
		}
		return nil, fmt.Errorf("redis hget: %w", err)
	}
	return data, nil
}

// SetAll writes the records and registers the cache in one MULTI/EXEC.
func (d *RedisDriver) SetAll(ctx context.Context, name string, records []Record) error {
	if len(records) == 0 {
		return d.CreateCache(ctx, name)
	}
	values := make([]interface{}, 0, len(records)*2)
	for _, r := range records {
		values = append(values, r.Key, r.Data)
	}

	z := d.creation()
	z.Member = name
	_, err := d.redis.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.ZAddNX(ctx, d.namesKey(), z)
		pipe.HSet(ctx, d.cacheKey(name), values...)
		return nil
	})
	if err != nil {
		return fmt.Errorf("redis hset: %w", err)
	}
	return nil
}

func (d *RedisDriver) Delete(ctx context.Context, name, key string) (bool, error) {
	n, err := d.redis.HDel(ctx, d.cacheKey(name), key).Result()
	if err != nil {
		return false, fmt.Errorf("redis hdel: %w", err)
	}
	return n > 0, nil
}

func (d *RedisDriver) List(ctx context.Context, name string) ([]string, error) {
	keys, err := d.redis.HKeys(ctx, d.cacheKey(name)).Result()
	if err != nil {
		return nil, fmt.Errorf("redis hkeys: %w", err)
	}
	sort.Strings(keys)
	return keys, nil
}

func (d *RedisDriver) Ping(ctx context.Context) error {
	return d.redis.Ping(ctx).Err()
}

// Close closes the underlying Redis client.
func (d *RedisDriver) Close() error {
	return d.redis.Close()
}
