package cache

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"halaqa-points-api/internal/logger"

	"github.com/redis/go-redis/v9"
)

// RedisConfig holds Redis connection settings.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// NewRedisClient connects to Redis and verifies the connection.
func NewRedisClient(cfg RedisConfig) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         cfg.Addr,
		Password:     cfg.Password,
		DB:           cfg.DB,
		PoolSize:     20,
		MinIdleConns: 5,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to redis at %s: %w", cfg.Addr, err)
	}

	logger.Info("[Redis] Connected - Addr:%s, DB:%d", cfg.Addr, cfg.DB)
	return client, nil
}

// setIfAbsentScript stores ARGV[1] under KEYS[1] unless another writer already
// did and returns the stored value.
var setIfAbsentScript = redis.NewScript(`
	local current = redis.call("GET", KEYS[1])
	if current then
		return current
	end
	redis.call("SET", KEYS[1], ARGV[1], "PX", ARGV[2])
	return ARGV[1]
`)

// RedisCache is a Cache shared across instances. All keys live under a prefix
// so Clear never touches sessions or other data in the same database.
type RedisCache struct {
	client    *redis.Client
	keyPrefix string

	hits   atomic.Int64
	misses atomic.Int64
}

// NewRedisCache creates a Redis-backed cache. The client is owned by the caller.
func NewRedisCache(client *redis.Client, keyPrefix string) *RedisCache {
	if keyPrefix == "" {
		keyPrefix = "halaqa:cache:"
	}
	return &RedisCache{client: client, keyPrefix: keyPrefix}
}

func (c *RedisCache) key(k string) string {
	return c.keyPrefix + k
}

// Get retrieves a value by key.
func (c *RedisCache) Get(ctx context.Context, key string) ([]byte, error) {
	data, err := c.client.Get(ctx, c.key(key)).Bytes()
	if errors.Is(err, redis.Nil) {
		c.misses.Add(1)
		return nil, ErrCacheMiss
	}
	if err != nil {
		return nil, err
	}
	c.hits.Add(1)
	return data, nil
}

// Set stores a value with the given TTL.
func (c *RedisCache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	return c.client.Set(ctx, c.key(key), value, ttl).Err()
}

// Delete removes a value by key.
func (c *RedisCache) Delete(ctx context.Context, key string) error {
	return c.client.Del(ctx, c.key(key)).Err()
}

// GetOrSet retrieves a value or computes and stores it if missing. When two
// instances race, both return whichever value was stored first.
func (c *RedisCache) GetOrSet(ctx context.Context, key string, ttl time.Duration, fn func() ([]byte, error)) ([]byte, error) {
	value, err := c.Get(ctx, key)
	if err == nil {
		return value, nil
	}
	if !errors.Is(err, ErrCacheMiss) {
		logger.Warn("[RedisCache] Get %s failed, computing value: %v", key, err)
	}

	value, err = fn()
	if err != nil {
		return nil, err
	}

	stored, err := setIfAbsentScript.Run(ctx, c.client, []string{c.key(key)}, value, ttl.Milliseconds()).Text()
	if err != nil {
		logger.Warn("[RedisCache] Failed to store %s: %v", key, err)
		return value, nil
	}
	return []byte(stored), nil
}

// Clear removes every key under the cache prefix.
func (c *RedisCache) Clear(ctx context.Context) error {
	iter := c.client.Scan(ctx, 0, c.keyPrefix+"*", 500).Iterator()
	batch := make([]string, 0, 500)
	for iter.Next(ctx) {
		batch = append(batch, iter.Val())
		if len(batch) == cap(batch) {
			if err := c.client.Unlink(ctx, batch...).Err(); err != nil {
				return err
			}
			batch = batch[:0]
		}
	}
	if err := iter.Err(); err != nil {
		return err
	}
	if len(batch) > 0 {
		return c.client.Unlink(ctx, batch...).Err()
	}
	return nil
}

// Stats reports hit and miss counters of this instance.
func (c *RedisCache) Stats(ctx context.Context) Stats {
	return Stats{Type: "redis", Hits: c.hits.Load(), Misses: c.misses.Load(), Entries: -1}
}

// Close is a no-op; the shared client is closed by its owner.
func (c *RedisCache) Close() error {
	return nil
}

var _ Cache = (*RedisCache)(nil)
