package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"pdf-assistant/internal/contract"
)

// Key prefix for cached results
const cacheKeyPrefix = "result:"

type RedisCache struct {
	client *redis.Client
}

// NewRedisCache creates a new Redis cache client
func NewRedisCache(addr, password string) (*RedisCache, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       0,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("redis connection failed: %w", err)
	}

	return NewRedisCacheFromClient(client), nil
}

// NewRedisCacheFromClient wraps an existing client, sharing its connection pool.
func NewRedisCacheFromClient(client *redis.Client) *RedisCache {
	return &RedisCache{client: client}
}

// GetResult retrieves a cached result by key
func (c *RedisCache) GetResult(ctx context.Context, key string) (*contract.Result, error) {
	data, err := c.client.Get(ctx, cacheKeyPrefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil // Cache miss
	}
	if err != nil {
		return nil, err
	}

	var e entry
	if err := json.Unmarshal(data, &e); err != nil {
		return nil, err
	}
	return e.result(), nil
}

// SetResult stores a result with TTL
func (c *RedisCache) SetResult(ctx context.Context, key string, result *contract.Result, ttl time.Duration) error {
	if result == nil {
		return errors.New("nil result")
	}
	data, err := json.Marshal(toEntry(result))
	if err != nil {
		return err
	}
	return c.client.Set(ctx, cacheKeyPrefix+key, data, ttl).Err()
}

// Close closes the cache connection
func (c *RedisCache) Close() error {
	return c.client.Close()
}
