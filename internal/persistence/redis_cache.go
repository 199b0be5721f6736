package persistence

import (
	"context"
	"errors"

	"github.com/redis/go-redis/v9"
)

// DefaultRedisPrefix namespaces keys written by RedisCache.
const DefaultRedisPrefix = "hubcheck:"

// RedisCache is a Cache backed by Redis. Each entry is a plain string key:
//
//	<prefix><key> => value
//
// Clear only removes keys under the prefix.
type RedisCache struct {
	client    *redis.Client
	prefix    string
	ownsConns bool
}

var _ Cache = (*RedisCache)(nil)

// NewRedisCache creates a RedisCache. An empty prefix selects
// DefaultRedisPrefix. The caller keeps ownership of client.
func NewRedisCache(client *redis.Client, prefix string) *RedisCache {
	if prefix == "" {
		prefix = DefaultRedisPrefix
	}
	return &RedisCache{client: client, prefix: prefix}
}

// OpenRedisCache connects using a redis:// URL and verifies the connection.
func OpenRedisCache(ctx context.Context, url, prefix string) (*RedisCache, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, cacheErr("parse redis url", "", err)
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, cacheErr("ping redis", "", err)
	}
	c := NewRedisCache(client, prefix)
	c.ownsConns = true
	return c, nil
}

func (c *RedisCache) key(k string) string {
	return c.prefix + k
}

func (c *RedisCache) Get(ctx context.Context, key string) (string, bool, error) {
	v, err := c.client.Get(ctx, c.key(key)).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, cacheErr("get", key, err)
	}
	return v, true, nil
}

func (c *RedisCache) Set(ctx context.Context, key, value string) error {
	return cacheErr("set", key, c.client.Set(ctx, c.key(key), value, 0).Err())
}

func (c *RedisCache) Delete(ctx context.Context, key string) error {
	return cacheErr("delete", key, c.client.Del(ctx, c.key(key)).Err())
}

func (c *RedisCache) Clear(ctx context.Context) error {
	iter := c.client.Scan(ctx, 0, c.prefix+"*", 0).Iterator()
	for iter.Next(ctx) {
		if err := c.client.Del(ctx, iter.Val()).Err(); err != nil {
			return cacheErr("clear", iter.Val(), err)
		}
	}
	return cacheErr("clear", "", iter.Err())
}

func (c *RedisCache) Close() error {
	if !c.ownsConns {
		return nil
	}
	return c.client.Close()
}
