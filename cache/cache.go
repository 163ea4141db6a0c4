// Package cache holds derived group state between requests: Redis
// snapshots of phase context and the in-process live tally hub.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"

	"gpodo/config"
)

// Cache stores JSON documents by key.
type Cache interface {
	GetJSON(ctx context.Context, key string, dest interface{}) (bool, error)
	SetJSON(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	Delete(ctx context.Context, keys ...string) error
}

// GroupContextKey is the key of a group's phase context snapshot.
func GroupContextKey(groupID uint) string {
	return fmt.Sprintf("group:ctx:%d", groupID)
}

// GroupPipelineKey is the key of a group's pipeline metrics.
func GroupPipelineKey(groupID uint) string {
	return fmt.Sprintf("group:pipeline:%d", groupID)
}

// InvalidateGroup drops every cached view of a group.
func InvalidateGroup(ctx context.Context, c Cache, groupID uint) error {
	return c.Delete(ctx, GroupContextKey(groupID), GroupPipelineKey(groupID))
}

// NewRedisClient builds a client from the app's Redis settings.
func NewRedisClient(cfg config.RedisConfig) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:     cfg.Address,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
}

type RedisCache struct {
	client *redis.Client
}

func NewRedisCache(client *redis.Client) *RedisCache {
	return &RedisCache{client: client}
}

func (r *RedisCache) GetJSON(ctx context.Context, key string, dest interface{}) (bool, error) {
	raw, err := r.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if err := json.Unmarshal(raw, dest); err != nil {
		// a corrupt entry is treated as a miss and removed
		_ = r.client.Del(ctx, key).Err()
		return false, nil
	}
	return true, nil
}

func (r *RedisCache) SetJSON(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	return r.client.Set(ctx, key, raw, ttl).Err()
}

func (r *RedisCache) Delete(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	return r.client.Del(ctx, keys...).Err()
}

// NoopCache is used when Redis is disabled; every read misses.
type NoopCache struct{}

func (NoopCache) GetJSON(context.Context, string, interface{}) (bool, error) { return false, nil }

func (NoopCache) SetJSON(context.Context, string, interface{}, time.Duration) error { return nil }

func (NoopCache) Delete(context.Context, ...string) error { return nil }
