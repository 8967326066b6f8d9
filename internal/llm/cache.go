package llm

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

const cacheKeyPrefix = "workoutai:completion:"

// Cache stores completions by key.
type Cache interface {
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, value string, ttl time.Duration) error
}

// RedisCache is a Cache backed by Redis.
type RedisCache struct {
	client *redis.Client
}

// NewRedisCache connects to the Redis server at url (redis://host:port/db).
func NewRedisCache(ctx context.Context, url string) (*RedisCache, error) {
	opt, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("failed to parse redis url: %w", err)
	}
	client := redis.NewClient(opt)
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}
	return &RedisCache{client: client}, nil
}

func (c *RedisCache) Get(ctx context.Context, key string) (string, bool, error) {
	val, err := c.client.Get(ctx, cacheKeyPrefix+key).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return val, true, nil
}

func (c *RedisCache) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	return c.client.Set(ctx, cacheKeyPrefix+key, value, ttl).Err()
}

func (c *RedisCache) Close() error {
	return c.client.Close()
}

// CachedModel answers repeated prompts from the cache. Cache failures are
// logged and fall through to the model.
type CachedModel struct {
	next      Model
	cache     Cache
	ttl       time.Duration
	namespace string
	log       zerolog.Logger
}

func NewCachedModel(next Model, cache Cache, namespace string, ttl time.Duration, log zerolog.Logger) *CachedModel {
	return &CachedModel{next: next, cache: cache, ttl: ttl, namespace: namespace, log: log}
}

func (m *CachedModel) Complete(ctx context.Context, p Prompt) (string, error) {
	key, err := promptKey(m.namespace, p)
	if err != nil {
		return "", fmt.Errorf("failed to hash prompt: %w", err)
	}
	if val, ok, err := m.cache.Get(ctx, key); err != nil {
		m.log.Warn().Err(err).Msg("completion cache read failed")
	} else if ok {
		m.log.Debug().Str("key", key[:12]).Msg("completion cache hit")
		return val, nil
	}
	out, err := m.next.Complete(ctx, p)
	if err != nil {
		return "", err
	}
	if err := m.cache.Set(ctx, key, out, m.ttl); err != nil {
		m.log.Warn().Err(err).Msg("completion cache write failed")
	}
	return out, nil
}

func promptKey(namespace string, p Prompt) (string, error) {
	h := sha256.New()
	h.Write([]byte(namespace))
	h.Write([]byte{0})
	h.Write([]byte(p.SchemaName))
	h.Write([]byte{0})
	if err := json.NewEncoder(h).Encode(p.Messages); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}
