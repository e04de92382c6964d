package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"

	"github.com/hosaammohammed1999-ai/radmeter1/internal/models"
)

// ErrCacheMiss means the key does not exist or has expired.
var ErrCacheMiss = errors.New("cache miss")

// Mirror keys
const (
	LatestReadingKey = "radmeter:reading:latest"
	CacheStatsKey    = "radmeter:cache:stats"
)

// KVStore abstracts the shared key-value store (Redis in production).
type KVStore interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key string, value string, ttl time.Duration) error
}

// RedisKVStore is a KVStore backed by go-redis.
type RedisKVStore struct {
	client *redis.Client
}

func NewRedisKVStore(client *redis.Client) *RedisKVStore {
	return &RedisKVStore{client: client}
}

func (r *RedisKVStore) Get(ctx context.Context, key string) (string, error) {
	val, err := r.client.Get(ctx, key).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", ErrCacheMiss
		}
		return "", err
	}
	return val, nil
}

func (r *RedisKVStore) Set(ctx context.Context, key string, value string, ttl time.Duration) error {
	return r.client.Set(ctx, key, value, ttl).Err()
}

// Mirror copies the latest reading and cache stats into a shared KV store so
// other processes (dashboards, a second API replica) can read them.
type Mirror struct {
	kv     KVStore
	ttl    time.Duration
	logger *zap.Logger
}

func NewMirror(kv KVStore, ttl time.Duration, logger *zap.Logger) *Mirror {
	return &Mirror{kv: kv, ttl: ttl, logger: logger}
}

// Publish writes the current latest reading (if any) and stats.
func (m *Mirror) Publish(ctx context.Context, c *ReadingCache) error {
	if latest, ok := c.Latest(); ok {
		if err := m.setJSON(ctx, LatestReadingKey, latest); err != nil {
			return err
		}
	}
	if err := m.setJSON(ctx, CacheStatsKey, c.Stats()); err != nil {
		return err
	}
	m.logger.Debug("Mirrored reading cache", zap.String("key", LatestReadingKey))
	return nil
}

// Latest reads the mirrored latest reading.
func (m *Mirror) Latest(ctx context.Context) (models.Reading, error) {
	var r models.Reading
	raw, err := m.kv.Get(ctx, LatestReadingKey)
	if err != nil {
		return r, err
	}
	if err := json.Unmarshal([]byte(raw), &r); err != nil {
		return r, fmt.Errorf("failed to unmarshal mirrored reading: %w", err)
	}
	return r, nil
}

func (m *Mirror) setJSON(ctx context.Context, key string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to marshal %s: %w", key, err)
	}
	if err := m.kv.Set(ctx, key, string(data), m.ttl); err != nil {
		return fmt.Errorf("failed to set %s: %w", key, err)
	}
	return nil
}
