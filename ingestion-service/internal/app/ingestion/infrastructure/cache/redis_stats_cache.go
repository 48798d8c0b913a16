package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"mlreviews/pkg/metrics"
)

const (
	serviceName = "ingestion-service"
	scanCount   = 100
)

// RedisStatsCache хранит ответы статистики в Redis в виде JSON
type RedisStatsCache struct {
	client *redis.Client
}

// NewRedisClient подключается к Redis и проверяет соединение
func NewRedisClient(addr, password string, db int) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	return client, nil
}

func NewRedisStatsCache(client *redis.Client) *RedisStatsCache {
	return &RedisStatsCache{client: client}
}

// keyPrefix - метка для метрик попаданий: stats:reviews:MLA1:... -> stats:reviews
func keyPrefix(key string) string {
	parts := strings.SplitN(key, ":", 3)
	if len(parts) < 2 {
		return key
	}
	return parts[0] + ":" + parts[1]
}

func (c *RedisStatsCache) Get(ctx context.Context, key string, dest interface{}) (bool, error) {
	timer := metrics.NewRedisTimer(serviceName, metrics.RedisOpGet)
	data, err := c.client.Get(ctx, key).Bytes()
	timer.ObserveDuration()

	if err != nil {
		if errors.Is(err, redis.Nil) {
			metrics.RecordCacheMiss(serviceName, keyPrefix(key))
			return false, nil
		}
		metrics.RecordRedisError(serviceName, metrics.RedisOpGet)
		return false, fmt.Errorf("failed to get %s from cache: %w", key, err)
	}

	if err := json.Unmarshal(data, dest); err != nil {
		return false, fmt.Errorf("failed to unmarshal cached %s: %w", key, err)
	}

	metrics.RecordCacheHit(serviceName, keyPrefix(key))
	return true, nil
}

func (c *RedisStatsCache) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to marshal %s: %w", key, err)
	}

	timer := metrics.NewRedisTimer(serviceName, metrics.RedisOpSet)
	defer timer.ObserveDuration()

	if err := c.client.Set(ctx, key, data, ttl).Err(); err != nil {
		metrics.RecordRedisError(serviceName, metrics.RedisOpSet)
		return fmt.Errorf("failed to set %s in cache: %w", key, err)
	}

	return nil
}

// InvalidatePrefix удаляет все ключи, начинающиеся с prefix
func (c *RedisStatsCache) InvalidatePrefix(ctx context.Context, prefix string) error {
	scanTimer := metrics.NewRedisTimer(serviceName, metrics.RedisOpScan)

	var keys []string
	iter := c.client.Scan(ctx, 0, prefix+"*", scanCount).Iterator()
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	scanTimer.ObserveDuration()

	if err := iter.Err(); err != nil {
		metrics.RecordRedisError(serviceName, metrics.RedisOpScan)
		return fmt.Errorf("failed to scan keys %s*: %w", prefix, err)
	}

	if len(keys) == 0 {
		return nil
	}

	timer := metrics.NewRedisTimer(serviceName, metrics.RedisOpDel)
	defer timer.ObserveDuration()

	if err := c.client.Del(ctx, keys...).Err(); err != nil {
		metrics.RecordRedisError(serviceName, metrics.RedisOpDel)
		return fmt.Errorf("failed to delete %d cached keys: %w", len(keys), err)
	}

	return nil
}

func (c *RedisStatsCache) Close() error {
	return c.client.Close()
}
