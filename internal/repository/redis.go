package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"armada/internal/config"
	"armada/internal/models"

	"github.com/redis/go-redis/v9"
)

const (
	idempotencyPrefix = "armada:idem:"
	rateLimitPrefix   = "armada:rate:"
)

// RedisIdempotencyStore keeps replayable responses and per-actor counters in Redis.
type RedisIdempotencyStore struct {
	client *redis.Client
}

// NewRedisClient создает новый клиент Redis на основе конфигурации
func NewRedisClient(cfg config.RedisConfig) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:     cfg.Address,
		Password: cfg.Password,
		DB:       cfg.DB,
		PoolSize: cfg.PoolSize,
	})
}

func NewRedisIdempotencyStore(client *redis.Client) *RedisIdempotencyStore {
	return &RedisIdempotencyStore{client: client}
}

// GetResponse returns nil, nil when nothing is stored under key.
func (r *RedisIdempotencyStore) GetResponse(ctx context.Context, key string) (*models.StoredResponse, error) {
	if r.client == nil {
		return nil, fmt.Errorf("redis client is nil")
	}
	val, err := r.client.Get(ctx, idempotencyPrefix+key).Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get response from redis: %w", err)
	}

	var resp models.StoredResponse
	if err := json.Unmarshal(val, &resp); err != nil {
		return nil, fmt.Errorf("failed to unmarshal response: %w", err)
	}
	return &resp, nil
}

func (r *RedisIdempotencyStore) SaveResponse(ctx context.Context, key string, resp *models.StoredResponse, ttl time.Duration) error {
	if r.client == nil {
		return fmt.Errorf("redis client is nil")
	}
	data, err := json.Marshal(resp)
	if err != nil {
		return fmt.Errorf("failed to marshal response: %w", err)
	}
	// первый ответ выигрывает
	if err := r.client.SetNX(ctx, idempotencyPrefix+key, data, ttl).Err(); err != nil {
		return fmt.Errorf("failed to save response in redis: %w", err)
	}
	return nil
}

// CheckRateLimit counts actions of one actor in a fixed window.
func (r *RedisIdempotencyStore) CheckRateLimit(ctx context.Context, actorID int64, limit int, window time.Duration) (bool, error) {
	if r.client == nil {
		return false, fmt.Errorf("redis client is nil")
	}
	key := fmt.Sprintf("%s%d", rateLimitPrefix, actorID)
	count, err := r.client.Incr(ctx, key).Result()
	if err != nil {
		return false, fmt.Errorf("failed to increment rate limit: %w", err)
	}

	if count == 1 {
		if err := r.client.Expire(ctx, key, window).Err(); err != nil {
			return false, fmt.Errorf("failed to set rate limit window: %w", err)
		}
	}

	return count <= int64(limit), nil
}

// Ping проверяет соединение с Redis
func Ping(ctx context.Context, client *redis.Client) error {
	_, err := client.Ping(ctx).Result()
	if err != nil {
		return fmt.Errorf("failed to ping Redis: %w", err)
	}
	return nil
}

// Close закрывает соединение с Redis
func Close(client *redis.Client) error {
	if client != nil {
		return client.Close()
	}
	return nil
}
