package speech

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// TokenCache хранит выданные речевые токены до истечения TTL.
type TokenCache interface {
	// Get возвращает токен по ключу; пустая строка без ошибки - промах.
	Get(ctx context.Context, key string) (string, error)
	// Set сохраняет токен с временем жизни.
	Set(ctx context.Context, key, token string, ttl time.Duration) error
}

// Compile-time check to ensure redisTokenCache implements TokenCache
var _ TokenCache = (*redisTokenCache)(nil)

type redisTokenCache struct {
	client *redis.Client
	logger *zap.Logger
}

// NewRedisTokenCache creates a new Redis-backed TokenCache.
func NewRedisTokenCache(client *redis.Client, logger *zap.Logger) TokenCache {
	return &redisTokenCache{
		client: client,
		logger: logger.Named("RedisTokenCache"),
	}
}

func (c *redisTokenCache) Get(ctx context.Context, key string) (string, error) {
	value, err := c.client.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return "", nil // Промах кеша - не ошибка
	}
	if err != nil {
		return "", fmt.Errorf("ошибка чтения из redis: %w", err)
	}
	return value, nil
}

func (c *redisTokenCache) Set(ctx context.Context, key, token string, ttl time.Duration) error {
	if err := c.client.Set(ctx, key, token, ttl).Err(); err != nil {
		return fmt.Errorf("ошибка записи в redis: %w", err)
	}
	c.logger.Debug("Токен сохранен в кеше", zap.String("key", key), zap.Duration("ttl", ttl))
	return nil
}
