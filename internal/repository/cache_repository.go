package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/SergeiKhy/ad-tracker/internal/models"
	"github.com/redis/go-redis/v9"
)

var ErrCacheMiss = errors.New("cache miss")

// CacheRepository кэш площадок по хэшу ключа плюс скользящие счётчики
// повторных кликов для фрод-сигнала
type CacheRepository interface {
	GetSite(ctx context.Context, keyHash string) (*models.Site, error)
	SetSite(ctx context.Context, keyHash string, site *models.Site, ttl time.Duration) error
	DeleteSite(ctx context.Context, keyHash string) error
	// IncrClickCount инкрементирует счётчик кликов по отпечатку в пределах окна
	// и возвращает новое значение
	IncrClickCount(ctx context.Context, fingerprint string, window time.Duration) (int64, error)
}

type cacheRepository struct {
	redis *RedisDB
}

func NewCacheRepository(redis *RedisDB) CacheRepository {
	return &cacheRepository{redis: redis}
}

func (r *cacheRepository) GetSite(ctx context.Context, keyHash string) (*models.Site, error) {
	data, err := r.redis.Client.Get(ctx, r.siteKey(keyHash)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrCacheMiss
		}
		return nil, err
	}

	var site models.Site
	if err := json.Unmarshal(data, &site); err != nil {
		return nil, fmt.Errorf("failed to unmarshal site: %w", err)
	}

	return &site, nil
}

func (r *cacheRepository) SetSite(ctx context.Context, keyHash string, site *models.Site, ttl time.Duration) error {
	data, err := json.Marshal(site)
	if err != nil {
		return fmt.Errorf("failed to marshal site: %w", err)
	}

	return r.redis.Client.Set(ctx, r.siteKey(keyHash), data, ttl).Err()
}

func (r *cacheRepository) DeleteSite(ctx context.Context, keyHash string) error {
	return r.redis.Client.Del(ctx, r.siteKey(keyHash)).Err()
}

func (r *cacheRepository) IncrClickCount(ctx context.Context, fingerprint string, window time.Duration) (int64, error) {
	key := "clicks:" + fingerprint

	count, err := r.redis.Client.Incr(ctx, key).Result()
	if err != nil {
		return 0, fmt.Errorf("failed to incr click count: %w", err)
	}

	// TTL выставляется только на первом инкременте - окно скользит от первого клика
	if count == 1 {
		if err := r.redis.Client.Expire(ctx, key, window).Err(); err != nil {
			return count, fmt.Errorf("failed to expire click count: %w", err)
		}
	}

	return count, nil
}

func (r *cacheRepository) siteKey(keyHash string) string {
	return "site:" + keyHash
}
