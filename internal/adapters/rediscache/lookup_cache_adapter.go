package rediscache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"crm-sync-service/internal/core/domain"

	"github.com/redis/go-redis/v9"
)

// RedisLookupCacheAdapter реализует LookupCachePort поверх Redis.
// Справочники CRM меняются редко, поэтому кэшируются целиком с TTL.
type RedisLookupCacheAdapter struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisLookupCacheAdapter создает новый экземпляр адаптера.
func NewRedisLookupCacheAdapter(client *redis.Client, ttl time.Duration) (*RedisLookupCacheAdapter, error) {
	if client == nil {
		return nil, fmt.Errorf("redis client cannot be nil")
	}
	if ttl <= 0 {
		return nil, fmt.Errorf("ttl must be positive")
	}
	return &RedisLookupCacheAdapter{
		client: client,
		ttl:    ttl,
	}, nil
}

func cacheKey(lookupType string, languageID int) string {
	return fmt.Sprintf("crm:lookup:%s:%d", lookupType, languageID)
}

// Get возвращает (nil, nil) при промахе кэша.
func (a *RedisLookupCacheAdapter) Get(ctx context.Context, lookupType string, languageID int) ([]domain.LookupEntry, error) {
	raw, err := a.client.Get(ctx, cacheKey(lookupType, languageID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get lookup from cache: %w", err)
	}

	var entries []domain.LookupEntry
	if err := json.Unmarshal(raw, &entries); err != nil {
		// Битое значение приравнивается к промаху, ключ будет перезаписан.
		return nil, nil
	}

	return entries, nil
}

func (a *RedisLookupCacheAdapter) Set(ctx context.Context, lookupType string, languageID int, entries []domain.LookupEntry) error {
	raw, err := json.Marshal(entries)
	if err != nil {
		return fmt.Errorf("marshal lookup entries: %w", err)
	}

	if err := a.client.Set(ctx, cacheKey(lookupType, languageID), raw, a.ttl).Err(); err != nil {
		return fmt.Errorf("set lookup in cache: %w", err)
	}

	return nil
}
