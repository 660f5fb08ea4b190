package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"otr_messaging/internal/model"
)

// RedisAssetCache keeps decrypted assets in redis with a TTL. It is only a
// cache: a miss means re-downloading and re-decrypting the asset.
type RedisAssetCache struct {
	rdb *redis.Client
	ttl time.Duration
}

func NewRedisAssetCache(rdb *redis.Client, ttl time.Duration) *RedisAssetCache {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &RedisAssetCache{rdb: rdb, ttl: ttl}
}

var _ AssetCache = (*RedisAssetCache)(nil)

func assetCacheKey(id model.AssetID) string {
	return fmt.Sprintf("asset-cache:%s", id)
}

func (c *RedisAssetCache) GetAssetCache(ctx context.Context, id model.AssetID) ([]byte, error) {
	payload, err := c.rdb.Get(ctx, assetCacheKey(id)).Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return payload, nil
}

func (c *RedisAssetCache) PutAssetCache(ctx context.Context, id model.AssetID, payload []byte) error {
	return c.rdb.Set(ctx, assetCacheKey(id), payload, c.ttl).Err()
}
