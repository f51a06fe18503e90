// Package cache は外部カタログのアイテムをRedisにキャッシュする。
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/BrieHudson/Capstone-1-Muse/internal/model"
)

const keyPrefix = "muse:catalog:item:"

// RedisItemCache はRedisを使用したカタログアイテムキャッシュ。
type RedisItemCache struct {
	rdb redis.Cmdable
}

// NewRedisItemCache はRedisItemCacheを生成する。
func NewRedisItemCache(rdb redis.Cmdable) *RedisItemCache {
	return &RedisItemCache{rdb: rdb}
}

// NewClient はaddrに接続するRedisクライアントを生成し、疎通を確認する。
func NewClient(ctx context.Context, addr string) (*redis.Client, error) {
	rdb := redis.NewClient(&redis.Options{Addr: addr, DB: 0})
	if err := rdb.Ping(ctx).Err(); err != nil {
		rdb.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}
	return rdb, nil
}

func itemKey(itemType model.ItemType, itemID string) string {
	return keyPrefix + string(itemType) + ":" + itemID
}

// Get はキャッシュ済みのアイテムを返す。存在しない場合はnilを返す。
func (c *RedisItemCache) Get(ctx context.Context, itemType model.ItemType, itemID string) (*model.CatalogItem, error) {
	raw, err := c.rdb.Get(ctx, itemKey(itemType, itemID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get cached item: %w", err)
	}

	var item model.CatalogItem
	if err := json.Unmarshal(raw, &item); err != nil {
		// 壊れたエントリはミスとして扱い、次の保存で上書きされる
		return nil, nil
	}
	return &item, nil
}

// Set はアイテムをttl付きで保存する。
func (c *RedisItemCache) Set(ctx context.Context, item *model.CatalogItem, ttl time.Duration) error {
	raw, err := json.Marshal(item)
	if err != nil {
		return fmt.Errorf("failed to encode item: %w", err)
	}
	if err := c.rdb.Set(ctx, itemKey(item.Type, item.ID), raw, ttl).Err(); err != nil {
		return fmt.Errorf("failed to cache item: %w", err)
	}
	return nil
}
