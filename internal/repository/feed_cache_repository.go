// Package repository 提供了数据访问层的实现。
package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/go-redis/redis/v8"
)

// FeedCacheRepository 定义了个性化信息流结果的缓存操作。
// 信息流过滤是纯函数，输入相同结果必然相同，因此可以按
// （用户, 议题集合）为键做短时缓存。
type FeedCacheRepository interface {
	Get(ctx context.Context, userID uint, topics []string, out interface{}) (bool, error)
	Set(ctx context.Context, userID uint, topics []string, value interface{}, ttl time.Duration) error
	Invalidate(ctx context.Context, userID uint) error
}

type redisFeedCacheRepository struct {
	redisClient *redis.Client
}

// NewFeedCacheRepository 创建一个新的 FeedCacheRepository 实例。
func NewFeedCacheRepository(redisClient *redis.Client) FeedCacheRepository {
	return &redisFeedCacheRepository{redisClient: redisClient}
}

func feedCacheKey(userID uint, topics []string) string {
	return fmt.Sprintf("feed:%d:%s", userID, strings.Join(topics, "|"))
}

// Get 读取缓存的信息流，命中时反序列化到 out 并返回 true。
func (r *redisFeedCacheRepository) Get(ctx context.Context, userID uint, topics []string, out interface{}) (bool, error) {
	jsonData, err := r.redisClient.Get(ctx, feedCacheKey(userID, topics)).Result()
	if err == redis.Nil {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to get cached feed: %w", err)
	}
	if err := json.Unmarshal([]byte(jsonData), out); err != nil {
		return false, fmt.Errorf("failed to unmarshal cached feed: %w", err)
	}
	return true, nil
}

// Set 写入信息流缓存。
func (r *redisFeedCacheRepository) Set(ctx context.Context, userID uint, topics []string, value interface{}, ttl time.Duration) error {
	jsonData, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to marshal feed for cache: %w", err)
	}
	return r.redisClient.Set(ctx, feedCacheKey(userID, topics), jsonData, ttl).Err()
}

// Invalidate 清除某个用户的全部信息流缓存（偏好变更或文章入库后调用）。
func (r *redisFeedCacheRepository) Invalidate(ctx context.Context, userID uint) error {
	keys, err := r.redisClient.Keys(ctx, fmt.Sprintf("feed:%d:*", userID)).Result()
	if err != nil {
		return fmt.Errorf("failed to scan feed cache keys: %w", err)
	}
	if len(keys) == 0 {
		return nil
	}
	return r.redisClient.Del(ctx, keys...).Err()
}
