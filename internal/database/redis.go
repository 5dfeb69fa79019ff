package database

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/prism-platform/notification-service/internal/config"
)

// RedisClient wraps redis.Client for caching and live fan-out operations
type RedisClient struct {
	*redis.Client
}

// NewRedisClient creates a new Redis client
func NewRedisClient(cfg config.RedisConfig) (*RedisClient, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	// Test the connection
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return &RedisClient{Client: rdb}, nil
}

// UserTopic is the pub/sub topic carrying one user's live notifications.
// Every connected session for the user subscribes to it; a single publish
// fans out to all of them.
func UserTopic(userID string) string {
	return fmt.Sprintf("notifications:user:%s", userID)
}

// PublishToUser publishes a payload on the user's live topic
func (r *RedisClient) PublishToUser(ctx context.Context, userID string, payload []byte) error {
	return r.Publish(ctx, UserTopic(userID), payload).Err()
}

// SubscribeToUser subscribes to the user's live topic
func (r *RedisClient) SubscribeToUser(ctx context.Context, userID string) *redis.PubSub {
	return r.Subscribe(ctx, UserTopic(userID))
}

// CacheUserPreferences caches user notification preferences
func (r *RedisClient) CacheUserPreferences(ctx context.Context, userID string, data []byte) error {
	key := fmt.Sprintf("user_preferences:%s", userID)
	return r.Set(ctx, key, data, time.Hour).Err()
}

// GetUserPreferences retrieves cached user notification preferences
func (r *RedisClient) GetUserPreferences(ctx context.Context, userID string) (string, error) {
	key := fmt.Sprintf("user_preferences:%s", userID)
	return r.Get(ctx, key).Result()
}

// InvalidateUserPreferences drops the cached preference record
func (r *RedisClient) InvalidateUserPreferences(ctx context.Context, userID string) error {
	key := fmt.Sprintf("user_preferences:%s", userID)
	return r.Del(ctx, key).Err()
}

// CacheUnreadCount caches a user's unread notification count
func (r *RedisClient) CacheUnreadCount(ctx context.Context, userID string, count int64) error {
	key := fmt.Sprintf("unread_count:%s", userID)
	return r.Set(ctx, key, count, 5*time.Minute).Err()
}

// GetUnreadCount retrieves a cached unread count
func (r *RedisClient) GetUnreadCount(ctx context.Context, userID string) (int64, error) {
	key := fmt.Sprintf("unread_count:%s", userID)
	val, err := r.Get(ctx, key).Result()
	if err != nil {
		return 0, err
	}
	return strconv.ParseInt(val, 10, 64)
}

// InvalidateUnreadCount drops the cached unread count after a read-state write
func (r *RedisClient) InvalidateUnreadCount(ctx context.Context, userID string) error {
	key := fmt.Sprintf("unread_count:%s", userID)
	return r.Del(ctx, key).Err()
}

// Close closes the Redis connection
func (r *RedisClient) Close() error {
	return r.Client.Close()
}
