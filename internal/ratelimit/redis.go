package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

type redisCounter interface {
	Incr(ctx context.Context, key string) *redis.IntCmd
	Expire(ctx context.Context, key string, expiration time.Duration) *redis.BoolCmd
}

// RedisLimiter 基于 INCR + EXPIRE 的固定窗口限流器，多实例共享计数。
type RedisLimiter struct {
	client redisCounter
	prefix string
}

// NewRedisLimiter 构造 Redis 限流器，prefix 用于隔离键空间。
func NewRedisLimiter(client redis.UniversalClient, prefix string) *RedisLimiter {
	if prefix == "" {
		prefix = "rate"
	}
	return &RedisLimiter{client: client, prefix: prefix}
}

// Allow 实现 Limiter。首次计数时设置过期时间作为窗口边界。
func (l *RedisLimiter) Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error) {
	redisKey := l.prefix + ":" + key
	count, err := l.client.Incr(ctx, redisKey).Result()
	if err != nil {
		return false, fmt.Errorf("incr %q: %w", redisKey, err)
	}
	if count == 1 {
		_ = l.client.Expire(ctx, redisKey, window).Err()
	}
	return count <= int64(limit), nil
}
