// Package ratelimit 提供按 key 的固定窗口限流。
// key 约定为 "{action}:{userID}"，即按用户、按动作分别计数。
package ratelimit

import (
	"context"
	"time"
)

// Limiter 判定某 key 在窗口内是否还允许一次调用。
// 返回 true 时本次调用已被记入计数。
type Limiter interface {
	Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error)
}
