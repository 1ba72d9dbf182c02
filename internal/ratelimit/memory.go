package ratelimit

import (
	"context"
	"sync"
	"time"
)

// MemoryLimiter 是进程内的固定窗口限流器。
// 单进程部署下够用；多实例部署时各实例独立计数，限流只在
// 实例内生效——这是已知的扩展边界，跨进程请使用 RedisLimiter。
type MemoryLimiter struct {
	mu        sync.Mutex
	entries   map[string]*windowEntry
	lastSweep time.Time

	// now 可注入，便于测试推进时间。
	now func() time.Time
}

type windowEntry struct {
	count       int
	windowStart time.Time
	window      time.Duration
}

// sweepInterval 控制过期 key 的清理频率。登录限流的 key 里带客户端 IP，
// 不清理的话 map 会随见过的 IP 单调膨胀。
const sweepInterval = time.Minute

// NewMemoryLimiter 构造空的内存限流器。
func NewMemoryLimiter() *MemoryLimiter {
	return &MemoryLimiter{
		entries: make(map[string]*windowEntry),
		now:     time.Now,
	}
}

// Allow 实现 Limiter。计数与判定在同一临界区内完成，单次调用不可分割。
func (l *MemoryLimiter) Allow(_ context.Context, key string, limit int, window time.Duration) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	l.sweep(now)

	entry, ok := l.entries[key]
	if !ok || now.Sub(entry.windowStart) >= window {
		l.entries[key] = &windowEntry{count: 1, windowStart: now, window: window}
		return true, nil
	}

	if entry.count >= limit {
		return false, nil
	}
	entry.count++
	return true, nil
}

// sweep 丢掉窗口已过期的条目。调用方必须持有 l.mu。
func (l *MemoryLimiter) sweep(now time.Time) {
	if now.Sub(l.lastSweep) < sweepInterval {
		return
	}
	l.lastSweep = now
	for key, entry := range l.entries {
		if now.Sub(entry.windowStart) >= entry.window {
			delete(l.entries, key)
		}
	}
}
