package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
)

type fakeCounter struct {
	counts  map[string]int64
	expires map[string]time.Duration
}

func newFakeCounter() *fakeCounter {
	return &fakeCounter{counts: map[string]int64{}, expires: map[string]time.Duration{}}
}

func (f *fakeCounter) Incr(ctx context.Context, key string) *redis.IntCmd {
	f.counts[key]++
	cmd := redis.NewIntCmd(ctx)
	cmd.SetVal(f.counts[key])
	return cmd
}

func (f *fakeCounter) Expire(ctx context.Context, key string, expiration time.Duration) *redis.BoolCmd {
	f.expires[key] = expiration
	cmd := redis.NewBoolCmd(ctx)
	cmd.SetVal(true)
	return cmd
}

func TestRedisLimiterCountsPerKey(t *testing.T) {
	counter := newFakeCounter()
	l := &RedisLimiter{client: counter, prefix: "rate"}
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		ok, err := l.Allow(ctx, "parse:1", 3, 10*time.Minute)
		if err != nil {
			t.Fatalf("Allow #%d: %v", i+1, err)
		}
		if !ok {
			t.Fatalf("request %d should be allowed", i+1)
		}
	}
	if ok, _ := l.Allow(ctx, "parse:1", 3, 10*time.Minute); ok {
		t.Fatal("request over limit should be denied")
	}
	if ok, _ := l.Allow(ctx, "parse:2", 3, 10*time.Minute); !ok {
		t.Fatal("other keys must be unaffected")
	}
}

func TestRedisLimiterSetsWindowOnFirstHit(t *testing.T) {
	counter := newFakeCounter()
	l := &RedisLimiter{client: counter, prefix: "rate"}

	_, _ = l.Allow(context.Background(), "parse:1", 10, 10*time.Minute)
	if got := counter.expires["rate:parse:1"]; got != 10*time.Minute {
		t.Fatalf("expire = %v, want 10m", got)
	}

	_, _ = l.Allow(context.Background(), "parse:1", 10, 10*time.Minute)
	if len(counter.expires) != 1 {
		t.Fatal("expire must only be set on the first increment")
	}
}
