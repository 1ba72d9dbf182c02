package ratelimit

import (
	"context"
	"testing"
	"time"
)

func TestMemoryLimiterAllowsUpToLimit(t *testing.T) {
	l := NewMemoryLimiter()
	ctx := context.Background()

	for i := 0; i < 10; i++ {
		ok, err := l.Allow(ctx, "parse:1", 10, 10*time.Minute)
		if err != nil {
			t.Fatalf("Allow #%d: %v", i+1, err)
		}
		if !ok {
			t.Fatalf("request %d should be allowed", i+1)
		}
	}

	ok, err := l.Allow(ctx, "parse:1", 10, 10*time.Minute)
	if err != nil {
		t.Fatalf("Allow #11: %v", err)
	}
	if ok {
		t.Fatal("request 11 should be denied")
	}
}

func TestMemoryLimiterKeysAreIndependent(t *testing.T) {
	l := NewMemoryLimiter()
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if ok, _ := l.Allow(ctx, "parse:1", 3, time.Minute); !ok {
			t.Fatalf("user 1 request %d should be allowed", i+1)
		}
	}
	if ok, _ := l.Allow(ctx, "parse:1", 3, time.Minute); ok {
		t.Fatal("user 1 should be exhausted")
	}
	if ok, _ := l.Allow(ctx, "parse:2", 3, time.Minute); !ok {
		t.Fatal("user 2 should not be affected by user 1")
	}
}

func TestMemoryLimiterWindowReset(t *testing.T) {
	l := NewMemoryLimiter()
	ctx := context.Background()

	current := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	l.now = func() time.Time { return current }

	for i := 0; i < 2; i++ {
		if ok, _ := l.Allow(ctx, "parse:1", 2, 10*time.Minute); !ok {
			t.Fatalf("request %d should be allowed", i+1)
		}
	}
	if ok, _ := l.Allow(ctx, "parse:1", 2, 10*time.Minute); ok {
		t.Fatal("third request inside window should be denied")
	}

	current = current.Add(10 * time.Minute)
	if ok, _ := l.Allow(ctx, "parse:1", 2, 10*time.Minute); !ok {
		t.Fatal("request after window elapsed should be allowed")
	}
}

func TestMemoryLimiterEvictsStaleEntries(t *testing.T) {
	l := NewMemoryLimiter()
	ctx := context.Background()

	current := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	l.now = func() time.Time { return current }

	// 登录限流的 key 带客户端 IP，过期后必须被清掉，否则 map 只增不减
	if ok, _ := l.Allow(ctx, "login:203.0.113.7:alice", 10, time.Hour); !ok {
		t.Fatal("first login attempt should be allowed")
	}
	if ok, _ := l.Allow(ctx, "login:198.51.100.9:bob", 10, time.Hour); !ok {
		t.Fatal("second login attempt should be allowed")
	}
	if len(l.entries) != 2 {
		t.Fatalf("entries = %d, want 2", len(l.entries))
	}

	current = current.Add(2 * time.Hour)
	if ok, _ := l.Allow(ctx, "parse:1", 10, 10*time.Minute); !ok {
		t.Fatal("parse request should be allowed")
	}
	if len(l.entries) != 1 {
		t.Fatalf("stale login entries survived the sweep: %d entries", len(l.entries))
	}
	if _, ok := l.entries["parse:1"]; !ok {
		t.Fatal("active entry must survive the sweep")
	}
}
