package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func TestRedisLimiter(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()

	limiter, err := NewRedisLimiter(client, "test:ratelimit", 2, time.Hour)
	if err != nil {
		t.Fatalf("new redis limiter: %v", err)
	}
	ctx := context.Background()
	if !limiter.Allow(ctx, "user-1") || !limiter.Allow(ctx, "user-1") {
		t.Fatalf("first two requests should pass")
	}
	if limiter.Allow(ctx, "user-1") {
		t.Fatalf("third request should be blocked")
	}
	if !limiter.Allow(ctx, "user-2") {
		t.Fatalf("keys must not share a quota")
	}
}

func TestRedisLimiterFailsClosed(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr(), MaxRetries: -1})
	defer client.Close()

	limiter, err := NewRedisLimiter(client, "", 1, time.Hour)
	if err != nil {
		t.Fatalf("new redis limiter: %v", err)
	}
	mr.Close()
	if limiter.Allow(context.Background(), "user-1") {
		t.Fatalf("limiter should fail closed on redis errors")
	}
}

func TestRedisLimiterValidates(t *testing.T) {
	if _, err := NewRedisLimiter(nil, "", 1, time.Second); err == nil {
		t.Fatalf("expected error for missing client")
	}
	if _, err := NewRedisLimiter(redis.NewClient(&redis.Options{}), "", 0, time.Second); err == nil {
		t.Fatalf("expected error for zero limit")
	}
}

func TestMemoryLimiter(t *testing.T) {
	l := NewMemoryLimiter(2, time.Hour)
	ctx := context.Background()
	if !l.Allow(ctx, "k") || !l.Allow(ctx, "k") || l.Allow(ctx, "k") {
		t.Fatalf("memory limiter should allow exactly two requests")
	}

	short := NewMemoryLimiter(1, 10*time.Millisecond)
	_ = short.Allow(ctx, "k")
	time.Sleep(20 * time.Millisecond)
	if !short.Allow(ctx, "k") {
		t.Fatalf("window should reset")
	}
}
