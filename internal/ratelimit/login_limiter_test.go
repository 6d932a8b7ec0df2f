package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func newTestLimiter(t *testing.T, cfg *LoginLimiterConfig) (*LoginLimiter, *miniredis.Miniredis) {
	t.Helper()

	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("failed to start miniredis: %v", err)
	}
	t.Cleanup(mr.Close)

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	return NewLoginLimiter(client, cfg), mr
}

func TestAllow_UnderLimit(t *testing.T) {
	limiter, _ := newTestLimiter(t, &LoginLimiterConfig{MaxAttempts: 3, Window: time.Minute})
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if !limiter.Allow(ctx, "alice", "10.0.0.1") {
			t.Fatalf("Attempt %d should be allowed", i+1)
		}
	}
	if limiter.Allow(ctx, "alice", "10.0.0.1") {
		t.Error("Attempt over the limit should be denied")
	}
}

func TestAllow_KeyedByUsernameAndIP(t *testing.T) {
	limiter, _ := newTestLimiter(t, &LoginLimiterConfig{MaxAttempts: 1, Window: time.Minute})
	ctx := context.Background()

	if !limiter.Allow(ctx, "alice", "10.0.0.1") {
		t.Fatal("First attempt should be allowed")
	}
	if limiter.Allow(ctx, "alice", "10.0.0.1") {
		t.Error("Second attempt for same user/IP should be denied")
	}
	if !limiter.Allow(ctx, "alice", "10.0.0.2") {
		t.Error("Different IP should have its own window")
	}
	if !limiter.Allow(ctx, "bob", "10.0.0.1") {
		t.Error("Different user should have its own window")
	}
}

func TestAllow_WindowExpires(t *testing.T) {
	limiter, mr := newTestLimiter(t, &LoginLimiterConfig{MaxAttempts: 1, Window: time.Minute})
	ctx := context.Background()

	limiter.Allow(ctx, "alice", "10.0.0.1")
	if limiter.Allow(ctx, "alice", "10.0.0.1") {
		t.Fatal("Second attempt should be denied")
	}

	mr.FastForward(2 * time.Minute)

	if !limiter.Allow(ctx, "alice", "10.0.0.1") {
		t.Error("Attempt after window expiry should be allowed")
	}
}

func TestReset(t *testing.T) {
	limiter, _ := newTestLimiter(t, &LoginLimiterConfig{MaxAttempts: 1, Window: time.Minute})
	ctx := context.Background()

	limiter.Allow(ctx, "alice", "10.0.0.1")
	limiter.Reset(ctx, "alice", "10.0.0.1")

	if !limiter.Allow(ctx, "alice", "10.0.0.1") {
		t.Error("Attempt after reset should be allowed")
	}
}

func TestAllow_FailsOpenWhenRedisDown(t *testing.T) {
	limiter, mr := newTestLimiter(t, &LoginLimiterConfig{MaxAttempts: 1, Window: time.Minute})
	mr.Close()

	// A throttling outage must not lock every user out
	if !limiter.Allow(context.Background(), "alice", "10.0.0.1") {
		t.Error("Expected fail-open when redis is unreachable")
	}
}
