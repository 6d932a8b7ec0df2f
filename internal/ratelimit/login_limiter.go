package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/13g7895123/crm-questionnaire-sub001/pkg/logger"
)

// LoginLimiterConfig holds the fixed-window limits for login attempts
type LoginLimiterConfig struct {
	MaxAttempts int
	Window      time.Duration
}

// DefaultLoginLimiterConfig returns the default limits
func DefaultLoginLimiterConfig() *LoginLimiterConfig {
	return &LoginLimiterConfig{
		MaxAttempts: 10,
		Window:      5 * time.Minute,
	}
}

// LoginLimiter throttles login attempts per username and source IP using a
// fixed window in Redis. Redis being unreachable fails open: a throttling
// outage must not lock every user out.
type LoginLimiter struct {
	client *redis.Client
	config *LoginLimiterConfig
	log    *logger.Logger
}

// NewLoginLimiter creates a LoginLimiter
func NewLoginLimiter(client *redis.Client, cfg *LoginLimiterConfig) *LoginLimiter {
	if cfg == nil {
		cfg = DefaultLoginLimiterConfig()
	}
	return &LoginLimiter{
		client: client,
		config: cfg,
		log:    logger.Get(),
	}
}

func (l *LoginLimiter) key(username, ip string) string {
	return fmt.Sprintf("login_attempts:%s:%s", username, ip)
}

// Allow reports whether another login attempt is permitted and records the
// attempt
func (l *LoginLimiter) Allow(ctx context.Context, username, ip string) bool {
	key := l.key(username, ip)

	count, err := l.client.Incr(ctx, key).Result()
	if err != nil {
		l.log.Warn("login limiter unavailable", zap.Error(err))
		return true
	}

	if count == 1 {
		if err := l.client.Expire(ctx, key, l.config.Window).Err(); err != nil {
			l.log.Warn("failed to set limiter window", zap.Error(err))
		}
	}

	return count <= int64(l.config.MaxAttempts)
}

// Reset clears the attempt counter after a successful login
func (l *LoginLimiter) Reset(ctx context.Context, username, ip string) {
	if err := l.client.Del(ctx, l.key(username, ip)).Err(); err != nil {
		l.log.Warn("failed to reset login limiter", zap.Error(err))
	}
}
