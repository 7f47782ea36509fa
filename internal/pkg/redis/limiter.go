package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/insightloop/reportd/internal/pkg/config"
)

// attempt counter: atomically increment and set the window expiry on first hit
var attemptScript = redis.NewScript(`
	local count = redis.call('INCR', KEYS[1])
	if count == 1 then
		redis.call('PEXPIRE', KEYS[1], ARGV[1])
	end
	return count
`)

// Limiter throttles anonymous access attempts per client key.
type Limiter struct {
	client      *redis.Client
	log         *zap.Logger
	maxAttempts int
	window      time.Duration
}

// NewLimiter connects to redis and returns an attempt limiter
func NewLimiter(cfg *config.Config) (*Limiter, error) {
	client := redis.NewClient(&redis.Options{
		Addr: cfg.GetRedisAddr(),
		DB:   cfg.RedisService.DB,
	})

	if err := client.Ping(context.Background()).Err(); err != nil {
		client.Close()
		return nil, err
	}

	log := zap.L().With(zap.String("component", "redis"))
	log.Info("Redis connected successfully",
		zap.String("addr", cfg.GetRedisAddr()))

	return &Limiter{
		client:      client,
		log:         log,
		maxAttempts: cfg.AccessLimits.MaxAttempts,
		window:      cfg.AccessWindow(),
	}, nil
}

// Allow records one attempt for key and reports whether it is within the limit
func (l *Limiter) Allow(ctx context.Context, key string) (bool, error) {
	if l == nil || l.client == nil {
		return false, fmt.Errorf("redis client not initialized")
	}

	redisKey := fmt.Sprintf("access_attempts:%s", key)
	count, err := attemptScript.Run(ctx, l.client, []string{redisKey}, l.window.Milliseconds()).Int()
	if err != nil {
		return false, err
	}

	if count > l.maxAttempts {
		l.log.Warn("Access attempt limit exceeded",
			zap.String("key", key),
			zap.Int("count", count))
		return false, nil
	}

	return true, nil
}

// Close closes the redis connection
func (l *Limiter) Close() error {
	if l != nil && l.client != nil {
		return l.client.Close()
	}
	return nil
}
