package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/GoPolymarket/paperbot/internal/config"
	"github.com/GoPolymarket/paperbot/internal/pkg/logger"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

func NewRedisClient(cfg *config.Config) (*redis.Client, error) {
	if cfg.Redis.Addr == "" {
		return nil, fmt.Errorf("redis address is empty")
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}
	return rdb, nil
}

// slidingWindowScript drops members older than the window, then admits the
// request only while fewer than max members remain.
// KEYS[1]=key ARGV: now_ms, window_ms, max, member
var slidingWindowScript = redis.NewScript(`
local key = KEYS[1]
local now = tonumber(ARGV[1])
local window = tonumber(ARGV[2])
local max = tonumber(ARGV[3])
redis.call('ZREMRANGEBYSCORE', key, '-inf', '(' .. (now - window))
if redis.call('ZCARD', key) >= max then
  return 0
end
redis.call('ZADD', key, now, ARGV[4])
redis.call('PEXPIRE', key, window)
return 1
`)

// WindowLimiter admits or rejects one request for key.
type WindowLimiter interface {
	Allow(ctx context.Context, key string) (bool, error)
}

// RedisWindowLimiter shares the sliding window across replicas. When Redis
// fails the decision is delegated to fallback.
type RedisWindowLimiter struct {
	client   *redis.Client
	prefix   string
	window   time.Duration
	max      int
	fallback WindowLimiter
	now      func() time.Time
}

func NewRedisWindowLimiter(client *redis.Client, prefix string, window time.Duration, max int, fallback WindowLimiter) *RedisWindowLimiter {
	return &RedisWindowLimiter{
		client:   client,
		prefix:   prefix,
		window:   window,
		max:      max,
		fallback: fallback,
		now:      time.Now,
	}
}

func (l *RedisWindowLimiter) Allow(ctx context.Context, key string) (bool, error) {
	res, err := slidingWindowScript.Run(ctx, l.client,
		[]string{l.prefix + key},
		l.now().UnixMilli(), l.window.Milliseconds(), l.max, uuid.NewString(),
	).Int()
	if err != nil {
		if l.fallback == nil {
			return false, fmt.Errorf("redis rate limit: %w", err)
		}
		logger.Warn("Redis rate limiter unavailable, using local window", "error", err)
		return l.fallback.Allow(ctx, key)
	}
	return res == 1, nil
}
