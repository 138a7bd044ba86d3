package ratelimit

import (
	"context"
	"errors"
	"strings"
	"time"

	"creator-playbook/internal/logger"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const defaultRedisPrefix = "playbook:ratelimit"

// KEYS[1] sorted set of admitted hits scored by unix ms.
// ARGV: now ms, window ms, limit, member.
var slidingLogScript = redis.NewScript(`
local now = tonumber(ARGV[1])
local window = tonumber(ARGV[2])
redis.call("ZREMRANGEBYSCORE", KEYS[1], "-inf", now - window)
if redis.call("ZCARD", KEYS[1]) >= tonumber(ARGV[3]) then
  return 0
end
redis.call("ZADD", KEYS[1], now, ARGV[4])
redis.call("PEXPIRE", KEYS[1], window)
return 1
`)

// RedisLimiter shares one sliding window per key across every API instance.
// Only admitted requests are recorded, so a caller that keeps hammering does
// not extend its own lockout.
type RedisLimiter struct {
	rdb    *redis.Client
	prefix string
	limit  int
	window time.Duration
	now    func() time.Time
}

func NewRedisLimiter(addr, password, prefix string, limit int, window time.Duration) (*RedisLimiter, error) {
	if limit <= 0 || window <= 0 {
		return nil, errors.New("rate limiter needs a positive limit and window")
	}
	if strings.TrimSpace(addr) == "" {
		return nil, errors.New("rate limiter redis addr is empty")
	}
	if prefix = strings.TrimSpace(prefix); prefix == "" {
		prefix = defaultRedisPrefix
	}

	return &RedisLimiter{
		rdb:    redis.NewClient(&redis.Options{Addr: strings.TrimSpace(addr), Password: password}),
		prefix: prefix,
		limit:  limit,
		window: window,
		now:    time.Now,
	}, nil
}

// Allow denies on any redis error.
func (l *RedisLimiter) Allow(key string) bool {
	if key = strings.TrimSpace(key); key == "" {
		key = "unknown"
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	args := []interface{}{
		l.now().UnixMilli(),
		l.window.Milliseconds(),
		l.limit,
		uuid.NewString(),
	}
	ok, err := slidingLogScript.Run(ctx, l.rdb, []string{l.prefix + ":" + key}, args...).Int()
	if err != nil {
		logger.Get().Warn("rate limiter redis error", zap.String("key", key), zap.Error(err))
		return false
	}
	return ok == 1
}

func (l *RedisLimiter) Close() error {
	return l.rdb.Close()
}
