// Package ratelimit throttles abuse-prone public endpoints per caller key.
package ratelimit

import (
	"time"

	"creator-playbook/internal/config"
)

// Limiter reports whether one more request for key fits its quota.
type Limiter interface {
	Allow(key string) bool
}

// New returns a redis-backed limiter when an address is configured and an
// in-process one otherwise. The in-process limiter is only correct for a
// single instance.
func New(cfg *config.RateLimit, name string, perMinute int) (Limiter, error) {
	if cfg.RedisAddr != "" {
		return NewRedisLimiter(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisPrefix+":"+name, perMinute, time.Minute)
	}
	return NewMemoryLimiter(perMinute, time.Minute), nil
}
