package ratelimit

import (
	"testing"
	"time"

	"creator-playbook/internal/config"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var start = time.Date(2026, time.October, 16, 12, 0, 0, 0, time.UTC)

// allowAt drives a limiter through requests at the given offsets from start.
func allowAt(l Limiter, setNow func(time.Time), key string, offsets ...time.Duration) []bool {
	got := make([]bool, 0, len(offsets))
	for _, off := range offsets {
		setNow(start.Add(off))
		got = append(got, l.Allow(key))
	}
	return got
}

func newTestRedisLimiter(t *testing.T, limit int) (*RedisLimiter, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	limiter, err := NewRedisLimiter(mr.Addr(), "", "test:ratelimit", limit, time.Minute)
	require.NoError(t, err)
	t.Cleanup(func() { _ = limiter.Close() })
	return limiter, mr
}

func TestLimitersBlockFourthRequestWithinAMinute(t *testing.T) {
	memory := NewMemoryLimiter(3, time.Minute)
	redisLimiter, _ := newTestRedisLimiter(t, 3)

	cases := map[string]struct {
		limiter Limiter
		setNow  func(time.Time)
	}{
		"memory": {memory, func(now time.Time) { memory.now = func() time.Time { return now } }},
		"redis":  {redisLimiter, func(now time.Time) { redisLimiter.now = func() time.Time { return now } }},
	}

	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			burst := allowAt(tc.limiter, tc.setNow, "203.0.113.7", 0, 0, 0, 0)
			assert.Equal(t, []bool{true, true, true, false}, burst)

			spaced := allowAt(tc.limiter, tc.setNow, "198.51.100.1", 0, 0, 0, 25*time.Second, 45*time.Second)
			assert.Equal(t, []bool{true, true, true, false, false}, spaced, "spacing requests out does not refill the quota")

			// a window that straddles a minute boundary still holds three
			straddle := allowAt(tc.limiter, tc.setNow, "192.0.2.5", 50*time.Second, 55*time.Second, 58*time.Second, 62*time.Second, 70*time.Second)
			assert.Equal(t, []bool{true, true, true, false, false}, straddle)

			again := allowAt(tc.limiter, tc.setNow, "198.51.100.1", time.Minute+time.Millisecond)
			assert.Equal(t, []bool{true}, again, "the oldest hits age out after a full window")
		})
	}
}

func TestLimitersKeepQuotaPerKey(t *testing.T) {
	limiter, _ := newTestRedisLimiter(t, 1)
	limiter.now = func() time.Time { return start }

	assert.True(t, limiter.Allow("ip-1"))
	assert.False(t, limiter.Allow("ip-1"))
	assert.True(t, limiter.Allow("ip-2"))
}

func TestRedisLimiterDeniedRequestsDoNotExtendLockout(t *testing.T) {
	limiter, _ := newTestRedisLimiter(t, 1)
	setNow := func(now time.Time) { limiter.now = func() time.Time { return now } }

	got := allowAt(limiter, setNow, "ip-1", 0, 30*time.Second, 59*time.Second, time.Minute+time.Second)
	assert.Equal(t, []bool{true, false, false, true}, got)
}

func TestRedisLimiterFailsClosed(t *testing.T) {
	limiter, mr := newTestRedisLimiter(t, 1)

	mr.Close()
	assert.False(t, limiter.Allow("ip-1"))
}

func TestRedisLimiterRequiresAddr(t *testing.T) {
	limiter, err := NewRedisLimiter("", "", "test:ratelimit", 1, time.Second)
	assert.Error(t, err)
	assert.Nil(t, limiter)
}

func TestMemoryLimiterEvictsIdleKeys(t *testing.T) {
	limiter := NewMemoryLimiter(3, time.Minute)
	now := start
	limiter.now = func() time.Time { return now }

	limiter.Allow("a")
	limiter.Allow("b")
	assert.Equal(t, 2, limiter.size())

	now = now.Add(2 * time.Minute)
	limiter.Allow("c")
	assert.Equal(t, 1, limiter.size())
}

func TestNewPicksBackend(t *testing.T) {
	l, err := New(&config.RateLimit{}, "register", 3)
	require.NoError(t, err)
	assert.IsType(t, &MemoryLimiter{}, l)

	mr := miniredis.RunT(t)
	l, err = New(&config.RateLimit{RedisAddr: mr.Addr(), RedisPrefix: "test"}, "register", 3)
	require.NoError(t, err)
	assert.IsType(t, &RedisLimiter{}, l)
}
