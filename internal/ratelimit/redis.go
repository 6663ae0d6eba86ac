package ratelimit

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

const keyPrefix = "natours:ratelimit:"

const tokenBucketLua = `
local key = KEYS[1]
local rate = tonumber(ARGV[1])
local burst = tonumber(ARGV[2])
local now = tonumber(ARGV[3])

local data = redis.call("HMGET", key, "tokens", "ts")
local tokens = tonumber(data[1])
local ts = tonumber(data[2])
if tokens == nil then
  tokens = burst
end
if ts == nil then
  ts = now
end

local delta = math.max(0, now - ts)
tokens = math.min(burst, tokens + (delta * rate) / 1000.0)

local allowed = 0
local wait_ms = 0
if tokens >= 1 then
  tokens = tokens - 1
  allowed = 1
else
  wait_ms = math.ceil((1 - tokens) * 1000.0 / rate)
end

redis.call("HMSET", key, "tokens", tostring(tokens), "ts", now)
redis.call("PEXPIRE", key, math.ceil((burst / rate) * 1000.0 * 2))

return {allowed, wait_ms}
`

// RedisLimiter shares buckets between server instances.
type RedisLimiter struct {
	rdb    *redis.Client
	cfg    Config
	now    func() time.Time
	script *redis.Script
}

func NewRedisLimiter(rdb *redis.Client, cfg Config, now func() time.Time) *RedisLimiter {
	if now == nil {
		now = time.Now
	}
	return &RedisLimiter{rdb: rdb, cfg: cfg, now: now, script: redis.NewScript(tokenBucketLua)}
}

func (l *RedisLimiter) Allow(ctx context.Context, key string) (Result, error) {
	perSecond := l.cfg.perSecond()
	if l.cfg.Requests <= 0 || perSecond <= 0 {
		return Result{Allowed: true}, nil
	}

	res, err := l.script.Run(ctx, l.rdb, []string{keyPrefix + key},
		perSecond, l.cfg.Requests, l.now().UnixMilli()).Result()
	if err != nil {
		return Result{}, fmt.Errorf("ratelimit eval: %w", err)
	}

	values, ok := res.([]any)
	if !ok || len(values) < 2 {
		return Result{}, fmt.Errorf("ratelimit: unexpected result %v", res)
	}

	if toInt64(values[0]) == 1 {
		return Result{Allowed: true}, nil
	}
	return Result{RetryAfter: time.Duration(toInt64(values[1])) * time.Millisecond}, nil
}

func toInt64(v any) int64 {
	switch t := v.(type) {
	case int64:
		return t
	case int:
		return int64(t)
	case string:
		n, _ := strconv.ParseInt(t, 10, 64)
		return n
	}
	return 0
}
