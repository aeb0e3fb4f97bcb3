package redis

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// トークンバケットの補充と消費をアトミックに行う
var tokenBucketScript = redis.NewScript(`
	local key = KEYS[1]
	local now_ms = tonumber(ARGV[1])
	local capacity = tonumber(ARGV[2])
	local refill_tokens = tonumber(ARGV[3])
	local interval_ms = tonumber(ARGV[4])
	local ttl_seconds = tonumber(ARGV[5])

	local state = redis.call('HMGET', key, 'tokens', 'last_refill_ms')
	local tokens = tonumber(state[1])
	local last_refill = tonumber(state[2])

	if tokens == nil or last_refill == nil then
		tokens = capacity
		last_refill = now_ms
	end

	if interval_ms > 0 and refill_tokens > 0 then
		local elapsed = math.max(0, now_ms - last_refill)
		local intervals = math.floor(elapsed / interval_ms)
		if intervals > 0 then
			tokens = math.min(capacity, tokens + (intervals * refill_tokens))
			last_refill = last_refill + (intervals * interval_ms)
		end
	end

	local allowed = 0
	local retry_after_ms = 0
	if tokens > 0 then
		allowed = 1
		tokens = tokens - 1
	else
		retry_after_ms = interval_ms - (now_ms - last_refill)
		if retry_after_ms < 0 then retry_after_ms = 0 end
	end

	redis.call('HSET', key, 'tokens', tokens, 'last_refill_ms', last_refill)
	redis.call('EXPIRE', key, ttl_seconds)

	return { allowed, tokens, retry_after_ms }
`)

// RateLimitResult はレート制限の判定結果
type RateLimitResult struct {
	Allowed    bool
	Remaining  int64
	RetryAfter time.Duration
}

// RateLimiterInterface はレート制限を抽象化する
type RateLimiterInterface interface {
	Allow(ctx context.Context, key string) (*RateLimitResult, error)
	Limit() int
}

var _ RateLimiterInterface = (*TokenBucketLimiter)(nil)

// TokenBucketLimiter は Redis 上のトークンバケットでレート制限する
type TokenBucketLimiter struct {
	client         *redis.Client
	capacity       int
	refillTokens   int
	refillInterval time.Duration
	ttl            time.Duration
}

// NewTokenBucketLimiter は新しいTokenBucketLimiterを作成する
func NewTokenBucketLimiter(client *redis.Client, capacity, refillTokens int, refillInterval, ttl time.Duration) *TokenBucketLimiter {
	return &TokenBucketLimiter{
		client:         client,
		capacity:       capacity,
		refillTokens:   refillTokens,
		refillInterval: refillInterval,
		ttl:            ttl,
	}
}

// Limit はバケットの容量を返す
func (l *TokenBucketLimiter) Limit() int {
	return l.capacity
}

// Allow はトークンを1つ消費できるかを判定する
func (l *TokenBucketLimiter) Allow(ctx context.Context, key string) (*RateLimitResult, error) {
	ttlSeconds := int64(l.ttl / time.Second)
	if ttlSeconds < 1 {
		ttlSeconds = 1
	}
	vals, err := tokenBucketScript.Run(ctx, l.client, []string{key},
		time.Now().UnixMilli(),
		l.capacity,
		l.refillTokens,
		l.refillInterval.Milliseconds(),
		ttlSeconds,
	).Slice()
	if err != nil {
		return nil, fmt.Errorf("レート制限の判定に失敗: %w", err)
	}
	if len(vals) != 3 {
		return nil, fmt.Errorf("レート制限スクリプトの戻り値が不正です: %v", vals)
	}

	return &RateLimitResult{
		Allowed:    asInt64(vals[0]) == 1,
		Remaining:  asInt64(vals[1]),
		RetryAfter: time.Duration(asInt64(vals[2])) * time.Millisecond,
	}, nil
}

func asInt64(v interface{}) int64 {
	switch t := v.(type) {
	case int64:
		return t
	case int:
		return int64(t)
	case float64:
		return int64(t)
	case string:
		if n, err := strconv.ParseInt(t, 10, 64); err == nil {
			return n
		}
	}
	return 0
}
