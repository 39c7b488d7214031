package ratelimit

import (
	"context"
	"errors"
	"math"
	"strconv"
	"time"

	redis "github.com/redis/go-redis/v9"
)

// takeTokens refills the bucket at KEYS[1] from the redis clock and takes
// ARGV[4] tokens when enough are available. Fractional values are returned
// as strings since redis truncates Lua numbers to integers.
//
// ARGV: rate (tokens/s), burst, ttl (ms), cost.
// Returns: {allowed, remaining, retry_after_ms}.
var takeTokens = redis.NewScript(`
local rate = tonumber(ARGV[1])
local burst = tonumber(ARGV[2])
local ttl = tonumber(ARGV[3])
local cost = tonumber(ARGV[4])

local t = redis.call("TIME")
local now = t[1] * 1000 + math.floor(t[2] / 1000)

local state = redis.call("HMGET", KEYS[1], "tokens", "ts")
local tokens = tonumber(state[1]) or burst
local last = tonumber(state[2]) or now
if now > last then
  tokens = math.min(burst, tokens + (now - last) / 1000 * rate)
end

local allowed = 0
local wait = 0
if tokens >= cost then
  allowed = 1
  tokens = tokens - cost
else
  wait = math.ceil((cost - tokens) / rate * 1000)
end

redis.call("HSET", KEYS[1], "tokens", tokens, "ts", now)
redis.call("PEXPIRE", KEYS[1], ttl)
return {allowed, tostring(tokens), wait}
`)

// TokenBucket is a redis-backed token bucket shared by every replica.
type TokenBucket struct {
	client *redis.Client
}

type RateLimitResult struct {
	Allowed    bool
	Limit      int
	Remaining  int
	RetryAfter time.Duration
}

func NewTokenBucket(client *redis.Client) *TokenBucket {
	if client == nil {
		return nil
	}
	return &TokenBucket{client: client}
}

// Allow takes a single token from key.
func (t *TokenBucket) Allow(ctx context.Context, key string, rate float64, burst int) (*RateLimitResult, error) {
	return t.Take(ctx, key, rate, burst, 1)
}

// Take takes cost tokens from key, refilling at rate per second up to burst.
func (t *TokenBucket) Take(ctx context.Context, key string, rate float64, burst, cost int) (*RateLimitResult, error) {
	switch {
	case t == nil || t.client == nil:
		return nil, errors.New("rate limiter not configured")
	case key == "":
		return nil, errors.New("rate limiter key is empty")
	case rate <= 0:
		return nil, errors.New("rate limiter rate must be positive")
	case burst <= 0:
		return nil, errors.New("rate limiter burst must be positive")
	case cost <= 0 || cost > burst:
		return nil, errors.New("rate limiter cost must be between 1 and burst")
	}

	ttl := defaultBucketTTL(rate, burst)
	res, err := takeTokens.Run(ctx, t.client, []string{key},
		rate, burst, ttl.Milliseconds(), cost,
	).Slice()
	if err != nil {
		return nil, err
	}
	return parseTakeReply(res, burst)
}

func parseTakeReply(res []any, burst int) (*RateLimitResult, error) {
	if len(res) != 3 {
		return nil, errors.New("invalid rate limit script response")
	}
	allowed, ok := res[0].(int64)
	if !ok {
		return nil, errors.New("invalid rate limit allowed flag")
	}
	remaining, err := replyFloat(res[1])
	if err != nil {
		return nil, err
	}
	waitMS, ok := res[2].(int64)
	if !ok {
		return nil, errors.New("invalid rate limit retry value")
	}

	return &RateLimitResult{
		Allowed:    allowed == 1,
		Limit:      burst,
		Remaining:  int(math.Floor(remaining)),
		RetryAfter: time.Duration(waitMS) * time.Millisecond,
	}, nil
}

func replyFloat(v any) (float64, error) {
	switch val := v.(type) {
	case string:
		return strconv.ParseFloat(val, 64)
	case int64:
		return float64(val), nil
	default:
		return 0, errors.New("invalid rate limit remaining value")
	}
}

// defaultBucketTTL keeps an idle bucket around for twice its full refill time.
func defaultBucketTTL(rate float64, burst int) time.Duration {
	if rate <= 0 || burst <= 0 {
		return time.Second
	}
	seconds := math.Max(1, math.Ceil(float64(burst)/rate*2))
	return time.Duration(seconds) * time.Second
}
