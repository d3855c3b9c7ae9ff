// Package redis provides Redis-backed coordination adapters: the on-demand enqueue
// rate limit and the scheduler leader lease.
package redis

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/target/integrations-dispatch/internal/ports"
)

// tokenBucket refills at ARGV[1] tokens per second up to ARGV[2] and takes one
// token when available. ARGV[3] is the caller's clock in milliseconds.
var tokenBucket = redis.NewScript(`
local rate = tonumber(ARGV[1])
local burst = tonumber(ARGV[2])
local now = tonumber(ARGV[3])
local ttl = tonumber(ARGV[4])

local state = redis.call('HMGET', KEYS[1], 'tokens', 'ts')
local tokens = tonumber(state[1])
local ts = tonumber(state[2])
if tokens == nil or ts == nil then
  tokens = burst
  ts = now
end

local elapsed = now - ts
if elapsed < 0 then
  elapsed = 0
end
tokens = math.min(burst, tokens + (elapsed * rate / 1000))

local allowed = 0
if tokens >= 1 then
  tokens = tokens - 1
  allowed = 1
end

redis.call('HSET', KEYS[1], 'tokens', tostring(tokens), 'ts', tostring(now))
redis.call('PEXPIRE', KEYS[1], ttl)
return allowed
`)

var _ ports.RateLimiter = (*TokenBucketLimiter)(nil)

// LimiterOptions configures TokenBucketLimiter.
type LimiterOptions struct {
	Client redis.UniversalClient // Required
	Rate   float64               // Tokens per second; must be positive
	Burst  int                   // Bucket capacity; defaults to 1
	Prefix string                // Key prefix; defaults to "dispatch:ratelimit:"
	Now    func() time.Time      // Optional clock for tests
}

// TokenBucketLimiter is a per-key token bucket kept in a Redis hash so every replica
// draws from the same budget.
type TokenBucketLimiter struct {
	client redis.UniversalClient
	rate   float64
	burst  int
	prefix string
	ttl    time.Duration
	now    func() time.Time
}

// NewTokenBucketLimiter validates opts and builds the limiter.
func NewTokenBucketLimiter(opts LimiterOptions) (*TokenBucketLimiter, error) {
	if opts.Client == nil {
		return nil, errors.New("redis client is required")
	}
	if opts.Rate <= 0 || math.IsInf(opts.Rate, 0) || math.IsNaN(opts.Rate) {
		return nil, fmt.Errorf("rate must be a positive number, got %v", opts.Rate)
	}
	burst := max(opts.Burst, 1)
	prefix := opts.Prefix
	if prefix == "" {
		prefix = "dispatch:ratelimit:"
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	// An idle bucket is full again after burst/rate seconds; keep it a little longer.
	refill := time.Duration(float64(burst) / opts.Rate * float64(time.Second))
	return &TokenBucketLimiter{
		client: opts.Client,
		rate:   opts.Rate,
		burst:  burst,
		prefix: prefix,
		ttl:    max(2*refill, time.Second),
		now:    now,
	}, nil
}

// Allow takes one token from key's bucket.
func (l *TokenBucketLimiter) Allow(ctx context.Context, key string) (bool, error) {
	res, err := tokenBucket.Run(ctx, l.client, []string{l.prefix + key},
		strconv.FormatFloat(l.rate, 'f', -1, 64),
		l.burst,
		l.now().UnixMilli(),
		l.ttl.Milliseconds(),
	).Int()
	if err != nil {
		return false, fmt.Errorf("redis rate limit: %w", err)
	}
	return res == 1, nil
}
