package middleware

import (
	"context"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/hashicorp/golang-lru/v2/expirable"
	"golang.org/x/time/rate"
)

const maxTrackedClients = 10000

// MemoryLimiter is a per-key token bucket refilled at limit per window.
type MemoryLimiter struct {
	limit   int
	window  time.Duration
	buckets *expirable.LRU[string, *rate.Limiter]
}

func NewMemoryLimiter(limit int, window time.Duration) *MemoryLimiter {
	if window <= 0 {
		window = time.Minute
	}
	return &MemoryLimiter{
		limit:   limit,
		window:  window,
		buckets: expirable.NewLRU[string, *rate.Limiter](maxTrackedClients, nil, 2*window),
	}
}

func (m *MemoryLimiter) Limit() int { return m.limit }

func (m *MemoryLimiter) Allow(_ context.Context, key string) (Decision, error) {
	if m.limit <= 0 {
		return Decision{Allowed: true}, nil
	}
	lim, ok := m.buckets.Get(key)
	if !ok {
		lim = rate.NewLimiter(rate.Every(m.window/time.Duration(m.limit)), m.limit)
		m.buckets.Add(key, lim)
	}
	now := time.Now()
	allowed := lim.AllowN(now, 1)
	tokens := lim.TokensAt(now)
	resetIn := time.Duration(0)
	if tokens < 1 {
		resetIn = time.Duration((1 - tokens) * float64(m.window) / float64(m.limit))
	}
	return Decision{Allowed: allowed, Remaining: int(tokens), ResetIn: resetIn}, nil
}

// RedisLimiter is a fixed-window counter shared by every replica.
type RedisLimiter struct {
	client redis.Cmdable
	limit  int
	window time.Duration
	prefix string
}

func NewRedisLimiter(client redis.Cmdable, limit int, window time.Duration) *RedisLimiter {
	if window <= 0 {
		window = time.Minute
	}
	return &RedisLimiter{client: client, limit: limit, window: window, prefix: "payroll:ratelimit:"}
}

func (l *RedisLimiter) Limit() int { return l.limit }

func (l *RedisLimiter) Allow(ctx context.Context, key string) (Decision, error) {
	redisKey := l.prefix + key
	count, err := l.client.Incr(ctx, redisKey).Result()
	if err != nil {
		return Decision{}, err
	}
	resetIn := l.window
	if count == 1 {
		if err := l.client.Expire(ctx, redisKey, l.window).Err(); err != nil {
			return Decision{}, err
		}
	} else {
		ttl, err := l.client.PTTL(ctx, redisKey).Result()
		if err != nil {
			return Decision{}, err
		}
		if ttl > 0 {
			resetIn = ttl
		} else {
			// counter lost its expiry
			_ = l.client.Expire(ctx, redisKey, l.window).Err()
		}
	}
	return Decision{
		Allowed:   count <= int64(l.limit),
		Remaining: l.limit - int(count),
		ResetIn:   resetIn,
	}, nil
}
