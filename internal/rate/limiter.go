package rate

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Policy is a named fixed-window budget.
type Policy struct {
	Name   string
	Limit  int
	Window time.Duration
}

// Decision is the outcome of one Check.
type Decision struct {
	Allowed    bool
	RetryAfter time.Duration
}

// Limiter enforces fixed-window budgets with Redis counters. Each Check
// consumes one unit of the window.
type Limiter struct {
	redis  redis.UniversalClient
	prefix string
}

// New creates a rate [Limiter] backed by the given Redis client. Keys are
// namespaced under prefix.
func New(redisClient redis.UniversalClient, prefix string) *Limiter {
	if prefix == "" {
		prefix = "rl"
	}
	return &Limiter{
		redis:  redisClient,
		prefix: prefix,
	}
}

// Check consumes one attempt for key under policy. A disabled policy
// (non-positive limit or window) always allows.
func (l *Limiter) Check(ctx context.Context, key string, policy Policy) (Decision, error) {
	if policy.Limit <= 0 || policy.Window <= 0 {
		return Decision{Allowed: true}, nil
	}

	k := l.key(policy.Name, key)
	count, err := l.incrementWithTTL(ctx, k, policy.Window)
	if err != nil {
		return Decision{}, err
	}
	if count <= int64(policy.Limit) {
		return Decision{Allowed: true}, nil
	}

	ttl, err := l.redis.PTTL(ctx, k).Result()
	if err != nil {
		return Decision{}, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	if ttl < 0 {
		ttl = policy.Window
	}
	return Decision{Allowed: false, RetryAfter: ttl}, nil
}

// Reset clears the window for key under policy.
func (l *Limiter) Reset(ctx context.Context, key string, policy Policy) error {
	if err := l.redis.Del(ctx, l.key(policy.Name, key)).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return nil
}

func (l *Limiter) key(policy, key string) string {
	return l.prefix + ":" + policy + ":" + key
}

func (l *Limiter) incrementWithTTL(ctx context.Context, key string, ttl time.Duration) (int64, error) {
	count, err := l.redis.Incr(ctx, key).Result()
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}

	// Fixed-window semantics: set TTL only for the first hit in the window.
	if count == 1 {
		if err := l.redis.PExpire(ctx, key, ttl).Err(); err != nil {
			return 0, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
		}
	}

	return count, nil
}
