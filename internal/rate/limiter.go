package rate

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Rule bounds one throttle scope: at most Max attempts per fixed Window.
type Rule struct {
	Max    int
	Window time.Duration
}

// Throttle enforces per-scope, per-key attempt ceilings using Redis
// fixed-window counters. Scopes ("login", "register", "mfa") are
// registered up front; unknown scopes pass unthrottled.
type Throttle struct {
	redis redis.UniversalClient
	rules map[string]Rule
}

// New creates a [Throttle] backed by the given Redis client.
func New(redisClient redis.UniversalClient, rules map[string]Rule) *Throttle {
	cloned := make(map[string]Rule, len(rules))
	for scope, rule := range rules {
		cloned[scope] = rule
	}
	return &Throttle{
		redis: redisClient,
		rules: cloned,
	}
}

// Allow counts one attempt against the scope's window and reports whether
// it fits the ceiling. Over the ceiling it returns a [*LimitError] whose
// RetryAfter is taken from the window key's remaining TTL.
func (t *Throttle) Allow(ctx context.Context, scope, key string) error {
	rule, ok := t.rules[scope]
	if !ok || key == "" {
		return nil
	}

	counterKey := windowKey(scope, key)

	count, err := t.redis.Incr(ctx, counterKey).Result()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}

	// Fixed-window semantics: the first hit opens the window.
	if count == 1 {
		if err := t.redis.Expire(ctx, counterKey, rule.Window).Err(); err != nil {
			return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
		}
	}

	if count <= int64(rule.Max) {
		return nil
	}

	retryAfter := rule.Window
	if ttl, err := t.redis.TTL(ctx, counterKey).Result(); err == nil && ttl > 0 {
		retryAfter = ttl
	}

	return &LimitError{Scope: scope, RetryAfter: retryAfter}
}

// Reset clears the scope's counter for the key.
func (t *Throttle) Reset(ctx context.Context, scope, key string) error {
	if err := t.redis.Del(ctx, windowKey(scope, key)).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return nil
}

// Attempts returns the current counter for the scope and key. A missing
// key reads as zero and does not reveal whether the subject exists.
func (t *Throttle) Attempts(ctx context.Context, scope, key string) (int, error) {
	count, err := t.redis.Get(ctx, windowKey(scope, key)).Int64()
	if err != nil {
		if err == redis.Nil {
			return 0, nil
		}
		return 0, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	if count < 0 {
		return 0, nil
	}
	return int(count), nil
}

func windowKey(scope, key string) string {
	return "rt:" + scope + ":" + key
}
