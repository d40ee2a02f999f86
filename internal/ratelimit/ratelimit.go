// Package ratelimit implements fixed-window admission control backed by a
// shared counter store, so quota holds across concurrent service instances.
package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Counter atomically increments an identity's window counter. The first
// increment of a window arms its expiry; reset reports the time left until
// the window rolls over. Increment-and-read must be a single atomic step:
// a read-modify-write here would over-admit under concurrency.
type Counter interface {
	Incr(ctx context.Context, key string, window time.Duration) (count int64, reset time.Duration, err error)
}

// incrScript keeps INCR, PEXPIRE and PTTL in one server-side step. PTTL from
// the same script means the advertised retry-after matches the key's real
// expiry even when concurrent callers race on the first increment.
var incrScript = redis.NewScript(`
local count = redis.call("INCR", KEYS[1])
if count == 1 then
  redis.call("PEXPIRE", KEYS[1], ARGV[1])
end
local ttl = redis.call("PTTL", KEYS[1])
return {count, ttl}
`)

type RedisCounter struct {
	client redis.Scripter
}

func NewRedisCounter(client redis.Scripter) *RedisCounter {
	return &RedisCounter{client: client}
}

func (c *RedisCounter) Incr(ctx context.Context, key string, window time.Duration) (int64, time.Duration, error) {
	res, err := incrScript.Run(ctx, c.client, []string{key}, window.Milliseconds()).Result()
	if err != nil {
		return 0, 0, err
	}

	arr, ok := res.([]any)
	if !ok || len(arr) != 2 {
		return 0, 0, fmt.Errorf("unexpected redis eval result: %T %v", res, res)
	}

	// A malformed element must surface as an error; a zero count would read
	// as an admission.
	count, ok := arr[0].(int64)
	ttlMs, ok2 := arr[1].(int64)
	if !ok || !ok2 {
		return 0, 0, fmt.Errorf("unexpected redis eval result: %T %v", res, res)
	}
	if ttlMs < 0 {
		ttlMs = window.Milliseconds()
	}
	return count, time.Duration(ttlMs) * time.Millisecond, nil
}

// Decision is the outcome of one admission check.
type Decision struct {
	Allowed    bool
	Count      int64
	RetryAfter time.Duration
}

type Limiter struct {
	counter   Counter
	opTimeout time.Duration
}

func NewLimiter(counter Counter, opTimeout time.Duration) *Limiter {
	return &Limiter{counter: counter, opTimeout: opTimeout}
}

// Allow bills one request against key's window and compares against limit.
// The count already includes this request, so count <= limit admits exactly
// limit requests per window regardless of interleaving.
func (l *Limiter) Allow(ctx context.Context, key string, limit int, window time.Duration) (Decision, error) {
	if l.opTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, l.opTimeout)
		defer cancel()
	}

	count, reset, err := l.counter.Incr(ctx, key, window)
	if err != nil {
		return Decision{}, err
	}

	if count > int64(limit) {
		return Decision{Allowed: false, Count: count, RetryAfter: reset}, nil
	}
	return Decision{Allowed: true, Count: count, RetryAfter: reset}, nil
}
