package ratelimit

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

// memCounter is an in-memory Counter with the same contract as the redis
// script: increment and window reset come back from one atomic step, the
// first increment arms the window, and the counter vanishes once the window
// elapses on the fake clock.
type memCounter struct {
	mu      sync.Mutex
	now     time.Time
	entries map[string]*counterEntry
	failing bool
}

type counterEntry struct {
	count   int64
	resetAt time.Time
}

func newMemCounter() *memCounter {
	return &memCounter{
		now:     time.Unix(0, 0),
		entries: make(map[string]*counterEntry),
	}
}

func (c *memCounter) advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func (c *memCounter) Incr(ctx context.Context, key string, window time.Duration) (int64, time.Duration, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.failing {
		return 0, 0, errors.New("counter down")
	}
	e, ok := c.entries[key]
	if !ok || !c.now.Before(e.resetAt) {
		e = &counterEntry{resetAt: c.now.Add(window)}
		c.entries[key] = e
	}
	e.count++
	return e.count, e.resetAt.Sub(c.now), nil
}

func TestAllowAdmitsExactlyLimit(t *testing.T) {
	l := NewLimiter(newMemCounter(), time.Second)
	ctx := context.Background()

	for i := 1; i <= 3; i++ {
		d, err := l.Allow(ctx, "k", 3, time.Minute)
		if err != nil {
			t.Fatalf("Allow #%d: %v", i, err)
		}
		if !d.Allowed {
			t.Fatalf("request %d of 3 should be allowed", i)
		}
	}

	d, err := l.Allow(ctx, "k", 3, time.Minute)
	if err != nil {
		t.Fatalf("Allow: %v", err)
	}
	if d.Allowed {
		t.Error("request 4 of 3 should be denied")
	}
	if d.RetryAfter <= 0 {
		t.Errorf("denied decision should report time to reset, got %v", d.RetryAfter)
	}
}

func TestAllowKeysAreIndependent(t *testing.T) {
	l := NewLimiter(newMemCounter(), time.Second)
	ctx := context.Background()

	if d, _ := l.Allow(ctx, "a", 1, time.Minute); !d.Allowed {
		t.Fatal("first request on key a should pass")
	}
	if d, _ := l.Allow(ctx, "a", 1, time.Minute); d.Allowed {
		t.Fatal("second request on key a should be denied")
	}
	if d, _ := l.Allow(ctx, "b", 1, time.Minute); !d.Allowed {
		t.Error("key b must not be billed for key a's traffic")
	}
}

// Concurrent callers racing on one window must admit exactly the quota, with
// no over-admission from read-modify-write interleavings.
func TestAllowConcurrentAdmitsQuota(t *testing.T) {
	const (
		workers = 100
		quota   = 25
	)

	l := NewLimiter(newMemCounter(), time.Second)
	ctx := context.Background()

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		allowed int
	)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			d, err := l.Allow(ctx, "shared", quota, time.Minute)
			if err != nil {
				t.Errorf("Allow: %v", err)
				return
			}
			if d.Allowed {
				mu.Lock()
				allowed++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	if allowed != quota {
		t.Errorf("admitted %d of %d concurrent requests, want exactly %d", allowed, workers, quota)
	}
}

func TestAllowAdmitsAgainAfterWindowElapses(t *testing.T) {
	counter := newMemCounter()
	l := NewLimiter(counter, time.Second)
	ctx := context.Background()

	for i := 1; i <= 2; i++ {
		if d, _ := l.Allow(ctx, "k", 2, time.Minute); !d.Allowed {
			t.Fatalf("request %d of 2 should be allowed", i)
		}
	}

	d, err := l.Allow(ctx, "k", 2, time.Minute)
	if err != nil {
		t.Fatalf("Allow: %v", err)
	}
	if d.Allowed {
		t.Fatal("exhausted window should deny")
	}
	if d.RetryAfter != time.Minute {
		t.Errorf("RetryAfter = %v, want the full window remaining", d.RetryAfter)
	}

	// Halfway through the window: still denied, and the advertised reset
	// tracks the real remaining time.
	counter.advance(30 * time.Second)
	d, _ = l.Allow(ctx, "k", 2, time.Minute)
	if d.Allowed {
		t.Error("window has not elapsed yet, request should be denied")
	}
	if d.RetryAfter != 30*time.Second {
		t.Errorf("RetryAfter = %v, want 30s remaining", d.RetryAfter)
	}

	counter.advance(31 * time.Second)
	d, _ = l.Allow(ctx, "k", 2, time.Minute)
	if !d.Allowed {
		t.Error("window elapsed, a fresh window should admit")
	}
	if d.Count != 1 {
		t.Errorf("fresh window count = %d, want 1", d.Count)
	}
}

func TestAllowPropagatesCounterErrors(t *testing.T) {
	counter := newMemCounter()
	counter.failing = true
	l := NewLimiter(counter, time.Second)

	if _, err := l.Allow(context.Background(), "k", 5, time.Minute); err == nil {
		t.Error("expected counter error to surface; the middleware decides fail-open")
	}
}

func TestQuotasForUser(t *testing.T) {
	q := Quotas{Anonymous: 100, Regular: 200, Approved: 500}

	if got := q.ForUser("approved"); got != 500 {
		t.Errorf("approved quota = %d, want 500", got)
	}
	if got := q.ForUser("regular"); got != 200 {
		t.Errorf("regular quota = %d, want 200", got)
	}
	// Pending applicants keep the regular quota until approved.
	if got := q.ForUser("pending"); got != 200 {
		t.Errorf("pending quota = %d, want 200", got)
	}
}
