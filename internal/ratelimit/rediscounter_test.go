package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
)

// scriptStub satisfies redis.Scripter and answers every eval with a canned
// result, so the counter's decoding of script replies is testable without a
// server.
type scriptStub struct {
	result any
}

func (s scriptStub) Eval(ctx context.Context, script string, keys []string, args ...any) *redis.Cmd {
	return redis.NewCmdResult(s.result, nil)
}

func (s scriptStub) EvalSha(ctx context.Context, sha1 string, keys []string, args ...any) *redis.Cmd {
	return redis.NewCmdResult(s.result, nil)
}

func (s scriptStub) EvalRO(ctx context.Context, script string, keys []string, args ...any) *redis.Cmd {
	return redis.NewCmdResult(s.result, nil)
}

func (s scriptStub) EvalShaRO(ctx context.Context, sha1 string, keys []string, args ...any) *redis.Cmd {
	return redis.NewCmdResult(s.result, nil)
}

func (s scriptStub) ScriptExists(ctx context.Context, hashes ...string) *redis.BoolSliceCmd {
	return redis.NewBoolSliceResult([]bool{true}, nil)
}

func (s scriptStub) ScriptLoad(ctx context.Context, script string) *redis.StringCmd {
	return redis.NewStringResult("", nil)
}

func TestRedisCounterDecodesScriptReply(t *testing.T) {
	c := NewRedisCounter(scriptStub{result: []any{int64(3), int64(45000)}})

	count, reset, err := c.Incr(context.Background(), "k", time.Minute)
	if err != nil {
		t.Fatalf("Incr: %v", err)
	}
	if count != 3 {
		t.Errorf("count = %d, want 3", count)
	}
	if reset != 45*time.Second {
		t.Errorf("reset = %v, want 45s", reset)
	}
}

func TestRedisCounterFallsBackToWindowOnNegativeTTL(t *testing.T) {
	// PTTL returns -1 for a key without expiry; the window is the only sane
	// reset to advertise then.
	c := NewRedisCounter(scriptStub{result: []any{int64(1), int64(-1)}})

	_, reset, err := c.Incr(context.Background(), "k", time.Minute)
	if err != nil {
		t.Fatalf("Incr: %v", err)
	}
	if reset != time.Minute {
		t.Errorf("reset = %v, want the full window", reset)
	}
}

func TestRedisCounterRejectsMalformedReplies(t *testing.T) {
	tests := []struct {
		name   string
		result any
	}{
		{"not an array", "oops"},
		{"wrong length", []any{int64(1)}},
		{"count not an int", []any{"1", int64(60000)}},
		{"ttl not an int", []any{int64(1), "60000"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := NewRedisCounter(scriptStub{result: tt.result})
			if _, _, err := c.Incr(context.Background(), "k", time.Minute); err == nil {
				t.Error("malformed reply must error, not decode to a zero count")
			}
		})
	}
}
