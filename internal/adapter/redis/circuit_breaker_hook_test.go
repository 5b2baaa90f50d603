package redis

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/failsafe-go/failsafe-go/circuitbreaker"
	"github.com/jonboulle/clockwork"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pscheid92/hashpulse/internal/adapter/metrics"
)

var errConnRefused = errors.New("dial tcp 127.0.0.1:6379: connect: connection refused")

func succeedWith(value string) goredis.ProcessHook {
	return func(_ context.Context, cmd goredis.Cmder) error {
		if c, ok := cmd.(*goredis.StringCmd); ok {
			c.SetVal(value)
		}
		return nil
	}
}

func failWith(err error) goredis.ProcessHook {
	return func(context.Context, goredis.Cmder) error { return err }
}

func hget(hash, field string) *goredis.StringCmd {
	return goredis.NewStringCmd(context.Background(), "hget", hash, field)
}

func newHook(clock clockwork.Clock) (*CircuitBreakerHook, *metrics.RedisMetrics) {
	m := metrics.NewRedisMetrics(prometheus.NewRegistry())
	return NewCircuitBreakerHook(BreakerConfig{FailureThreshold: 3, Delay: time.Hour}, m, clock), m
}

func trip(t *testing.T, h *CircuitBreakerHook) {
	t.Helper()
	failing := h.ProcessHook(failWith(errConnRefused))
	for range 3 {
		require.Error(t, failing(context.Background(), hget("h", "f")))
	}
	require.Equal(t, circuitbreaker.OpenState, h.State())
}

func TestCircuitBreakerHook_StaysClosedOnSuccess(t *testing.T) {
	h, _ := newHook(clockwork.NewFakeClock())
	process := h.ProcessHook(succeedWith("v"))

	for range 10 {
		require.NoError(t, process(context.Background(), hget("h", "f")))
	}
	assert.Equal(t, circuitbreaker.ClosedState, h.State())
}

func TestCircuitBreakerHook_MissesAndServerErrorsDoNotTrip(t *testing.T) {
	h, _ := newHook(clockwork.NewFakeClock())
	ctx := context.Background()

	for range 5 {
		_ = h.ProcessHook(failWith(goredis.Nil))(ctx, hget("h", "f"))
		_ = h.ProcessHook(failWith(serverError("NOSCRIPT No matching script")))(ctx, goredis.NewCmd(ctx, "evalsha", "abc", 1, "h"))
	}
	assert.Equal(t, circuitbreaker.ClosedState, h.State())
}

func TestCircuitBreakerHook_OpensAndFailsFast(t *testing.T) {
	h, m := newHook(clockwork.NewFakeClock())
	trip(t, h)

	called := false
	process := h.ProcessHook(func(context.Context, goredis.Cmder) error {
		called = true
		return nil
	})

	err := process(context.Background(), goredis.NewIntCmd(context.Background(), "hset", "h", "f", "v"))
	require.Error(t, err)
	assert.ErrorIs(t, err, circuitbreaker.ErrOpen)
	assert.False(t, called)
	assert.Equal(t, 2.0, testutil.ToFloat64(m.BreakerState))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.BreakerStateChanges.WithLabelValues(circuitbreaker.OpenState.String())))
}

func TestCircuitBreakerHook_ServesCachedHGETWhileOpen(t *testing.T) {
	clock := clockwork.NewFakeClock()
	h, m := newHook(clock)
	ctx := context.Background()

	require.NoError(t, h.ProcessHook(succeedWith("AT"))(ctx, hget("hashpulse:kv:ns", "access_token")))
	trip(t, h)

	cmd := hget("hashpulse:kv:ns", "access_token")
	require.NoError(t, h.ProcessHook(failWith(errConnRefused))(ctx, cmd))
	assert.Equal(t, "AT", cmd.Val())
	assert.Equal(t, 1.0, testutil.ToFloat64(m.FallbackHits))

	// a different field of the same hash is not cached
	err := h.ProcessHook(failWith(errConnRefused))(ctx, hget("hashpulse:kv:ns", "refresh_token"))
	assert.ErrorIs(t, err, circuitbreaker.ErrOpen)
}

func TestCircuitBreakerHook_CachedValuesExpire(t *testing.T) {
	clock := clockwork.NewFakeClock()
	h, _ := newHook(clock)
	ctx := context.Background()

	require.NoError(t, h.ProcessHook(succeedWith("AT"))(ctx, hget("h", "f")))
	trip(t, h)
	clock.Advance(fallbackTTL + time.Second)

	err := h.ProcessHook(failWith(errConnRefused))(ctx, hget("h", "f"))
	assert.ErrorIs(t, err, circuitbreaker.ErrOpen)
}

func TestCircuitBreakerHook_WritesInvalidateCache(t *testing.T) {
	h, _ := newHook(clockwork.NewFakeClock())
	ctx := context.Background()

	require.NoError(t, h.ProcessHook(succeedWith("old"))(ctx, hget("hashpulse:kv:ns", "refresh_token")))
	require.NoError(t, h.ProcessHook(succeedWith(""))(ctx, goredis.NewCmd(ctx, "evalsha", "sha", 1, "hashpulse:kv:ns", "old", "a", "new", "1")))
	trip(t, h)

	err := h.ProcessHook(failWith(errConnRefused))(ctx, hget("hashpulse:kv:ns", "refresh_token"))
	assert.ErrorIs(t, err, circuitbreaker.ErrOpen)
}

type serverError string

func (e serverError) Error() string { return string(e) }
func (serverError) RedisError()     {}

func TestCircuitBreakerHook_ExpiredEntriesArePruned(t *testing.T) {
	clock := clockwork.NewFakeClock()
	h, _ := newHook(clock)
	ctx := context.Background()
	ok := h.ProcessHook(succeedWith("v"))

	require.NoError(t, ok(ctx, hget("h1", "f")))
	require.NoError(t, ok(ctx, hget("h2", "f")))
	clock.Advance(fallbackTTL + time.Second)
	require.NoError(t, ok(ctx, hget("h3", "f")))

	h.mu.RLock()
	defer h.mu.RUnlock()
	assert.Len(t, h.fallback, 1)
	assert.Contains(t, h.fallback, fieldRef{hash: "h3", field: "f"})
}

func TestCircuitBreakerHook_PruneKeepsFreshEntries(t *testing.T) {
	clock := clockwork.NewFakeClock()
	h, _ := newHook(clock)
	ctx := context.Background()
	ok := h.ProcessHook(succeedWith("v"))

	require.NoError(t, ok(ctx, hget("h1", "f")))
	clock.Advance(fallbackTTL + time.Second)
	require.NoError(t, ok(ctx, hget("h2", "f")))
	clock.Advance(time.Minute)
	require.NoError(t, ok(ctx, hget("h3", "f")))

	h.mu.RLock()
	defer h.mu.RUnlock()
	assert.Len(t, h.fallback, 2)
	assert.NotContains(t, h.fallback, fieldRef{hash: "h1", field: "f"})
}
