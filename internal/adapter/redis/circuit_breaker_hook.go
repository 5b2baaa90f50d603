package redis

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"sync"
	"time"

	"github.com/failsafe-go/failsafe-go/circuitbreaker"
	"github.com/jonboulle/clockwork"
	goredis "github.com/redis/go-redis/v9"

	"github.com/pscheid92/hashpulse/internal/adapter/metrics"
)

const fallbackTTL = 5 * time.Minute

// BreakerConfig tunes the circuit breaker. Zero values use a 60% failure rate over at least
// 5 commands in a 10s window, and a 30s open delay.
type BreakerConfig struct {
	// FailureThreshold trips the breaker after this many consecutive failures instead of a failure rate.
	FailureThreshold uint
	Delay            time.Duration
}

// CircuitBreakerHook fails Redis commands fast while Redis is unhealthy. While open, HGET is served
// from a short-lived cache of recent HGET results; everything else fails with circuitbreaker.ErrOpen.
type CircuitBreakerHook struct {
	cb      circuitbreaker.CircuitBreaker[any]
	metrics *metrics.RedisMetrics
	clock   clockwork.Clock

	mu        sync.RWMutex
	fallback  map[fieldRef]cachedValue
	lastPrune time.Time
}

var _ goredis.Hook = (*CircuitBreakerHook)(nil)

type fieldRef struct {
	hash  string
	field string
}

type cachedValue struct {
	data     string
	storedAt time.Time
}

func NewCircuitBreakerHook(cfg BreakerConfig, m *metrics.RedisMetrics, clock clockwork.Clock) *CircuitBreakerHook {
	h := &CircuitBreakerHook{
		metrics:  m,
		clock:    clock,
		fallback: make(map[fieldRef]cachedValue),
	}

	delay := cfg.Delay
	if delay <= 0 {
		delay = 30 * time.Second
	}

	builder := circuitbreaker.NewBuilder[any]().
		WithDelay(delay).
		WithSuccessThreshold(1).
		OnStateChanged(h.onStateChanged)
	if cfg.FailureThreshold > 0 {
		builder = builder.WithFailureThreshold(cfg.FailureThreshold)
	} else {
		builder = builder.WithFailureRateThreshold(0.6, 5, 10*time.Second)
	}
	h.cb = builder.Build()

	return h
}

func (h *CircuitBreakerHook) onStateChanged(e circuitbreaker.StateChangedEvent) {
	slog.Warn("Circuit breaker state changed",
		"component", "redis",
		"from", e.OldState.String(),
		"to", e.NewState.String(),
	)
	if h.metrics != nil {
		h.metrics.BreakerStateChanges.WithLabelValues(e.NewState.String()).Inc()
		h.metrics.BreakerState.Set(stateToFloat(e.NewState))
	}
}

func stateToFloat(state circuitbreaker.State) float64 {
	switch state {
	case circuitbreaker.ClosedState:
		return 0
	case circuitbreaker.HalfOpenState:
		return 1
	case circuitbreaker.OpenState:
		return 2
	default:
		return -1
	}
}

func (h *CircuitBreakerHook) DialHook(next goredis.DialHook) goredis.DialHook {
	return func(ctx context.Context, network, addr string) (net.Conn, error) {
		if !h.cb.TryAcquirePermit() {
			return nil, fmt.Errorf("redis circuit breaker open: %w", circuitbreaker.ErrOpen)
		}
		conn, err := next(ctx, network, addr)
		if err != nil {
			h.cb.RecordError(err)
			return nil, err
		}
		h.cb.RecordSuccess()
		return conn, nil
	}
}

func (h *CircuitBreakerHook) ProcessHook(next goredis.ProcessHook) goredis.ProcessHook {
	return func(ctx context.Context, cmd goredis.Cmder) error {
		if !h.cb.TryAcquirePermit() {
			return h.serveFallback(cmd)
		}

		err := next(ctx, cmd)
		h.record(err)
		if err == nil {
			h.remember(cmd)
		}
		return err
	}
}

func (h *CircuitBreakerHook) ProcessPipelineHook(next goredis.ProcessPipelineHook) goredis.ProcessPipelineHook {
	return func(ctx context.Context, cmds []goredis.Cmder) error {
		if !h.cb.TryAcquirePermit() {
			return fmt.Errorf("redis circuit breaker open: %w", circuitbreaker.ErrOpen)
		}
		err := next(ctx, cmds)
		h.record(err)
		return err
	}
}

// record counts only failures of Redis itself. Misses and server replies such as NOSCRIPT are successes.
func (h *CircuitBreakerHook) record(err error) {
	var serverErr goredis.Error
	if err == nil || errors.Is(err, goredis.Nil) || errors.As(err, &serverErr) {
		h.cb.RecordSuccess()
		return
	}
	h.cb.RecordError(err)
}

func (h *CircuitBreakerHook) serveFallback(cmd goredis.Cmder) error {
	if c, ok := cmd.(*goredis.StringCmd); ok && cmd.Name() == "hget" {
		if ref, ok := hgetRef(cmd); ok {
			if value, ok := h.lookup(ref); ok {
				slog.Debug("Circuit breaker open, serving from cache", "hash", ref.hash, "field", ref.field)
				if h.metrics != nil {
					h.metrics.FallbackHits.Inc()
				}
				c.SetVal(value)
				return nil
			}
		}
		return fmt.Errorf("redis circuit breaker open and no cached value: %w", circuitbreaker.ErrOpen)
	}

	slog.Warn("Circuit breaker open, failing command", "command", cmd.Name())
	return fmt.Errorf("redis circuit breaker open: %w", circuitbreaker.ErrOpen)
}

// remember caches successful HGET replies. Any write to a hash drops its cached fields.
func (h *CircuitBreakerHook) remember(cmd goredis.Cmder) {
	switch cmd.Name() {
	case "hget":
		c, ok := cmd.(*goredis.StringCmd)
		ref, okRef := hgetRef(cmd)
		if !ok || !okRef {
			return
		}
		now := h.clock.Now()
		h.mu.Lock()
		h.pruneLocked(now)
		h.fallback[ref] = cachedValue{data: c.Val(), storedAt: now}
		h.mu.Unlock()

	case "hset", "hdel", "del", "evalsha", "eval":
		hash, ok := writtenHash(cmd)
		if !ok {
			return
		}
		h.mu.Lock()
		for ref := range h.fallback {
			if ref.hash == hash {
				delete(h.fallback, ref)
			}
		}
		h.mu.Unlock()
	}
}

// pruneLocked drops expired entries, at most once per fallbackTTL. Callers hold h.mu.
func (h *CircuitBreakerHook) pruneLocked(now time.Time) {
	if now.Sub(h.lastPrune) < fallbackTTL {
		return
	}
	h.lastPrune = now
	for ref, cached := range h.fallback {
		if now.Sub(cached.storedAt) > fallbackTTL {
			delete(h.fallback, ref)
		}
	}
}

func (h *CircuitBreakerHook) lookup(ref fieldRef) (string, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	cached, ok := h.fallback[ref]
	if !ok || h.clock.Since(cached.storedAt) > fallbackTTL {
		return "", false
	}
	return cached.data, true
}

func hgetRef(cmd goredis.Cmder) (fieldRef, bool) {
	args := cmd.Args()
	if len(args) < 3 {
		return fieldRef{}, false
	}
	return fieldRef{hash: fmt.Sprint(args[1]), field: fmt.Sprint(args[2])}, true
}

func (h *CircuitBreakerHook) State() circuitbreaker.State {
	return h.cb.State()
}

// writtenHash returns the hash a write command touches. Scripts are assumed to write their first key.
func writtenHash(cmd goredis.Cmder) (string, bool) {
	args := cmd.Args()
	switch cmd.Name() {
	case "eval", "evalsha":
		// eval <script> <numkeys> <key> ...
		if len(args) < 4 {
			return "", false
		}
		return fmt.Sprint(args[3]), true
	default:
		if len(args) < 2 {
			return "", false
		}
		return fmt.Sprint(args[1]), true
	}
}
