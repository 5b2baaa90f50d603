// Package redis is the Redis KV backend: one hash per namespace, a Lua compare-and-swap for credentials,
// and command hooks for metrics and a circuit breaker.
package redis

import (
	"context"
	"fmt"

	"github.com/jonboulle/clockwork"
	goredis "github.com/redis/go-redis/v9"

	"github.com/pscheid92/hashpulse/internal/adapter/metrics"
)

type Options struct {
	Metrics *metrics.RedisMetrics
	Clock   clockwork.Clock
	Breaker BreakerConfig
}

// NewClient connects to redisURL (e.g. "redis://localhost:6379/0") and installs the hooks.
func NewClient(ctx context.Context, redisURL string, opts Options) (*goredis.Client, error) {
	parsed, err := goredis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse redis URL: %w", err)
	}

	clock := opts.Clock
	if clock == nil {
		clock = clockwork.NewRealClock()
	}

	rdb := goredis.NewClient(parsed)
	if opts.Metrics != nil {
		rdb.AddHook(NewMetricsHook(opts.Metrics, clock))
	}
	rdb.AddHook(NewCircuitBreakerHook(opts.Breaker, opts.Metrics, clock))

	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("failed to ping redis: %w", err)
	}
	return rdb, nil
}
