package redis

import (
	"context"
	"errors"
	"net"
	"time"

	"github.com/jonboulle/clockwork"
	goredis "github.com/redis/go-redis/v9"

	"github.com/pscheid92/hashpulse/internal/adapter/metrics"
)

// MetricsHook records count and latency of every Redis command.
type MetricsHook struct {
	m     *metrics.RedisMetrics
	clock clockwork.Clock
}

var _ goredis.Hook = (*MetricsHook)(nil)

func NewMetricsHook(m *metrics.RedisMetrics, clock clockwork.Clock) *MetricsHook {
	return &MetricsHook{m: m, clock: clock}
}

func (h *MetricsHook) DialHook(next goredis.DialHook) goredis.DialHook {
	return func(ctx context.Context, network, addr string) (net.Conn, error) {
		conn, err := next(ctx, network, addr)
		if err != nil {
			h.m.ConnectionErrors.Inc()
		}
		return conn, err
	}
}

func (h *MetricsHook) ProcessHook(next goredis.ProcessHook) goredis.ProcessHook {
	return func(ctx context.Context, cmd goredis.Cmder) error {
		start := h.clock.Now()
		err := next(ctx, cmd)
		h.observe(cmd.Name(), err, start)
		return err
	}
}

// ProcessPipelineHook tracks a pipeline as a single operation.
func (h *MetricsHook) ProcessPipelineHook(next goredis.ProcessPipelineHook) goredis.ProcessPipelineHook {
	return func(ctx context.Context, cmds []goredis.Cmder) error {
		start := h.clock.Now()
		err := next(ctx, cmds)
		h.observe("pipeline", err, start)
		return err
	}
}

func (h *MetricsHook) observe(operation string, err error, start time.Time) {
	status := "success"
	if err != nil && !errors.Is(err, goredis.Nil) {
		status = "error"
	}
	h.m.OpsTotal.WithLabelValues(operation, status).Inc()
	h.m.OpDuration.WithLabelValues(operation).Observe(h.clock.Since(start).Seconds())
}
