package postgres

import (
	"context"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/pscheid92/hashpulse/internal/adapter/metrics"
)

// MetricsTracer is a pgx.QueryTracer recording duration and failures per statement kind.
type MetricsTracer struct {
	m *metrics.DBMetrics
}

var _ pgx.QueryTracer = (*MetricsTracer)(nil)

func NewMetricsTracer(m *metrics.DBMetrics) *MetricsTracer {
	return &MetricsTracer{m: m}
}

type queryContextKey struct{}

type queryContext struct {
	start time.Time
	name  string
}

func (t *MetricsTracer) TraceQueryStart(ctx context.Context, _ *pgx.Conn, data pgx.TraceQueryStartData) context.Context {
	return context.WithValue(ctx, queryContextKey{}, queryContext{start: time.Now(), name: queryName(data.SQL)})
}

func (t *MetricsTracer) TraceQueryEnd(ctx context.Context, _ *pgx.Conn, data pgx.TraceQueryEndData) {
	qctx, ok := ctx.Value(queryContextKey{}).(queryContext)
	if !ok {
		return
	}

	t.m.QueryDuration.WithLabelValues(qctx.name).Observe(time.Since(qctx.start).Seconds())
	if data.Err != nil {
		t.m.ErrorsTotal.WithLabelValues(qctx.name).Inc()
	}
}

// queryName is the leading SQL keyword, upper-cased, to keep label cardinality low.
func queryName(sql string) string {
	fields := strings.Fields(sql)
	if len(fields) == 0 {
		return "unknown"
	}
	name := strings.ToUpper(fields[0])
	if len(name) > 20 {
		name = name[:20]
	}
	return name
}
