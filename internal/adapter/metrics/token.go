package metrics

import "github.com/prometheus/client_golang/prometheus"

// TokenMetrics tracks the OAuth2 credential lifecycle.
type TokenMetrics struct {
	Refreshes       *prometheus.CounterVec
	Reused          prometheus.Counter
	SwapConflicts   prometheus.Counter
	RefreshDuration prometheus.Histogram
}

func NewTokenMetrics(reg prometheus.Registerer) *TokenMetrics {
	m := &TokenMetrics{
		Refreshes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "oauth",
			Name:      "refreshes_total",
			Help:      "Total number of token refreshes, by result.",
		}, []string{"result"}),
		Reused: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "oauth",
			Name:      "tokens_reused_total",
			Help:      "Total number of calls that reused a still-valid access token.",
		}),
		SwapConflicts: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "oauth",
			Name:      "swap_conflicts_total",
			Help:      "Total number of refreshes whose persistence lost a compare-and-set race.",
		}),
		RefreshDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "oauth",
			Name:      "refresh_duration_seconds",
			Help:      "Duration of token refreshes, including retries, in seconds.",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		}),
	}

	reg.MustRegister(m.Refreshes, m.Reused, m.SwapConflicts, m.RefreshDuration)
	return m
}
