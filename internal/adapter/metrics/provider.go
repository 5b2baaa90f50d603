package metrics

import "github.com/prometheus/client_golang/prometheus"

// ProviderMetrics tracks outbound calls to Apify, X/Twitter and the LLM endpoint.
type ProviderMetrics struct {
	RequestsTotal   *prometheus.CounterVec
	RequestDuration *prometheus.HistogramVec
	RateLimitWaits  *prometheus.CounterVec
}

func NewProviderMetrics(reg prometheus.Registerer) *ProviderMetrics {
	m := &ProviderMetrics{
		RequestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "provider",
			Name:      "requests_total",
			Help:      "Total number of outbound provider requests, by provider and status class.",
		}, []string{"provider", "status_class"}),
		RequestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "provider",
			Name:      "request_duration_seconds",
			Help:      "Duration of outbound provider requests in seconds.",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
		}, []string{"provider"}),
		RateLimitWaits: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "provider",
			Name:      "rate_limit_waits_total",
			Help:      "Total number of requests delayed by the client-side rate limiter.",
		}, []string{"provider"}),
	}

	reg.MustRegister(m.RequestsTotal, m.RequestDuration, m.RateLimitWaits)
	return m
}

// StatusClass buckets a status code as "2xx".."5xx", or "error" for transport failures (code 0).
func StatusClass(code int) string {
	switch {
	case code <= 0:
		return "error"
	case code < 200:
		return "1xx"
	case code < 300:
		return "2xx"
	case code < 400:
		return "3xx"
	case code < 500:
		return "4xx"
	default:
		return "5xx"
	}
}
