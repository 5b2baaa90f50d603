package metrics

import "github.com/prometheus/client_golang/prometheus"

// TaskMetrics tracks task runs.
type TaskMetrics struct {
	RunsTotal   *prometheus.CounterVec
	RunDuration *prometheus.HistogramVec
	BlobBytes   *prometheus.CounterVec
}

func NewTaskMetrics(reg prometheus.Registerer) *TaskMetrics {
	m := &TaskMetrics{
		RunsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "task",
			Name:      "runs_total",
			Help:      "Total number of task runs, by task type and result.",
		}, []string{"type", "result"}),
		RunDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "task",
			Name:      "run_duration_seconds",
			Help:      "Duration of task runs in seconds.",
			Buckets:   []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60, 120},
		}, []string{"type"}),
		BlobBytes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "task",
			Name:      "blob_bytes_written_total",
			Help:      "Total number of bytes staged as task output, by namespace.",
		}, []string{"namespace"}),
	}

	reg.MustRegister(m.RunsTotal, m.RunDuration, m.BlobBytes)
	return m
}
