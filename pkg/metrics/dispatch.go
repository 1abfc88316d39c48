package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// DispatchMetrics records outcomes of broker task dispatches.
type DispatchMetrics struct {
	duration *prometheus.HistogramVec
	acked    *prometheus.CounterVec
	nacked   *prometheus.CounterVec
}

// NewDispatchMetrics registers the dispatch metrics on the provided registerer.
func NewDispatchMetrics(reg prometheus.Registerer) *DispatchMetrics {
	if reg == nil {
		return &DispatchMetrics{}
	}
	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "task_dispatch_duration_seconds",
		Help:    "Duration of scheduled task dispatches in seconds.",
		Buckets: prometheus.DefBuckets,
	}, []string{"task_type"})
	acked := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "task_dispatch_acked",
		Help: "Scheduled task messages acknowledged.",
	}, []string{"task_type"})
	nacked := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "task_dispatch_nacked",
		Help: "Scheduled task messages returned for redelivery.",
	}, []string{"task_type"})
	reg.MustRegister(duration, acked, nacked)
	return &DispatchMetrics{
		duration: duration,
		acked:    acked,
		nacked:   nacked,
	}
}

// ObserveDuration records the handling duration for the given task type.
func (d *DispatchMetrics) ObserveDuration(taskType string, duration time.Duration) {
	if d == nil || d.duration == nil {
		return
	}
	d.duration.WithLabelValues(normalizeLabel(taskType)).Observe(duration.Seconds())
}

// IncAcked increments the acknowledged counter for the given task type.
func (d *DispatchMetrics) IncAcked(taskType string) {
	if d == nil || d.acked == nil {
		return
	}
	d.acked.WithLabelValues(normalizeLabel(taskType)).Inc()
}

// IncNacked increments the redelivery counter for the given task type.
func (d *DispatchMetrics) IncNacked(taskType string) {
	if d == nil || d.nacked == nil {
		return
	}
	d.nacked.WithLabelValues(normalizeLabel(taskType)).Inc()
}

func normalizeLabel(value string) string {
	if value == "" {
		return "unknown"
	}
	return value
}
