package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// SweepMetrics records metadata for schedule monitor sweeps.
type SweepMetrics struct {
	duration  *prometheus.HistogramVec
	published *prometheus.CounterVec
	failures  *prometheus.CounterVec
}

// NewSweepMetrics registers the sweep metrics on the provided registerer.
func NewSweepMetrics(reg prometheus.Registerer) *SweepMetrics {
	if reg == nil {
		return &SweepMetrics{}
	}
	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "schedule_sweep_duration_seconds",
		Help:    "Duration of schedule monitor sweeps in seconds.",
		Buckets: prometheus.DefBuckets,
	}, []string{"sweeper"})
	published := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "schedule_tasks_published",
		Help: "Due schedules handed to the task broker.",
	}, []string{"sweeper"})
	failures := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "schedule_sweep_failures",
		Help: "Failed schedule publish attempts.",
	}, []string{"sweeper"})
	reg.MustRegister(duration, published, failures)
	return &SweepMetrics{
		duration:  duration,
		published: published,
		failures:  failures,
	}
}

// ObserveDuration records the duration for the named sweeper.
func (s *SweepMetrics) ObserveDuration(sweeper string, duration time.Duration) {
	if s == nil || s.duration == nil {
		return
	}
	s.duration.WithLabelValues(normalizeLabel(sweeper)).Observe(duration.Seconds())
}

// IncPublished increments the published counter for the named sweeper.
func (s *SweepMetrics) IncPublished(sweeper string) {
	if s == nil || s.published == nil {
		return
	}
	s.published.WithLabelValues(normalizeLabel(sweeper)).Inc()
}

// IncFailure increments the failure counter for the named sweeper.
func (s *SweepMetrics) IncFailure(sweeper string) {
	if s == nil || s.failures == nil {
		return
	}
	s.failures.WithLabelValues(normalizeLabel(sweeper)).Inc()
}
