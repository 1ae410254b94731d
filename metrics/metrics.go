// Package metrics registers the Prometheus instrumentation cyclerd exposes
// alongside the spec's required observability server: cycle duration,
// overrun counts, and live subscription counts.
//
// Grounded on tracing.Metrics's promauto-registered HistogramVec/CounterVec
// struct, generalized from the reference platform's action/workflow label
// set to cyclerd's cycler/subject label set. Each Metrics value owns a
// private prometheus.Registry rather than using the global default, so
// multiple cyclerd instances (or tests) never collide on metric names.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds every Prometheus collector cyclerd registers.
type Metrics struct {
	Registry *prometheus.Registry

	CycleDuration   *prometheus.HistogramVec
	CycleOverruns   *prometheus.CounterVec
	Subscriptions   *prometheus.GaugeVec
	RecordedFrames  *prometheus.CounterVec
	RecordingErrors *prometheus.CounterVec
}

// New creates a fresh registry and registers all collectors under the
// given namespace (defaults to "cyclerd").
func New(namespace string) *Metrics {
	if namespace == "" {
		namespace = "cyclerd"
	}

	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Metrics{
		Registry: reg,

		CycleDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "cycle_duration_seconds",
				Help:      "Wall-clock duration of one cycler iteration.",
				Buckets:   []float64{.001, .002, .004, .008, .016, .033, .05, .1, .25},
			},
			[]string{"cycler"},
		),

		CycleOverruns: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "cycle_overrun_total",
				Help:      "Number of cycles whose wall-clock duration exceeded the configured budget.",
			},
			[]string{"cycler"},
		),

		Subscriptions: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "observability_subscriptions",
				Help:      "Number of live observability subscriptions per subject.",
			},
			[]string{"subject"},
		),

		RecordedFrames: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "recorded_frames_total",
				Help:      "Number of cycle frames written to the recording sink.",
			},
			[]string{"cycler"},
		),

		RecordingErrors: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "recording_errors_total",
				Help:      "Number of recording sink write failures.",
			},
			[]string{"cycler"},
		),
	}
}
