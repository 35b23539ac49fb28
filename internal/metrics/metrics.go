// Package metrics holds the Prometheus collectors for the analysis pipeline.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "foodbot"

type Pipeline struct {
	StageTransitions *prometheus.CounterVec
	Outcomes         *prometheus.CounterVec
	Duration         *prometheus.HistogramVec
	AuditUploads     *prometheus.CounterVec
	Events           *prometheus.CounterVec
	UploadsInFlight  prometheus.Gauge
}

// NewPipeline registers the pipeline collectors with reg. Passing a fresh
// registry keeps tests independent of the global one.
func NewPipeline(reg prometheus.Registerer) *Pipeline {
	f := promauto.With(reg)
	return &Pipeline{
		StageTransitions: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "pipeline_stage_transitions_total",
				Help:      "Number of times the analysis pipeline entered a stage.",
			},
			[]string{"stage"},
		),
		Outcomes: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "analysis_outcomes_total",
				Help:      "Analyses by rendered card kind.",
			},
			[]string{"outcome"},
		),
		Duration: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "pipeline_duration_seconds",
				Help:      "End to end duration of an image analysis.",
				Buckets:   []float64{0.5, 1, 2.5, 5, 10, 20, 30, 60},
			},
			[]string{"final_stage"},
		),
		AuditUploads: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "audit_uploads_total",
				Help:      "Audit image uploads by result.",
			},
			[]string{"result"},
		),
		Events: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "webhook_events_total",
				Help:      "LINE webhook events by route.",
			},
			[]string{"route"},
		),
		UploadsInFlight: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "audit_uploads_in_flight",
			Help:      "Audit uploads currently running.",
		}),
	}
}
