// internal/common/metrics/metrics.go
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	SyllabiProcessed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "syllabus_documents_processed_total",
			Help: "Syllabus documents processed, by trigger and outcome",
		},
		[]string{"trigger", "outcome"},
	)

	SyllabusFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "syllabus_failures_total",
			Help: "Failed invocations by pipeline stage and error code",
		},
		[]string{"stage", "error_code"},
	)

	StageDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "syllabus_stage_duration_seconds",
			Help:    "Duration of each pipeline stage in seconds",
			Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 15, 30, 60, 120},
		},
		[]string{"stage"},
	)

	ForeignUpdates = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "syllabus_foreign_updates_total",
			Help: "Related-record writes issued during reconciliation",
		},
		[]string{"table", "outcome"},
	)

	ModelTokens = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "syllabus_model_tokens_total",
			Help: "Tokens consumed by model completions",
		},
		[]string{"kind"},
	)

	InFlight = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "syllabus_documents_in_flight",
			Help: "Documents currently being processed, by trigger",
		},
		[]string{"trigger"},
	)
)
