// internal/common/metrics/metrics.go
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	FlowsCompleted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pipeline_flows_completed_total",
			Help: "Total number of pipeline flows completed successfully",
		},
		[]string{"flow"},
	)

	FlowsFailed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pipeline_flows_failed_total",
			Help: "Total number of pipeline flows aborted, by stage and error code",
		},
		[]string{"flow", "stage", "error_code"},
	)

	FlowDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "pipeline_flow_duration_seconds",
			Help:    "End-to-end duration of pipeline flows in seconds",
			Buckets: []float64{0.1, 0.5, 1, 2.5, 5, 10, 30, 60, 120},
		},
		[]string{"flow"},
	)

	StageDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "pipeline_stage_duration_seconds",
			Help:    "Duration of individual pipeline stages in seconds",
			Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 15, 30, 60},
		},
		[]string{"flow", "stage"},
	)

	OCRProgress = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "ocr_recognition_progress",
			Help: "Most recent OCR recognition progress (0-1) per flow",
		},
		[]string{"flow"},
	)
)
