package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// WorkflowMetrics tracks prediction and submission outcomes.
type WorkflowMetrics struct {
	service string

	predictionTotal    *prometheus.CounterVec
	predictionDuration *prometheus.HistogramVec
	predictionRetries  *prometheus.HistogramVec
	submissionTotal    *prometheus.CounterVec
	submissionDuration *prometheus.HistogramVec
}

func NewWorkflowMetrics(service string, registerer prometheus.Registerer) *WorkflowMetrics {
	predictionTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "claims",
			Subsystem: "prediction",
			Name:      "total",
			Help:      "Total settlement predictions by outcome.",
		},
		[]string{"service", "outcome"},
	)
	predictionDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "claims",
			Subsystem: "prediction",
			Name:      "duration_seconds",
			Help:      "Settlement prediction duration including retries.",
			Buckets:   []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60, 120},
		},
		[]string{"service", "outcome"},
	)
	predictionRetries := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "claims",
			Subsystem: "prediction",
			Name:      "retries",
			Help:      "Retries spent per settlement prediction.",
			Buckets:   []float64{0, 1, 2, 3, 5},
		},
		[]string{"service"},
	)
	submissionTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "claims",
			Subsystem: "submission",
			Name:      "total",
			Help:      "Total claim submissions by outcome.",
		},
		[]string{"service", "outcome"},
	)
	submissionDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "claims",
			Subsystem: "submission",
			Name:      "duration_seconds",
			Help:      "Claim submission duration in seconds by outcome.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"service", "outcome"},
	)

	registerer.MustRegister(predictionTotal, predictionDuration, predictionRetries, submissionTotal, submissionDuration)

	return &WorkflowMetrics{
		service:            service,
		predictionTotal:    predictionTotal,
		predictionDuration: predictionDuration,
		predictionRetries:  predictionRetries,
		submissionTotal:    submissionTotal,
		submissionDuration: submissionDuration,
	}
}

func (m *WorkflowMetrics) ObservePrediction(outcome string, retries int, duration time.Duration) {
	if outcome == "" {
		outcome = "unknown"
	}
	m.predictionTotal.WithLabelValues(m.service, outcome).Inc()
	m.predictionDuration.WithLabelValues(m.service, outcome).Observe(duration.Seconds())
	if retries >= 0 {
		m.predictionRetries.WithLabelValues(m.service).Observe(float64(retries))
	}
}

func (m *WorkflowMetrics) ObserveSubmission(outcome string, duration time.Duration) {
	if outcome == "" {
		outcome = "unknown"
	}
	m.submissionTotal.WithLabelValues(m.service, outcome).Inc()
	m.submissionDuration.WithLabelValues(m.service, outcome).Observe(duration.Seconds())
}
