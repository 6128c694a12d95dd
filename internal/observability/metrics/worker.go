package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type WorkerMetrics struct {
	registry *prometheus.Registry

	noticesTotal  *prometheus.CounterVec
	noticeLag     *prometheus.HistogramVec
	draftsPurged  *prometheus.CounterVec
	purgeFailures *prometheus.CounterVec
}

func NewWorkerMetrics(service string) *WorkerMetrics {
	registry := prometheus.NewRegistry()

	noticesTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "claims",
			Subsystem: "worker",
			Name:      "notices_total",
			Help:      "Total draft notices consumed by kind and level.",
		},
		[]string{"service", "kind", "level"},
	)
	noticeLag := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "claims",
			Subsystem: "worker",
			Name:      "notice_lag_seconds",
			Help:      "Delay between notice creation and consumption.",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.5, 1, 2, 5, 10, 30},
		},
		[]string{"service"},
	)
	draftsPurged := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "claims",
			Subsystem: "worker",
			Name:      "drafts_purged_total",
			Help:      "Total expired drafts removed.",
		},
		[]string{"service"},
	)
	purgeFailures := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "claims",
			Subsystem: "worker",
			Name:      "draft_purge_failures_total",
			Help:      "Total failed draft purge runs.",
		},
		[]string{"service"},
	)

	registry.MustRegister(noticesTotal, noticeLag, draftsPurged, purgeFailures)

	return &WorkerMetrics{
		registry:      registry,
		noticesTotal:  noticesTotal,
		noticeLag:     noticeLag,
		draftsPurged:  draftsPurged,
		purgeFailures: purgeFailures,
	}
}

func (m *WorkerMetrics) Gatherer() prometheus.Gatherer {
	return m.registry
}

func (m *WorkerMetrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *WorkerMetrics) ObserveNotice(service, kind, level string, lag time.Duration) {
	m.noticesTotal.WithLabelValues(service, kind, level).Inc()
	if lag >= 0 {
		m.noticeLag.WithLabelValues(service).Observe(lag.Seconds())
	}
}

func (m *WorkerMetrics) ObservePurge(service string, purged int64, err error) {
	if err != nil {
		m.purgeFailures.WithLabelValues(service).Inc()
		return
	}
	if purged > 0 {
		m.draftsPurged.WithLabelValues(service).Add(float64(purged))
	}
}
