// Package metrics exposes prometheus counters for classification and fusion.
// Recording is a no-op until Init has been called.
package metrics

import (
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
)

var (
	registry     *prometheus.Registry
	registryOnce sync.Once
	enabled      atomic.Bool

	ClassificationsTotal  *prometheus.CounterVec
	ClassificationLatency *prometheus.HistogramVec
	FaceSentinelsTotal    *prometheus.CounterVec
	FusionsTotal          *prometheus.CounterVec
	SessionsActive        prometheus.Gauge
	ExtractionFailures    *prometheus.CounterVec
)

// Init creates the registry and registers every collector once.
func Init(logger *logrus.Logger) {
	registryOnce.Do(func() {
		registry = prometheus.NewRegistry()

		ClassificationsTotal = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "edmo_classifications_total",
				Help: "Emotion classifications by modality and label",
			},
			[]string{"modality", "label"},
		)

		ClassificationLatency = prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "edmo_classification_seconds",
				Help:    "Time spent classifying one input",
				Buckets: prometheus.ExponentialBuckets(0.00001, 4, 10),
			},
			[]string{"modality"},
		)

		FaceSentinelsTotal = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "edmo_face_sentinels_total",
				Help: "Face results that carried a sentinel instead of a real face label",
			},
			[]string{"sentinel"},
		)

		FusionsTotal = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "edmo_fusions_total",
				Help: "Fusion results by deciding rule",
			},
			[]string{"rule"},
		)

		SessionsActive = prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "edmo_sessions_active",
			Help: "Sessions holding a face classifier",
		})

		ExtractionFailures = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "edmo_feature_extraction_failures_total",
				Help: "Remote feature extraction calls that failed",
			},
			[]string{"modality"},
		)

		registry.MustRegister(
			ClassificationsTotal,
			ClassificationLatency,
			FaceSentinelsTotal,
			FusionsTotal,
			SessionsActive,
			ExtractionFailures,
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
		enabled.Store(true)

		if logger != nil {
			logger.Info("Prometheus metrics initialized")
		}
	})
}

func Registry() *prometheus.Registry { return registry }

// Handler serves the registry. Before Init it answers 503.
func Handler() http.Handler {
	if !enabled.Load() {
		return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			http.Error(w, "metrics disabled", http.StatusServiceUnavailable)
		})
	}
	return promhttp.HandlerFor(registry, promhttp.HandlerOpts{
		EnableOpenMetrics: true,
		Registry:          registry,
	})
}

func RecordClassification(modality, label string) {
	if enabled.Load() {
		ClassificationsTotal.WithLabelValues(modality, label).Inc()
	}
}

// ObserveClassification starts a timer; call the returned func when done.
func ObserveClassification(modality string) func() {
	if !enabled.Load() {
		return func() {}
	}
	start := time.Now()
	return func() {
		ClassificationLatency.WithLabelValues(modality).Observe(time.Since(start).Seconds())
	}
}

func RecordSentinel(sentinel string) {
	if enabled.Load() {
		FaceSentinelsTotal.WithLabelValues(sentinel).Inc()
	}
}

func RecordFusion(rule string) {
	if enabled.Load() {
		FusionsTotal.WithLabelValues(rule).Inc()
	}
}

func RecordExtractionFailure(modality string) {
	if enabled.Load() {
		ExtractionFailures.WithLabelValues(modality).Inc()
	}
}

func SetSessionsActive(n int) {
	if enabled.Load() {
		SessionsActive.Set(float64(n))
	}
}
