package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// AnnotationMetrics tracks annotation lifecycle activity.
type AnnotationMetrics struct {
	registry *prometheus.Registry

	transitionsTotal     *prometheus.CounterVec
	batchCandidatesTotal *prometheus.CounterVec
	detectorCallsTotal   *prometheus.CounterVec
	detectorDuration     prometheus.Histogram

	collectors []prometheus.Collector
}

// NewAnnotationMetrics creates and registers annotation lifecycle metrics
func NewAnnotationMetrics(registry *prometheus.Registry) (*AnnotationMetrics, error) {
	m := &AnnotationMetrics{registry: registry}
	m.initMetrics()
	if err := registry.Register(m); err != nil {
		return nil, err
	}
	return m, nil
}

func (m *AnnotationMetrics) initMetrics() {
	m.transitionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "annotation_transitions_total",
			Help: "Total number of annotation lifecycle transitions",
		},
		[]string{"kind"}, // created, edited, confirmed, deleted, batch
	)

	m.batchCandidatesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "annotation_batch_candidates_total",
			Help: "Detection candidates seen by batch creation",
		},
		[]string{"result"}, // accepted, dropped
	)

	m.detectorCallsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "annotation_detector_calls_total",
			Help: "Calls to the external detection service",
		},
		[]string{"status"},
	)

	m.detectorDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "annotation_detector_duration_seconds",
			Help:    "Latency of the external detection service",
			Buckets: prometheus.ExponentialBuckets(BucketStart1ms, BucketFactor2, BucketCount15),
		},
	)

	m.collectors = []prometheus.Collector{
		m.transitionsTotal,
		m.batchCandidatesTotal,
		m.detectorCallsTotal,
		m.detectorDuration,
	}
}

// Describe implements the prometheus.Collector interface
func (m *AnnotationMetrics) Describe(ch chan<- *prometheus.Desc) {
	for _, collector := range m.collectors {
		collector.Describe(ch)
	}
}

// Collect implements the prometheus.Collector interface
func (m *AnnotationMetrics) Collect(ch chan<- prometheus.Metric) {
	for _, collector := range m.collectors {
		collector.Collect(ch)
	}
}

// RecordTransition counts one lifecycle transition.
func (m *AnnotationMetrics) RecordTransition(kind string) {
	m.transitionsTotal.WithLabelValues(kind).Inc()
}

// RecordBatch counts accepted and dropped batch candidates.
func (m *AnnotationMetrics) RecordBatch(accepted, dropped int) {
	m.batchCandidatesTotal.WithLabelValues("accepted").Add(float64(accepted))
	m.batchCandidatesTotal.WithLabelValues("dropped").Add(float64(dropped))
}

// RecordDetectorCall records one detection service round trip.
func (m *AnnotationMetrics) RecordDetectorCall(status string, seconds float64) {
	m.detectorCallsTotal.WithLabelValues(status).Inc()
	m.detectorDuration.Observe(seconds)
}
