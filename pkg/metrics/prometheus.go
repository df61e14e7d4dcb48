package metrics

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Recorder implements domain repository.Metrics using Prometheus.
type Recorder struct {
	evaluations   *prometheus.CounterVec
	filtered      *prometheus.CounterVec
	manipulations *prometheus.CounterVec
	errorsTotal   *prometheus.CounterVec
	lastScore     *prometheus.GaugeVec
	queueDepth    *prometheus.GaugeVec
	latency       *prometheus.HistogramVec
}

// New creates a new Prometheus metrics recorder.
func New() *Recorder {
	return &Recorder{
		evaluations: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "confluence_evaluations_total",
				Help: "Total number of confluence evaluations by quality level",
			},
			[]string{"symbol", "quality"},
		),
		filtered: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "confluence_filtered_total",
				Help: "Total number of filtered signals by reason",
			},
			[]string{"reason"},
		),
		manipulations: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "confluence_manipulation_detections_total",
				Help: "Total number of manipulation detections by pattern",
			},
			[]string{"symbol", "pattern"},
		),
		errorsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "confluence_errors_total",
				Help: "Total number of errors encountered",
			},
			[]string{"type"},
		),
		lastScore: promauto.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "confluence_last_score",
				Help: "Last confluence score for a symbol",
			},
			[]string{"symbol"},
		),
		queueDepth: promauto.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "confluence_pipeline_queue_depth",
				Help: "Buffered cycles per pipeline worker",
			},
			[]string{"worker"},
		),
		latency: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "confluence_operation_duration_seconds",
				Help:    "Duration of operations in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"operation"},
		),
	}
}

// RecordEvaluation records a completed evaluation and its quality level.
func (r *Recorder) RecordEvaluation(symbol, quality string) {
	r.evaluations.WithLabelValues(symbol, quality).Inc()
}

// RecordFilter records a suppressed signal by reason.
func (r *Recorder) RecordFilter(reason string) {
	r.filtered.WithLabelValues(reason).Inc()
}

// RecordScore records the last confluence score for a symbol.
func (r *Recorder) RecordScore(symbol string, score float64) {
	r.lastScore.WithLabelValues(symbol).Set(score)
}

// RecordManipulation records a manipulation detection.
func (r *Recorder) RecordManipulation(symbol, pattern string) {
	r.manipulations.WithLabelValues(symbol, pattern).Inc()
}

// RecordError records an error occurrence.
func (r *Recorder) RecordError(kind string) {
	r.errorsTotal.WithLabelValues(kind).Inc()
}

// RecordQueueDepth records the buffered cycle count for one pipeline worker.
func (r *Recorder) RecordQueueDepth(worker int, depth int) {
	r.queueDepth.WithLabelValues(strconv.Itoa(worker)).Set(float64(depth))
}

// RecordLatency records operation latency in seconds.
func (r *Recorder) RecordLatency(op string, seconds float64) {
	r.latency.WithLabelValues(op).Observe(seconds)
}
