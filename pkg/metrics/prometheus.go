package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Recorder implements domain.repository.Metrics using Prometheus.
type Recorder struct {
	accepted   *prometheus.CounterVec
	rejected   *prometheus.CounterVec
	activeSize *prometheus.GaugeVec
	evictions  *prometheus.CounterVec
	errors     *prometheus.CounterVec
	latency    *prometheus.HistogramVec
}

// New creates a Prometheus metrics recorder.
func New() *Recorder {
	return &Recorder{
		accepted: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "signaldeck_signals_accepted_total",
				Help: "Total signals admitted into the lifecycle caches",
			},
			[]string{"source", "instrument"},
		),
		rejected: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "signaldeck_signals_rejected_total",
				Help: "Total inbound events dropped, by reason",
			},
			[]string{"source", "reason"},
		),
		activeSize: promauto.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "signaldeck_active_triggers",
				Help: "Current size of the active trigger cache",
			},
			[]string{"source"},
		),
		evictions: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "signaldeck_active_evictions_total",
				Help: "Active trigger entries evicted by TTL or capacity",
			},
			[]string{"source"},
		),
		errors: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "signaldeck_errors_total",
				Help: "Total errors encountered, by kind",
			},
			[]string{"type"},
		),
		latency: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "signaldeck_operation_duration_seconds",
				Help:    "Duration of engine operations in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"operation"},
		),
	}
}

func (r *Recorder) RecordAccepted(source, instrument string) {
	r.accepted.WithLabelValues(source, instrument).Inc()
}

func (r *Recorder) RecordRejected(source, reason string) {
	r.rejected.WithLabelValues(source, reason).Inc()
}

func (r *Recorder) RecordActiveSize(source string, n int) {
	r.activeSize.WithLabelValues(source).Set(float64(n))
}

func (r *Recorder) RecordEviction(source string) {
	r.evictions.WithLabelValues(source).Inc()
}

func (r *Recorder) RecordError(kind string) {
	r.errors.WithLabelValues(kind).Inc()
}

func (r *Recorder) RecordLatency(op string, seconds float64) {
	r.latency.WithLabelValues(op).Observe(seconds)
}
