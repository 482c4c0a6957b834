package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"mercator-hq/shuttle/pkg/config"
)

// ScopeMetrics tracks request scopes opened by the context middleware.
type ScopeMetrics struct {
	active             prometheus.Gauge
	opened             prometheus.Counter
	extractionFailures prometheus.Counter
}

// NewScopeMetrics creates and registers scope metrics with the provided registry.
func NewScopeMetrics(cfg *config.MetricsConfig, registry *prometheus.Registry) *ScopeMetrics {
	sm := &ScopeMetrics{
		active: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: cfg.Namespace,
			Subsystem: cfg.Subsystem,
			Name:      "scopes_active",
			Help:      "Number of request scopes currently open",
		}),
		opened: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: cfg.Namespace,
			Subsystem: cfg.Subsystem,
			Name:      "scopes_total",
			Help:      "Total number of request scopes opened",
		}),
		extractionFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: cfg.Namespace,
			Subsystem: cfg.Subsystem,
			Name:      "scope_extraction_failures_total",
			Help:      "Total number of requests rejected because scope extraction failed",
		}),
	}

	registry.MustRegister(sm.active, sm.opened, sm.extractionFailures)
	return sm
}

// StreamMetrics tracks streamed response bodies.
//
// Metrics:
//   - shuttle_http_streams_active: streams currently being written
//   - shuttle_http_stream_chunks_total: chunks written
//   - shuttle_http_stream_bytes_total: bytes written
//   - shuttle_http_streams_total: finished streams by outcome
//   - shuttle_http_stream_duration_seconds: stream lifetime histogram
type StreamMetrics struct {
	active   *prometheus.GaugeVec
	chunks   *prometheus.CounterVec
	bytes    *prometheus.CounterVec
	closed   *prometheus.CounterVec
	duration *prometheus.HistogramVec
}

// NewStreamMetrics creates and registers stream metrics with the provided registry.
func NewStreamMetrics(cfg *config.MetricsConfig, registry *prometheus.Registry) *StreamMetrics {
	sm := &StreamMetrics{
		active: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "streams_active",
				Help:      "Number of streamed responses currently being written",
			},
			[]string{"media_type"},
		),
		chunks: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "stream_chunks_total",
				Help:      "Total number of chunks written to streamed responses",
			},
			[]string{"media_type"},
		),
		bytes: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "stream_bytes_total",
				Help:      "Total number of bytes written to streamed responses",
			},
			[]string{"media_type"},
		),
		closed: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "streams_total",
				Help:      "Total number of finished streamed responses by outcome",
			},
			[]string{"media_type", "outcome"},
		),
		duration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "stream_duration_seconds",
				Help:      "Lifetime of streamed responses in seconds",
				Buckets:   cfg.RequestDurationBuckets,
			},
			[]string{"media_type", "outcome"},
		),
	}

	registry.MustRegister(sm.active, sm.chunks, sm.bytes, sm.closed, sm.duration)
	return sm
}

// RecordClosed records a finished stream.
func (sm *StreamMetrics) RecordClosed(mediaType, outcome string, duration time.Duration) {
	sm.closed.WithLabelValues(mediaType, outcome).Inc()
	sm.duration.WithLabelValues(mediaType, outcome).Observe(duration.Seconds())
}

// LimitMetrics counts streams rejected by per-caller limits.
type LimitMetrics struct {
	rejected *prometheus.CounterVec
}

// NewLimitMetrics creates and registers limit metrics with the provided registry.
func NewLimitMetrics(cfg *config.MetricsConfig, registry *prometheus.Registry) *LimitMetrics {
	lm := &LimitMetrics{
		rejected: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "stream_limit_rejections_total",
				Help:      "Total number of streams rejected by per-caller limits",
			},
			[]string{"reason"},
		),
	}

	registry.MustRegister(lm.rejected)
	return lm
}
