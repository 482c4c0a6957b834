package metrics

import (
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"mercator-hq/shuttle/pkg/config"
	"mercator-hq/shuttle/pkg/limits"
	"mercator-hq/shuttle/pkg/scope"
	"mercator-hq/shuttle/pkg/stream"
)

// DefaultMaxRoutes bounds the number of distinct route labels.
const DefaultMaxRoutes = 1000

// otherRoute replaces route labels past the cardinality limit.
const otherRoute = "other"

// Collector owns every shuttle metric. It receives request outcomes from
// the HTTP middleware and implements scope.Observer and stream.Observer so
// it can be installed on the context middleware and as the process-wide
// stream observer. It also counts limits.Limiter rejections.
type Collector struct {
	config   *config.MetricsConfig
	registry *prometheus.Registry

	requestMetrics *RequestMetrics
	scopeMetrics   *ScopeMetrics
	streamMetrics  *StreamMetrics
	limitMetrics   *LimitMetrics

	routes *CardinalityLimiter
}

var (
	_ scope.Observer  = (*Collector)(nil)
	_ stream.Observer = (*Collector)(nil)
	_ limits.Observer = (*Collector)(nil)
)

// NewCollector creates a collector and registers its metrics, plus the Go
// runtime and process collectors, with registry. A nil registry gets a
// fresh one.
//
// Example:
//
//	collector := metrics.NewCollector(&cfg.Telemetry.Metrics, nil)
//	stream.SetObserver(collector)
//	mux.Handle(cfg.Telemetry.Metrics.Path, collector.Handler())
func NewCollector(cfg *config.MetricsConfig, registry *prometheus.Registry) *Collector {
	if registry == nil {
		registry = prometheus.NewRegistry()
	}

	if cfg.Namespace == "" {
		cfg.Namespace = config.DefaultMetricsNamespace
	}
	if cfg.Subsystem == "" {
		cfg.Subsystem = config.DefaultMetricsSubsystem
	}
	if len(cfg.RequestDurationBuckets) == 0 {
		cfg.RequestDurationBuckets = append([]float64(nil), config.DefaultDurationBuckets...)
	}

	c := &Collector{
		config:   cfg,
		registry: registry,
		routes:   NewCardinalityLimiter(DefaultMaxRoutes),
	}

	c.requestMetrics = NewRequestMetrics(cfg, registry)
	c.scopeMetrics = NewScopeMetrics(cfg, registry)
	c.streamMetrics = NewStreamMetrics(cfg, registry)
	c.limitMetrics = NewLimitMetrics(cfg, registry)

	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	return c
}

// RequestStarted marks a request as in flight.
func (c *Collector) RequestStarted() {
	if !c.config.Enabled {
		return
	}
	c.requestMetrics.inFlight.Inc()
}

// RequestFinished records a completed request. route should be the
// matched route pattern rather than the raw path.
func (c *Collector) RequestFinished(method, route string, status int, duration time.Duration, size int64) {
	if !c.config.Enabled {
		return
	}
	if !c.routes.Allow(route) {
		route = otherRoute
	}
	c.requestMetrics.inFlight.Dec()
	c.requestMetrics.RecordRequest(method, route, strconv.Itoa(status), duration, size)
}

// ScopeOpened implements scope.Observer.
func (c *Collector) ScopeOpened() {
	if !c.config.Enabled {
		return
	}
	c.scopeMetrics.active.Inc()
	c.scopeMetrics.opened.Inc()
}

// ScopeClosed implements scope.Observer.
func (c *Collector) ScopeClosed() {
	if !c.config.Enabled {
		return
	}
	c.scopeMetrics.active.Dec()
}

// ExtractionFailed implements scope.Observer.
func (c *Collector) ExtractionFailed() {
	if !c.config.Enabled {
		return
	}
	c.scopeMetrics.extractionFailures.Inc()
}

// StreamOpened implements stream.Observer.
func (c *Collector) StreamOpened(mediaType string) {
	if !c.config.Enabled {
		return
	}
	c.streamMetrics.active.WithLabelValues(mediaType).Inc()
}

// ChunkSent implements stream.Observer.
func (c *Collector) ChunkSent(mediaType string, bytes int) {
	if !c.config.Enabled {
		return
	}
	c.streamMetrics.chunks.WithLabelValues(mediaType).Inc()
	c.streamMetrics.bytes.WithLabelValues(mediaType).Add(float64(bytes))
}

// StreamClosed implements stream.Observer.
func (c *Collector) StreamClosed(mediaType string, outcome stream.Outcome, duration time.Duration) {
	if !c.config.Enabled {
		return
	}
	c.streamMetrics.active.WithLabelValues(mediaType).Dec()
	c.streamMetrics.RecordClosed(mediaType, string(outcome), duration)
}

// StreamRejected implements limits.Observer.
func (c *Collector) StreamRejected(reason string) {
	if !c.config.Enabled {
		return
	}
	c.limitMetrics.rejected.WithLabelValues(reason).Inc()
}

// Registry returns the Prometheus registry used by this collector.
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

// CardinalityLimiter prevents metric cardinality explosion by limiting
// the number of unique label values.
type CardinalityLimiter struct {
	maxCardinality int
	current        map[string]struct{}
	mu             sync.RWMutex
}

// NewCardinalityLimiter creates a new cardinality limiter with the specified
// maximum cardinality.
func NewCardinalityLimiter(maxCardinality int) *CardinalityLimiter {
	return &CardinalityLimiter{
		maxCardinality: maxCardinality,
		current:        make(map[string]struct{}),
	}
}

// Allow reports whether value may be used as a label. Values already seen
// are always allowed; new ones only while under the limit.
func (cl *CardinalityLimiter) Allow(value string) bool {
	cl.mu.RLock()
	if _, exists := cl.current[value]; exists {
		cl.mu.RUnlock()
		return true
	}
	cl.mu.RUnlock()

	cl.mu.Lock()
	defer cl.mu.Unlock()

	if _, exists := cl.current[value]; exists {
		return true
	}
	if len(cl.current) >= cl.maxCardinality {
		return false
	}
	cl.current[value] = struct{}{}
	return true
}

// Count returns the number of distinct values allowed so far.
func (cl *CardinalityLimiter) Count() int {
	cl.mu.RLock()
	defer cl.mu.RUnlock()
	return len(cl.current)
}
