package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

// PrometheusCollector implements Collector backed by Prometheus.
//
// Collectors are created and registered lazily on first use, so constructing
// one is free and registering the same namespace twice only fails when both
// instances are actually exercised.
type PrometheusCollector struct {
	reg       prometheus.Registerer
	namespace string
	once      sync.Once

	chunksIssued    prometheus.Counter
	chunkValues     prometheus.Counter
	requestsDenied  prometheus.Counter
	resultsMerged   prometheus.Counter
	primesMerged    prometheus.Counter
	messagesDropped *prometheus.CounterVec
	endpoints       prometheus.Gauge
	state           prometheus.Gauge
	computeSeconds  prometheus.Histogram
	primesComputed  prometheus.Counter
}

// Compile-time assertion that PrometheusCollector implements Collector.
var _ Collector = (*PrometheusCollector)(nil)

// NewPrometheus creates a Prometheus-backed collector.
//
// Parameters:
//   - reg: Registerer to use (prometheus.DefaultRegisterer if nil)
//   - namespace: Metric namespace (defaults to "primeshard" if empty)
func NewPrometheus(reg prometheus.Registerer, namespace string) *PrometheusCollector {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	if namespace == "" {
		namespace = "primeshard"
	}
	return &PrometheusCollector{reg: reg, namespace: namespace}
}

func (p *PrometheusCollector) ensureRegistered() {
	p.once.Do(func() {
		p.chunksIssued = prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: p.namespace,
			Subsystem: "coordinator",
			Name:      "chunks_issued_total",
			Help:      "Chunks handed to workers.",
		})
		p.chunkValues = prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: p.namespace,
			Subsystem: "coordinator",
			Name:      "chunk_values_issued_total",
			Help:      "Integers covered by issued chunks.",
		})
		p.requestsDenied = prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: p.namespace,
			Subsystem: "coordinator",
			Name:      "requests_denied_total",
			Help:      "Requests answered with done because no chunks remained.",
		})
		p.resultsMerged = prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: p.namespace,
			Subsystem: "coordinator",
			Name:      "results_merged_total",
			Help:      "Result messages merged into the aggregate.",
		})
		p.primesMerged = prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: p.namespace,
			Subsystem: "coordinator",
			Name:      "primes_merged_total",
			Help:      "Primes merged into the aggregate.",
		})
		p.messagesDropped = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: p.namespace,
			Subsystem: "coordinator",
			Name:      "messages_dropped_total",
			Help:      "Datagrams dropped by reason (malformed, unexpected_type, oversized, send_failure).",
		}, []string{"reason"})
		p.endpoints = prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: p.namespace,
			Subsystem: "coordinator",
			Name:      "endpoints",
			Help:      "Distinct worker endpoints seen.",
		})
		p.state = prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: p.namespace,
			Subsystem: "coordinator",
			Name:      "state",
			Help:      "Coordinator state (0=accepting,1=draining,2=finalizing,3=stopped).",
		})
		p.computeSeconds = prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: p.namespace,
			Subsystem: "worker",
			Name:      "chunk_compute_seconds",
			Help:      "Time spent running the oracle on one chunk.",
			Buckets:   prometheus.ExponentialBuckets(0.0001, 4, 10), // 100µs .. ~26s
		})
		p.primesComputed = prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: p.namespace,
			Subsystem: "worker",
			Name:      "primes_found_total",
			Help:      "Primes found by this worker.",
		})

		p.reg.MustRegister(p.chunksIssued)
		p.reg.MustRegister(p.chunkValues)
		p.reg.MustRegister(p.requestsDenied)
		p.reg.MustRegister(p.resultsMerged)
		p.reg.MustRegister(p.primesMerged)
		p.reg.MustRegister(p.messagesDropped)
		p.reg.MustRegister(p.endpoints)
		p.reg.MustRegister(p.state)
		p.reg.MustRegister(p.computeSeconds)
		p.reg.MustRegister(p.primesComputed)
	})
}

// ChunkIssued increments issued chunks and the values they cover.
func (p *PrometheusCollector) ChunkIssued(size int64) {
	p.ensureRegistered()
	p.chunksIssued.Inc()
	p.chunkValues.Add(float64(size))
}

// RequestDenied increments denied requests.
func (p *PrometheusCollector) RequestDenied() {
	p.ensureRegistered()
	p.requestsDenied.Inc()
}

// ResultMerged increments merged results and primes.
func (p *PrometheusCollector) ResultMerged(count int) {
	p.ensureRegistered()
	p.resultsMerged.Inc()
	p.primesMerged.Add(float64(count))
}

// MessageDropped increments dropped datagrams for reason.
func (p *PrometheusCollector) MessageDropped(reason string) {
	p.ensureRegistered()
	p.messagesDropped.WithLabelValues(reason).Inc()
}

// SetEndpoints sets the endpoint gauge.
func (p *PrometheusCollector) SetEndpoints(n int) {
	p.ensureRegistered()
	p.endpoints.Set(float64(n))
}

// SetState sets the state gauge.
func (p *PrometheusCollector) SetState(state int) {
	p.ensureRegistered()
	p.state.Set(float64(state))
}

// ChunkComputed observes compute latency and counts found primes.
func (p *PrometheusCollector) ChunkComputed(seconds float64, count int) {
	p.ensureRegistered()
	p.computeSeconds.Observe(seconds)
	p.primesComputed.Add(float64(count))
}
