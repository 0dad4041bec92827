// Package metrics defines the instrumentation hooks used by the coordinator
// and workers, with a Prometheus implementation and a no-op default.
package metrics

// Collector receives protocol events. Implementations must be safe for
// concurrent use; the coordinator calls them from every handler goroutine.
type Collector interface {
	// ChunkIssued records a task reply.
	ChunkIssued(size int64)
	// RequestDenied records a done reply to a request (allocator exhausted).
	RequestDenied()
	// ResultMerged records a merged result message carrying count primes.
	ResultMerged(count int)
	// MessageDropped records a datagram that could not be handled, by reason.
	MessageDropped(reason string)
	// SetEndpoints records the size of the endpoint registry.
	SetEndpoints(n int)
	// SetState records the coordinator state, as its numeric value.
	SetState(state int)
	// ChunkComputed records a worker finishing one chunk.
	ChunkComputed(seconds float64, count int)
}

// Drop reasons reported through MessageDropped.
const (
	ReasonMalformed   = "malformed"
	ReasonUnexpected  = "unexpected_type"
	ReasonOversized   = "oversized"
	ReasonSendFailure = "send_failure"
)

// NopCollector discards every event.
type NopCollector struct{}

// Compile-time assertion that NopCollector implements Collector.
var _ Collector = (*NopCollector)(nil)

// NewNop creates a collector that discards everything.
func NewNop() *NopCollector {
	return &NopCollector{}
}

// ChunkIssued discards the event.
func (NopCollector) ChunkIssued(_ /* size */ int64) {}

// RequestDenied discards the event.
func (NopCollector) RequestDenied() {}

// ResultMerged discards the event.
func (NopCollector) ResultMerged(_ /* count */ int) {}

// MessageDropped discards the event.
func (NopCollector) MessageDropped(_ /* reason */ string) {}

// SetEndpoints discards the event.
func (NopCollector) SetEndpoints(_ /* n */ int) {}

// SetState discards the event.
func (NopCollector) SetState(_ /* state */ int) {}

// ChunkComputed discards the event.
func (NopCollector) ChunkComputed(_ /* seconds */ float64, _ /* count */ int) {}
