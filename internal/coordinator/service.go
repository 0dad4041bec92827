package coordinator

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/dreamware/primeshard/internal/chunk"
	"github.com/dreamware/primeshard/internal/metrics"
	"github.com/dreamware/primeshard/internal/protocol"
	"github.com/dreamware/primeshard/internal/storage"
)

// ErrAlreadyServing is returned when Serve is called twice on one Coordinator.
var ErrAlreadyServing = errors.New("coordinator already serving")

// State is the coordinator lifecycle phase. States only move forward.
type State int32

const (
	// StateAccepting means chunks remain to be issued.
	StateAccepting State = iota
	// StateDraining means every chunk is issued and results are still expected.
	StateDraining
	// StateFinalizing means the aggregate is being persisted and done broadcast.
	StateFinalizing
	// StateStopped means the transport is closed and Serve has returned or is returning.
	StateStopped
)

func (s State) String() string {
	switch s {
	case StateAccepting:
		return "accepting"
	case StateDraining:
		return "draining"
	case StateFinalizing:
		return "finalizing"
	case StateStopped:
		return "stopped"
	default:
		return fmt.Sprintf("state(%d)", int32(s))
	}
}

// TerminationPolicy decides when a drained coordinator finalizes.
type TerminationPolicy string

const (
	// TerminationOutstanding finalizes once the allocator is exhausted and at
	// least as many results have arrived as chunks were issued.
	TerminationOutstanding TerminationPolicy = "outstanding"

	// TerminationLegacy finalizes on the first result handled after the
	// allocator is exhausted, even if other issued chunks have not reported.
	// Results still in flight at that moment are lost.
	TerminationLegacy TerminationPolicy = "legacy"
)

// Config holds the coordinator's construction-time settings.
// Nothing here is negotiated over the wire.
type Config struct {
	// Addr is the UDP bind address (host:port) used by ListenAndServe.
	Addr string

	// Total is the full range to partition.
	Total chunk.Range

	// ChunkSize is the maximum width of each issued chunk.
	ChunkSize int64

	// MaxDatagramSize is the receive buffer size. Defaults to protocol.DefaultMaxDatagramSize.
	MaxDatagramSize int

	// HandlerConcurrency bounds concurrently running message handlers.
	// Values <= 1 handle every datagram on the read loop itself.
	HandlerConcurrency int

	// MaxEndpoints caps the endpoint registry; <= 0 means unbounded.
	MaxEndpoints int

	// Termination selects the finalization rule. Defaults to TerminationOutstanding.
	Termination TerminationPolicy

	// DrainTimeout, when positive, finalizes with whatever has arrived if the
	// coordinator stays in StateDraining this long. Zero waits forever.
	DrainTimeout time.Duration
}

// Stats is a point-in-time view of coordinator progress.
type Stats struct {
	State     State
	Issued    int   // Chunks handed out
	NumChunks int   // Chunks the range partitions into
	Remaining int64 // Values not yet issued
	Reports   int   // Result messages merged
	Primes    int   // Values in the aggregate
	Endpoints int   // Distinct endpoints seen
	Dropped   int64 // Datagrams dropped
}

// Option configures a Coordinator.
type Option func(*Coordinator)

// WithLogger sets the logger. Defaults to the logrus standard logger.
func WithLogger(l logrus.FieldLogger) Option {
	return func(c *Coordinator) { c.log = l }
}

// WithMetrics sets the metrics collector. Defaults to a no-op collector.
func WithMetrics(m metrics.Collector) Option {
	return func(c *Coordinator) { c.metrics = m }
}

// WithSink sets where the aggregate is persisted. Defaults to a FileSink at storage.DefaultPath.
func WithSink(s storage.Sink) Option {
	return func(c *Coordinator) { c.sink = s }
}

// Coordinator is the network-facing service that issues chunks, merges
// results and finalizes the run.
//
// Architecture:
//
//	          datagram            ┌────────────────────┐
//	worker ─── request ─────────▶ │ handleRequest      │──▶ ChunkAllocator.NextChunk
//	       ◀── task / done ────── │                    │──▶ EndpointRegistry.Record
//	worker ─── result ──────────▶ │ handleResult       │──▶ ResultAggregator.Merge
//	                              │   └─ termination?  │──▶ finalize (once)
//	                              └────────────────────┘
//
// Locking: the allocator, the aggregator and the endpoint registry each guard
// their own state. The coordinator holds no lock of its own across them; the
// state machine is a single atomic value and finalization runs exactly once.
//
// Lifecycle:
//
//	Accepting ──(allocator exhausted)──▶ Draining ──(termination rule)──▶ Finalizing ──▶ Stopped
type Coordinator struct {
	cfg       Config
	alloc     *ChunkAllocator
	results   *storage.ResultAggregator
	endpoints *EndpointRegistry
	sink      storage.Sink
	log       logrus.FieldLogger
	metrics   metrics.Collector

	state   atomic.Int32
	dropped atomic.Int64
	serving atomic.Bool

	// conn is set once by Serve before any handler runs.
	conn net.PacketConn

	drainTimerMu sync.Mutex
	drainTimer   *time.Timer

	stopped  chan struct{}
	finalErr error // written by finalize before stopped is closed
}

// New creates a Coordinator for cfg.
//
// Returns an error when the range or chunk size is invalid or the
// termination policy is unknown.
func New(cfg Config, opts ...Option) (*Coordinator, error) {
	if cfg.MaxDatagramSize <= 0 {
		cfg.MaxDatagramSize = protocol.DefaultMaxDatagramSize
	}
	switch cfg.Termination {
	case "":
		cfg.Termination = TerminationOutstanding
	case TerminationOutstanding, TerminationLegacy:
	default:
		return nil, fmt.Errorf("unknown termination policy %q", cfg.Termination)
	}

	alloc, err := NewChunkAllocator(cfg.Total, cfg.ChunkSize)
	if err != nil {
		return nil, err
	}

	c := &Coordinator{
		cfg:       cfg,
		alloc:     alloc,
		results:   storage.NewResultAggregator(),
		endpoints: NewEndpointRegistry(cfg.MaxEndpoints),
		sink:      storage.NewFileSink(storage.DefaultPath),
		log:       logrus.StandardLogger(),
		metrics:   metrics.NewNop(),
		stopped:   make(chan struct{}),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.state.Store(int32(StateAccepting))
	c.metrics.SetState(int(StateAccepting))
	return c, nil
}

// ListenAndServe binds cfg.Addr over UDP and runs Serve on it.
// A bind failure is returned immediately.
func (c *Coordinator) ListenAndServe(ctx context.Context) error {
	conn, err := net.ListenPacket("udp", c.cfg.Addr)
	if err != nil {
		return fmt.Errorf("bind %s: %w", c.cfg.Addr, err)
	}
	c.log.WithFields(logrus.Fields{
		"addr":       conn.LocalAddr().String(),
		"range":      c.cfg.Total.String(),
		"chunk_size": c.cfg.ChunkSize,
		"chunks":     c.alloc.NumChunks(),
	}).Info("coordinator listening")
	return c.Serve(ctx, conn)
}

// Serve reads datagrams from conn until the run finalizes, ctx is canceled,
// or the transport fails. Serve owns conn and closes it on return.
//
// Returns:
//   - nil after a successful finalization
//   - the persistence error if finalization could not write the aggregate
//   - ctx.Err() if canceled before finalization (nothing is persisted)
//   - a wrapped transport error for any other read failure
func (c *Coordinator) Serve(ctx context.Context, conn net.PacketConn) error {
	if !c.serving.CompareAndSwap(false, true) {
		return ErrAlreadyServing
	}
	c.conn = conn
	defer conn.Close()

	stop := context.AfterFunc(ctx, func() { conn.Close() })
	defer stop()

	var (
		wg  sync.WaitGroup
		sem chan struct{}
	)
	if c.cfg.HandlerConcurrency > 1 {
		sem = make(chan struct{}, c.cfg.HandlerConcurrency)
	}

	// one extra byte detects datagrams larger than the configured size
	buf := make([]byte, c.cfg.MaxDatagramSize+1)
	for {
		n, addr, err := conn.ReadFrom(buf)
		if err != nil {
			wg.Wait()
			c.stopDrainTimer()
			if c.State() == StateStopped {
				return c.finalErr
			}
			if ctxErr := ctx.Err(); ctxErr != nil {
				c.log.WithFields(logrus.Fields{
					"issued":  c.alloc.Issued(),
					"reports": c.results.Reports(),
				}).Warn("coordinator canceled before finalization")
				return ctxErr
			}
			return fmt.Errorf("read datagram: %w", err)
		}
		if n > c.cfg.MaxDatagramSize {
			c.drop(addr, metrics.ReasonOversized, protocol.ErrOversizedPayload)
			continue
		}

		if sem == nil {
			c.handle(ctx, buf[:n], addr)
			continue
		}

		payload := make([]byte, n)
		copy(payload, buf[:n])
		sem <- struct{}{}
		wg.Add(1)
		go func() {
			defer wg.Done()
			defer func() { <-sem }()
			c.handle(ctx, payload, addr)
		}()
	}
}

// handle processes one datagram. Errors never escape a single cycle.
func (c *Coordinator) handle(ctx context.Context, payload []byte, addr net.Addr) {
	msg, err := protocol.Decode(payload)
	if err != nil {
		c.drop(addr, metrics.ReasonMalformed, err)
		return
	}

	switch msg.Type {
	case protocol.TypeRequest:
		c.handleRequest(addr)
	case protocol.TypeResult:
		c.handleResult(ctx, addr, msg.Primes)
	default:
		c.drop(addr, metrics.ReasonUnexpected, fmt.Errorf("%s is not a worker message", msg.Type))
	}
}

func (c *Coordinator) handleRequest(addr net.Addr) {
	if c.endpoints.Record(addr) {
		c.metrics.SetEndpoints(c.endpoints.Len())
	}

	r, ok := c.alloc.NextChunk()
	if !ok {
		c.metrics.RequestDenied()
		c.enterDraining()
		c.log.WithField("endpoint", addr.String()).Debug("no chunks left, replying done")
		c.send(addr, protocol.Done())
		return
	}

	c.metrics.ChunkIssued(r.Size())
	c.log.WithFields(logrus.Fields{
		"endpoint": addr.String(),
		"chunk":    r.String(),
	}).Debug("issued chunk")
	c.send(addr, protocol.Task(r))

	if c.alloc.Exhausted() {
		c.enterDraining()
	}
}

func (c *Coordinator) handleResult(ctx context.Context, addr net.Addr, primes []int64) {
	c.results.Merge(primes)
	c.metrics.ResultMerged(len(primes))
	c.log.WithFields(logrus.Fields{
		"endpoint": addr.String(),
		"primes":   len(primes),
	}).Debug("merged result")

	if c.shouldFinalize() {
		c.finalize(ctx, "all chunks reported")
	}
}

// shouldFinalize applies the termination policy after a result was merged.
func (c *Coordinator) shouldFinalize() bool {
	if !c.alloc.Exhausted() {
		return false
	}
	if c.cfg.Termination == TerminationLegacy {
		return true
	}
	return c.results.Reports() >= c.alloc.Issued()
}

func (c *Coordinator) enterDraining() {
	if !c.state.CompareAndSwap(int32(StateAccepting), int32(StateDraining)) {
		return
	}
	c.metrics.SetState(int(StateDraining))
	c.log.WithFields(logrus.Fields{
		"issued":  c.alloc.Issued(),
		"reports": c.results.Reports(),
	}).Info("all chunks issued, waiting for results")

	if c.cfg.DrainTimeout > 0 {
		c.drainTimerMu.Lock()
		c.drainTimer = time.AfterFunc(c.cfg.DrainTimeout, func() {
			c.finalize(context.Background(), "drain timeout")
		})
		c.drainTimerMu.Unlock()
	}
}

func (c *Coordinator) stopDrainTimer() {
	c.drainTimerMu.Lock()
	defer c.drainTimerMu.Unlock()
	if c.drainTimer != nil {
		c.drainTimer.Stop()
	}
}

// finalize persists the aggregate, broadcasts done and closes the transport.
// Only the first caller does anything.
func (c *Coordinator) finalize(ctx context.Context, reason string) {
	for {
		cur := State(c.state.Load())
		if cur >= StateFinalizing {
			return
		}
		if c.state.CompareAndSwap(int32(cur), int32(StateFinalizing)) {
			break
		}
	}
	c.metrics.SetState(int(StateFinalizing))
	c.stopDrainTimer()

	snapshot := c.results.Snapshot()
	issued, reports := c.alloc.Issued(), c.results.Reports()
	fields := logrus.Fields{
		"primes":  len(snapshot),
		"issued":  issued,
		"reports": reports,
		"reason":  reason,
	}
	if reports < issued {
		fields["missing_reports"] = issued - reports
	}
	c.log.WithFields(fields).Info("total primes found")

	receipt, err := c.sink.Persist(context.WithoutCancel(ctx), snapshot)
	if err != nil {
		c.finalErr = fmt.Errorf("persist results: %w", err)
		c.log.WithError(err).Error("failed to persist results")
	} else {
		c.log.WithFields(logrus.Fields{
			"location": receipt.Location,
			"count":    receipt.Count,
			"bytes":    receipt.Bytes,
			"digest":   fmt.Sprintf("%016x", receipt.Digest),
		}).Info("results saved")
	}

	c.broadcastDone()

	c.state.Store(int32(StateStopped))
	c.metrics.SetState(int(StateStopped))
	close(c.stopped)
	if c.conn != nil {
		c.conn.Close()
	}
}

// broadcastDone sends done to every endpoint that ever requested work.
// Delivery is best effort; failures are logged and skipped.
func (c *Coordinator) broadcastDone() {
	addrs := c.endpoints.Endpoints()
	for _, addr := range addrs {
		c.send(addr, protocol.Done())
	}
	c.log.WithField("endpoints", len(addrs)).Info("broadcast done")
}

func (c *Coordinator) send(addr net.Addr, msg protocol.Message) {
	data, err := protocol.Encode(msg)
	if err != nil {
		c.log.WithError(err).Error("encode reply")
		return
	}
	if _, err := c.conn.WriteTo(data, addr); err != nil {
		c.metrics.MessageDropped(metrics.ReasonSendFailure)
		c.log.WithError(err).WithFields(logrus.Fields{
			"endpoint": addr.String(),
			"type":     string(msg.Type),
		}).Warn("send failed")
	}
}

func (c *Coordinator) drop(addr net.Addr, reason string, err error) {
	c.dropped.Add(1)
	c.metrics.MessageDropped(reason)
	entry := c.log.WithField("reason", reason).WithError(err)
	if addr != nil {
		entry = entry.WithField("endpoint", addr.String())
	}
	entry.Warn("dropped datagram")
}

// State returns the current lifecycle state.
func (c *Coordinator) State() State {
	return State(c.state.Load())
}

// Stopped is closed once finalization has completed.
func (c *Coordinator) Stopped() <-chan struct{} {
	return c.stopped
}

// Results returns a copy of the aggregate in accumulation order.
func (c *Coordinator) Results() []int64 {
	return c.results.Snapshot()
}

// Stats returns a point-in-time view of progress.
func (c *Coordinator) Stats() Stats {
	return Stats{
		State:     c.State(),
		Issued:    c.alloc.Issued(),
		NumChunks: c.alloc.NumChunks(),
		Remaining: c.alloc.Remaining(),
		Reports:   c.results.Reports(),
		Primes:    c.results.Count(),
		Endpoints: c.endpoints.Len(),
		Dropped:   c.dropped.Load(),
	}
}
