// Package worker implements the transient client that pulls chunks from the
// coordinator, runs the primality oracle on them and reports the results.
//
// A worker is strictly synchronous: it has at most one request outstanding,
// and it computes each chunk on the calling goroutine. Parallelism comes from
// running more workers, not from concurrency inside one.
//
//	┌────────┐ request  ┌─────────────┐
//	│ Worker │ ───────▶ │ Coordinator │
//	│        │ ◀─────── │             │  task [lo,hi]  or  done
//	│ oracle │          │             │
//	│        │ result ▶ │             │  (no reply)
//	└────────┘          └─────────────┘
//
// The receive has no timeout. If the coordinator disappears, Run blocks until
// its context is canceled.
package worker

import (
	"context"
	"errors"
	"fmt"
	"net"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/dreamware/primeshard/internal/metrics"
	"github.com/dreamware/primeshard/internal/primes"
	"github.com/dreamware/primeshard/internal/protocol"
)

// ErrUnexpectedReply is returned when the coordinator answers a request with
// something other than task or done.
var ErrUnexpectedReply = errors.New("unexpected reply")

// Config holds worker settings.
type Config struct {
	// CoordinatorAddr is the coordinator's UDP host:port.
	CoordinatorAddr string

	// BindAddr is the local UDP address. Defaults to an ephemeral port on all interfaces.
	BindAddr string

	// MaxDatagramSize is the receive buffer size and the cap on outgoing
	// results. Defaults to protocol.DefaultMaxDatagramSize.
	MaxDatagramSize int
}

// Summary reports what a worker did before it stopped.
type Summary struct {
	Chunks int // Chunks computed and reported
	Primes int // Primes reported across all chunks
}

// Option configures a Worker.
type Option func(*Worker)

// WithOracle replaces the default sieve.
func WithOracle(o primes.Oracle) Option {
	return func(w *Worker) { w.oracle = o }
}

// WithLogger sets the logger. Defaults to the logrus standard logger.
func WithLogger(l logrus.FieldLogger) Option {
	return func(w *Worker) { w.log = l }
}

// WithMetrics sets the metrics collector. Defaults to a no-op collector.
func WithMetrics(m metrics.Collector) Option {
	return func(w *Worker) { w.metrics = m }
}

// Worker runs the request, compute, report cycle against one coordinator.
type Worker struct {
	cfg     Config
	oracle  primes.Oracle
	log     logrus.FieldLogger
	metrics metrics.Collector
}

// New creates a Worker. The coordinator address is resolved by Run, not here.
func New(cfg Config, opts ...Option) *Worker {
	if cfg.BindAddr == "" {
		cfg.BindAddr = ":0"
	}
	if cfg.MaxDatagramSize <= 0 {
		cfg.MaxDatagramSize = protocol.DefaultMaxDatagramSize
	}
	w := &Worker{
		cfg:     cfg,
		oracle:  primes.Sieve,
		log:     logrus.StandardLogger(),
		metrics: metrics.NewNop(),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Run loops until the coordinator replies done, ctx is canceled, or a
// protocol or transport error occurs. The socket is released on return.
//
// Returns:
//   - Summary and nil on done
//   - Summary and ctx.Err() on cancellation
//   - Summary and an error wrapping protocol.ErrOversizedPayload,
//     protocol.ErrMalformed (and friends) or ErrUnexpectedReply otherwise
func (w *Worker) Run(ctx context.Context) (Summary, error) {
	var sum Summary

	coord, err := net.ResolveUDPAddr("udp", w.cfg.CoordinatorAddr)
	if err != nil {
		return sum, fmt.Errorf("resolve coordinator %q: %w", w.cfg.CoordinatorAddr, err)
	}
	conn, err := net.ListenPacket("udp", w.cfg.BindAddr)
	if err != nil {
		return sum, fmt.Errorf("bind %s: %w", w.cfg.BindAddr, err)
	}
	defer conn.Close()

	stop := context.AfterFunc(ctx, func() { conn.Close() })
	defer stop()

	log := w.log.WithFields(logrus.Fields{
		"local":       conn.LocalAddr().String(),
		"coordinator": coord.String(),
	})
	log.Debug("worker started")

	request, err := protocol.Encode(protocol.Request())
	if err != nil {
		return sum, err
	}
	buf := make([]byte, w.cfg.MaxDatagramSize+1)

	for {
		if _, err := conn.WriteTo(request, coord); err != nil {
			return sum, w.transportErr(ctx, "send request", err)
		}

		n, _, err := conn.ReadFrom(buf)
		if err != nil {
			return sum, w.transportErr(ctx, "receive reply", err)
		}
		if n > w.cfg.MaxDatagramSize {
			return sum, fmt.Errorf("receive reply: %w (limit %d bytes)", protocol.ErrOversizedPayload, w.cfg.MaxDatagramSize)
		}

		reply, err := protocol.Decode(buf[:n])
		if err != nil {
			return sum, fmt.Errorf("decode reply: %w", err)
		}

		switch reply.Type {
		case protocol.TypeDone:
			log.WithFields(logrus.Fields{
				"chunks": sum.Chunks,
				"primes": sum.Primes,
			}).Info("no tasks available, worker exiting")
			return sum, nil

		case protocol.TypeTask:
			r := *reply.Range
			start := time.Now()
			found := w.oracle(r.Lo, r.Hi)
			elapsed := time.Since(start)
			w.metrics.ChunkComputed(elapsed.Seconds(), len(found))

			if size := protocol.EncodedResultSize(found); size > w.cfg.MaxDatagramSize {
				return sum, fmt.Errorf("result for %v is %d bytes: %w (limit %d)",
					r, size, protocol.ErrOversizedPayload, w.cfg.MaxDatagramSize)
			}
			payload, err := protocol.Encode(protocol.Result(found))
			if err != nil {
				return sum, err
			}
			if _, err := conn.WriteTo(payload, coord); err != nil {
				return sum, w.transportErr(ctx, "send result", err)
			}

			sum.Chunks++
			sum.Primes += len(found)
			log.WithFields(logrus.Fields{
				"chunk":    r.String(),
				"primes":   len(found),
				"duration": elapsed,
			}).Debug("reported chunk")

		default:
			return sum, fmt.Errorf("%w: %s", ErrUnexpectedReply, reply.Type)
		}
	}
}

// transportErr prefers the context error when cancellation closed the socket.
func (w *Worker) transportErr(ctx context.Context, op string, err error) error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return ctxErr
	}
	return fmt.Errorf("%s: %w", op, err)
}
