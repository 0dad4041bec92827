// Package coordinator implements the coordinator side of primeshard: it
// partitions a numeric range into chunks, hands each chunk to exactly one
// worker over UDP, merges the primes workers report, and persists the
// aggregate once the run is complete.
//
// # Overview
//
// The coordinator is a single datagram service. It does not know workers in
// advance and does not track which worker holds which chunk: any endpoint
// that sends a request gets the next chunk, and any result that arrives is
// merged.
//
// # Architecture
//
//	┌──────────────────────────────────────────────┐
//	│                 Coordinator                  │
//	├──────────────────────────────────────────────┤
//	│  read loop ─▶ handler pool (bounded)         │
//	│                                              │
//	│  ┌────────────────┐  ┌────────────────────┐  │
//	│  │ ChunkAllocator │  │ ResultAggregator   │  │
//	│  │ cursor + mutex │  │ primes + mutex     │  │
//	│  └────────────────┘  └────────────────────┘  │
//	│  ┌────────────────┐  ┌────────────────────┐  │
//	│  │ EndpointReg.   │  │ Sink               │  │
//	│  │ xsync.Map      │  │ (at finalization)  │  │
//	│  └────────────────┘  └────────────────────┘  │
//	└──────────────────────────────────────────────┘
//
// # Core Components
//
// ChunkAllocator: owns the partition cursor
//   - NextChunk returns consecutive, non-overlapping chunks exactly once
//   - Exhausted reports when the cursor has passed the end of the range
//   - Issued chunks are never reissued, even if their worker vanishes
//
// EndpointRegistry: remembers who asked for work
//   - Used only to broadcast done at shutdown
//   - Optional least-recently-seen cap
//
// Coordinator: the service loop and state machine
//   - Accepting → Draining → Finalizing → Stopped
//   - Malformed datagrams are logged, counted and dropped
//   - Finalization runs exactly once
//
// # Termination
//
// Two rules are available through Config.Termination:
//
//	outstanding (default)  exhausted AND reports >= issued
//	legacy                 exhausted AND the message just handled was a result
//
// The legacy rule can finalize while other chunks are still being computed;
// their results then arrive at a closed socket and are lost. The outstanding
// rule waits for as many results as chunks issued, so a worker that dies
// holding a chunk keeps the coordinator in Draining until DrainTimeout (if
// set) forces finalization with a partial aggregate.
//
// Neither rule correlates results with chunks. A duplicate result counts as a
// report and can end the run early; adversarial workers are out of scope.
//
// # Concurrency Model
//
// Handlers run concurrently up to Config.HandlerConcurrency. Each shared
// structure carries its own lock, so issuing a chunk never waits on a merge.
// The only suspension point is the socket read.
//
// # Example
//
//	coord, err := coordinator.New(coordinator.Config{
//	    Addr:      "127.0.0.1:9999",
//	    Total:     chunk.MustNew(1, 100000),
//	    ChunkSize: 1000,
//	}, coordinator.WithSink(storage.NewFileSink("data/primes.txt")))
//	if err != nil {
//	    log.Fatal(err)
//	}
//	if err := coord.ListenAndServe(ctx); err != nil {
//	    log.Fatal(err)
//	}
package coordinator
