// Package storage holds the coordinator's result state and the sinks that
// persist it.
//
// # Overview
//
// Two concerns live here:
//
//	┌──────────────────────────┐        ┌──────────────────────────┐
//	│     ResultAggregator     │ Snap-  │          Sink            │
//	│  Merge(primes) ×N        │ shot() │  FileSink   MemorySink   │
//	│  Count / Reports         │ ─────▶ │  one integer per line    │
//	└──────────────────────────┘        └──────────────────────────┘
//
// ResultAggregator is mutated concurrently by every handler that decodes a
// result message. It is guarded by its own mutex, independent of the chunk
// allocator's lock, so issuing chunks and merging results never serialize
// against each other.
//
// A Sink receives the aggregate once, at finalization.
//
// # Ordering
//
// Values are kept in accumulation order: the order in which result messages
// happened to be merged. The persisted file is therefore not numerically
// sorted, and two runs over the same range generally produce different files
// with the same set of values.
//
// # File Format
//
// FileSink writes UTF-8 text, one base-10 integer per line, each line
// terminated by '\n':
//
//	2
//	3
//	5
//	7
//	11
//
// ReadFile reads the same format back.
//
// # Thread Safety
//
// All exported types are safe for concurrent use.
package storage
