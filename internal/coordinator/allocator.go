// Package coordinator implements the coordinator side of primeshard: chunk
// allocation, the endpoint registry and the datagram service loop.
// See doc.go for complete package documentation.
package coordinator

import (
	"errors"
	"fmt"
	"sync"

	"github.com/dreamware/primeshard/internal/chunk"
)

// ErrInvalidChunkSize is returned when the chunk size is not positive or is
// larger than the total range.
var ErrInvalidChunkSize = errors.New("invalid chunk size")

// ChunkAllocator hands out consecutive, non-overlapping chunks of a fixed
// total range, each exactly once.
//
// The allocator is the single source of truth for what remains to be issued.
// Its cursor points at the next unissued value and only moves forward:
//
//	total [1,100], chunkSize 25
//
//	cursor=1    NextChunk → [1,25]     cursor=26
//	cursor=26   NextChunk → [26,50]    cursor=51
//	cursor=51   NextChunk → [51,75]    cursor=76
//	cursor=76   NextChunk → [76,100]   cursor=101  (exhausted)
//	cursor=101  NextChunk → none       cursor=101
//
// Concurrency Model:
//   - One mutex guards the cursor and the issued counter
//   - The critical section is a few arithmetic operations and never blocks
//   - The cursor is never exposed; callers only see issued chunks
//
// Issued chunks are never taken back. A chunk whose worker disappears is lost
// from the allocator's point of view; any re-issuance policy would be layered
// on top of NextChunk/Exhausted rather than built into them.
type ChunkAllocator struct {
	// total is the full problem space. Immutable after construction.
	total chunk.Range

	// chunkSize is the maximum width of an issued chunk (> 0).
	chunkSize int64

	// mu protects cursor and issued.
	mu sync.Mutex

	// cursor is the next unissued value, in [total.Lo, total.Hi+1].
	cursor int64

	// issued counts chunks returned by NextChunk.
	issued int
}

// NewChunkAllocator creates an allocator over total with the given chunk size.
//
// Parameters:
//   - total: The full range to partition
//   - chunkSize: Maximum values per chunk (must be > 0 and <= total.Size())
//
// Returns:
//   - *ChunkAllocator positioned at total.Lo
//   - ErrInvalidChunkSize if chunkSize is out of bounds
//
// Example:
//
//	alloc, err := NewChunkAllocator(chunk.MustNew(1, 30), 10)
//	r, ok := alloc.NextChunk() // [1,10], true
func NewChunkAllocator(total chunk.Range, chunkSize int64) (*ChunkAllocator, error) {
	if total.Lo > total.Hi {
		return nil, fmt.Errorf("total %v: %w", total, chunk.ErrInvalidRange)
	}
	if chunkSize <= 0 {
		return nil, fmt.Errorf("%w: %d must be positive", ErrInvalidChunkSize, chunkSize)
	}
	if chunkSize > total.Size() {
		return nil, fmt.Errorf("%w: %d exceeds range size %d", ErrInvalidChunkSize, chunkSize, total.Size())
	}
	return &ChunkAllocator{
		total:     total,
		chunkSize: chunkSize,
		cursor:    total.Lo,
	}, nil
}

// NextChunk issues the next chunk, or reports false once the range is
// exhausted. Calling it after exhaustion keeps returning false.
//
// The returned chunks, across all callers, form a gapless partition of the
// total range in ascending order. Each is returned to exactly one caller.
func (a *ChunkAllocator) NextChunk() (chunk.Range, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.cursor > a.total.Hi {
		return chunk.Range{}, false
	}

	start := a.cursor
	end := a.total.Hi
	// start + chunkSize - 1 can overflow near MaxInt64; compare remaining width instead
	if a.total.Hi-start >= a.chunkSize {
		end = start + a.chunkSize - 1
	}
	a.cursor = end + 1
	a.issued++

	return chunk.Range{Lo: start, Hi: end}, true
}

// Exhausted reports whether every value of the total range has been issued.
func (a *ChunkAllocator) Exhausted() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.cursor > a.total.Hi
}

// Issued returns how many chunks have been handed out so far.
func (a *ChunkAllocator) Issued() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.issued
}

// Remaining returns how many values have not been issued yet.
func (a *ChunkAllocator) Remaining() int64 {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.total.Hi - a.cursor + 1
}

// NumChunks returns the total number of chunks the range partitions into.
func (a *ChunkAllocator) NumChunks() int {
	size := a.total.Size()
	return int((size + a.chunkSize - 1) / a.chunkSize)
}

// Total returns the range being partitioned.
func (a *ChunkAllocator) Total() chunk.Range {
	return a.total
}

// ChunkSize returns the configured maximum chunk width.
func (a *ChunkAllocator) ChunkSize() int64 {
	return a.chunkSize
}
