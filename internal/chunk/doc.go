// Package chunk defines the closed integer interval used throughout primeshard
// to describe both the total problem space and the chunks carved from it.
//
// # Overview
//
// A Range is the unit of work in the system. The coordinator owns one
// TotalRange for its whole lifetime and slices it into consecutive chunks of
// at most ChunkSize values. Each chunk travels to exactly one worker inside a
// task message and is never reissued.
//
//	TotalRange [1, 100]   ChunkSize 25
//	┌──────────┬──────────┬──────────┬──────────┐
//	│ [1,25]   │ [26,50]  │ [51,75]  │ [76,100] │
//	└──────────┴──────────┴──────────┴──────────┘
//	  chunk 0    chunk 1    chunk 2    chunk 3
//
// # Invariants
//
//   - Lo <= Hi for every Range produced by New or Parse
//   - Ranges are values; nothing mutates a Range after construction
//   - Both bounds are inclusive
//
// # Wire Format
//
// A Range encodes to JSON as a two element array, matching the task message:
//
//	{"type": "task", "range": [26, 50]}
//
// # Usage
//
//	total, err := chunk.New(1, 100000)
//	if err != nil {
//	    return err
//	}
//	fmt.Println(total.Size()) // 100000
//
//	r, err := chunk.Parse("1-30")
package chunk
