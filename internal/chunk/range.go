package chunk

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// ErrInvalidRange is returned when a lower bound exceeds its upper bound or a
// textual range cannot be parsed.
var ErrInvalidRange = errors.New("invalid range")

// Range is a closed interval [Lo, Hi] of integers.
//
// The zero value is the single-value range [0,0]. Use New to construct ranges
// from untrusted input so the Lo <= Hi invariant is checked.
type Range struct {
	Lo int64 // Inclusive lower bound
	Hi int64 // Inclusive upper bound
}

// New creates a Range after checking lo <= hi.
//
// Parameters:
//   - lo: Inclusive lower bound
//   - hi: Inclusive upper bound
//
// Returns:
//   - Range covering every integer in [lo, hi]
//   - ErrInvalidRange if lo > hi
//
// Example:
//
//	r, err := chunk.New(11, 20)
//	// r.Size() == 10
func New(lo, hi int64) (Range, error) {
	if lo > hi {
		return Range{}, fmt.Errorf("%w: lo %d > hi %d", ErrInvalidRange, lo, hi)
	}
	return Range{Lo: lo, Hi: hi}, nil
}

// MustNew is like New but panics on invalid bounds. Intended for tests and
// package-level literals.
func MustNew(lo, hi int64) Range {
	r, err := New(lo, hi)
	if err != nil {
		panic(err)
	}
	return r
}

// Parse reads a range written as "lo-hi", "lo,hi" or "lo:hi".
// Surrounding brackets are accepted so "[1,30]" round-trips with String.
//
// A leading minus sign is treated as part of the lower bound, so "-5-10"
// parses as [-5,10].
func Parse(s string) (Range, error) {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, "[")
	s = strings.TrimSuffix(s, "]")

	idx := -1
	for i := 1; i < len(s); i++ {
		if s[i] == '-' || s[i] == ',' || s[i] == ':' {
			idx = i
			break
		}
	}
	if idx < 0 {
		return Range{}, fmt.Errorf("%w: %q", ErrInvalidRange, s)
	}

	lo, err := strconv.ParseInt(strings.TrimSpace(s[:idx]), 10, 64)
	if err != nil {
		return Range{}, fmt.Errorf("%w: lower bound %q: %v", ErrInvalidRange, s[:idx], err)
	}
	hi, err := strconv.ParseInt(strings.TrimSpace(s[idx+1:]), 10, 64)
	if err != nil {
		return Range{}, fmt.Errorf("%w: upper bound %q: %v", ErrInvalidRange, s[idx+1:], err)
	}
	return New(lo, hi)
}

// Size returns the number of integers in the range.
func (r Range) Size() int64 {
	return r.Hi - r.Lo + 1
}

// Contains reports whether v lies within [Lo, Hi].
func (r Range) Contains(v int64) bool {
	return v >= r.Lo && v <= r.Hi
}

// Overlaps reports whether r and o share at least one value.
func (r Range) Overlaps(o Range) bool {
	return r.Lo <= o.Hi && o.Lo <= r.Hi
}

// Adjacent reports whether o starts immediately after r ends.
func (r Range) Adjacent(o Range) bool {
	return r.Hi+1 == o.Lo
}

// String formats the range as "[lo,hi]".
func (r Range) String() string {
	return fmt.Sprintf("[%d,%d]", r.Lo, r.Hi)
}

// MarshalJSON encodes the range as a two element array.
func (r Range) MarshalJSON() ([]byte, error) {
	return json.Marshal([2]int64{r.Lo, r.Hi})
}

// UnmarshalJSON decodes a two element array and enforces Lo <= Hi.
func (r *Range) UnmarshalJSON(data []byte) error {
	var bounds []int64
	if err := json.Unmarshal(data, &bounds); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidRange, err)
	}
	if len(bounds) != 2 {
		return fmt.Errorf("%w: want 2 bounds, got %d", ErrInvalidRange, len(bounds))
	}
	parsed, err := New(bounds[0], bounds[1])
	if err != nil {
		return err
	}
	*r = parsed
	return nil
}
