package primes

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/exp/slices"
)

// TestSieve tests the oracle against known chunk results
func TestSieve(t *testing.T) {
	tests := []struct {
		name   string
		lo, hi int64
		want   []int64
	}{
		{name: "first chunk", lo: 1, hi: 10, want: []int64{2, 3, 5, 7}},
		{name: "second chunk", lo: 11, hi: 20, want: []int64{11, 13, 17, 19}},
		{name: "third chunk", lo: 21, hi: 30, want: []int64{23, 29}},
		{name: "no primes", lo: 24, hi: 28, want: nil},
		{name: "below two", lo: -10, hi: 1, want: nil},
		{name: "single prime", lo: 97, hi: 97, want: []int64{97}},
		{name: "single composite", lo: 91, hi: 91, want: nil},
		{name: "window above sqrt", lo: 1000, hi: 1030, want: []int64{1009, 1013, 1019, 1021}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Sieve(tt.lo, tt.hi)
			if len(tt.want) == 0 {
				assert.Empty(t, got)
				return
			}
			assert.Equal(t, tt.want, got)
		})
	}
}

// TestSieveMatchesTrialDivision cross-checks the segmented sieve against IsPrime
func TestSieveMatchesTrialDivision(t *testing.T) {
	windows := [][2]int64{{1, 500}, {9973, 10100}, {99900, 100000}, {2, 2}, {4, 4}}
	for _, w := range windows {
		got := Sieve(w[0], w[1])
		require.True(t, slices.IsSorted(got), "oracle output must be sorted")

		var want []int64
		for n := w[0]; n <= w[1]; n++ {
			if IsPrime(n) {
				want = append(want, n)
			}
		}
		if len(want) == 0 {
			assert.Empty(t, got, "window %v", w)
			continue
		}
		assert.Equal(t, want, got, "window %v", w)
	}
}

func TestCount(t *testing.T) {
	assert.Equal(t, 25, Count(1, 100))
	assert.Equal(t, 168, Count(1, 1000))
	assert.Equal(t, 9592, Count(1, 100000))
}

func TestIsPrime(t *testing.T) {
	primes := []int64{2, 3, 5, 7, 11, 13, 7919, 104729}
	for _, p := range primes {
		assert.True(t, IsPrime(p), "%d is prime", p)
	}
	composites := []int64{-7, 0, 1, 4, 9, 25, 49, 7917, 104730}
	for _, c := range composites {
		assert.False(t, IsPrime(c), "%d is not prime", c)
	}
}

// TestMaxInWindow checks the bound never undercounts the densest windows
func TestMaxInWindow(t *testing.T) {
	assert.Equal(t, int64(0), MaxInWindow(0))
	assert.Equal(t, int64(1), MaxInWindow(1))
	assert.Equal(t, int64(2), MaxInWindow(3))

	for _, width := range []int64{4, 10, 25, 100, 1000, 5000} {
		actual := int64(Count(1, width))
		assert.GreaterOrEqual(t, MaxInWindow(width), actual, "width %d", width)
		assert.LessOrEqual(t, MaxInWindow(width), width, "width %d", width)
	}
}
