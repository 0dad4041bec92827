// Package primes provides the primality oracle workers run against each chunk.
//
// The oracle is a pure function: given lo <= hi it returns the primes in
// [lo, hi] in ascending order. Workers accept any Oracle, so the sieve here
// can be swapped for another implementation without touching the protocol.
package primes

import "math"

// Oracle returns the sorted primes in the closed interval [lo, hi].
// Callers guarantee lo <= hi.
type Oracle func(lo, hi int64) []int64

// Sieve is the default Oracle. It runs a segmented sieve of Eratosthenes:
// base primes up to sqrt(hi) are sieved once, then used to strike composites
// in a window covering only [lo, hi]. Memory is proportional to the window
// size plus sqrt(hi), not to hi.
func Sieve(lo, hi int64) []int64 {
	if hi < 2 || lo > hi {
		return nil
	}
	if lo < 2 {
		lo = 2
	}

	base := simpleSieve(isqrt(hi))

	composite := make([]bool, hi-lo+1)
	for _, p := range base {
		start := p * p
		if start < lo {
			start = ((lo + p - 1) / p) * p
		}
		for m := start; m <= hi; m += p {
			composite[m-lo] = true
		}
	}

	out := make([]int64, 0, estimate(lo, hi))
	for i, c := range composite {
		if !c {
			out = append(out, lo+int64(i))
		}
	}
	return out
}

// IsPrime reports whether n is prime by trial division. It is the reference
// check used to verify persisted results and oracle output.
func IsPrime(n int64) bool {
	if n < 2 {
		return false
	}
	if n < 4 {
		return true
	}
	if n%2 == 0 || n%3 == 0 {
		return false
	}
	for i := int64(5); i*i <= n; i += 6 {
		if n%i == 0 || n%(i+2) == 0 {
			return false
		}
	}
	return true
}

// Count returns the number of primes in [lo, hi] using the default oracle.
func Count(lo, hi int64) int {
	return len(Sieve(lo, hi))
}

// MaxInWindow bounds the number of primes any window of width values can
// contain, using the Montgomery-Vaughan form of the Brun-Titchmarsh inequality
// pi(x+y) - pi(x) < 2y/ln(y). Used to size datagrams before any work runs.
func MaxInWindow(width int64) int64 {
	switch {
	case width <= 0:
		return 0
	case width <= 3:
		// [2,3] and [2,4] hold two primes; the asymptotic bound undershoots here
		return min(width, 2)
	}
	bound := int64(math.Ceil(2 * float64(width) / math.Log(float64(width))))
	return min(bound, width)
}

func simpleSieve(limit int64) []int64 {
	if limit < 2 {
		return nil
	}
	composite := make([]bool, limit+1)
	var out []int64
	for i := int64(2); i <= limit; i++ {
		if composite[i] {
			continue
		}
		out = append(out, i)
		for m := i * i; m <= limit; m += i {
			composite[m] = true
		}
	}
	return out
}

func isqrt(n int64) int64 {
	r := int64(math.Sqrt(float64(n)))
	for r*r > n {
		r--
	}
	for (r+1)*(r+1) <= n {
		r++
	}
	return r
}

func estimate(lo, hi int64) int64 {
	if hi < 10 {
		return 4
	}
	return MaxInWindow(hi - lo + 1)
}
