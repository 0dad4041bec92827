package storage

import "sync"

// ResultAggregator accumulates the primes reported for completed chunks.
// All methods are safe for concurrent use by many reporters.
//
// Results are appended in arrival order. Nothing is validated: the values
// are not checked for primality, and a result is not matched against the
// chunk it claims to answer, so duplicate or unsolicited reports are kept.
type ResultAggregator struct {
	mu      sync.Mutex // Protects primes and reports
	primes  []int64    // Accumulated values, arrival order, grows only
	reports int        // Number of Merge calls
}

// NewResultAggregator creates an empty aggregator.
func NewResultAggregator() *ResultAggregator {
	return &ResultAggregator{}
}

// Merge appends primes to the aggregate. An empty list still counts as a
// report, since a chunk may legitimately contain no primes.
func (a *ResultAggregator) Merge(primes []int64) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.primes = append(a.primes, primes...)
	a.reports++
}

// Count returns the number of values accumulated so far.
func (a *ResultAggregator) Count() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.primes)
}

// Reports returns the number of Merge calls so far.
func (a *ResultAggregator) Reports() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.reports
}

// Snapshot returns a copy of the aggregate in accumulation order.
// The copy is safe to use after further merges.
func (a *ResultAggregator) Snapshot() []int64 {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make([]int64, len(a.primes))
	copy(out, a.primes)
	return out
}
