package coordinator

import (
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/puzpuzpuz/xsync/v4"
	"golang.org/x/exp/slices"
)

// EndpointInfo describes one worker endpoint the coordinator has replied to.
// It is a point-in-time copy; later activity does not change it.
type EndpointInfo struct {
	Addr      net.Addr  // Transport address used for replies
	FirstSeen time.Time // First request from this address
	LastSeen  time.Time // Most recent request from this address
	Requests  int64     // Requests received from this address
}

// endpointEntry is the live record stored in the map. Addr and firstSeen are
// immutable; the counters are updated atomically by concurrent handlers.
type endpointEntry struct {
	addr      net.Addr
	firstSeen time.Time
	lastSeen  atomic.Int64 // UnixNano
	requests  atomic.Int64
}

func (e *endpointEntry) touch(now time.Time) {
	e.lastSeen.Store(now.UnixNano())
	e.requests.Add(1)
}

func (e *endpointEntry) info() EndpointInfo {
	return EndpointInfo{
		Addr:      e.addr,
		FirstSeen: e.firstSeen,
		LastSeen:  time.Unix(0, e.lastSeen.Load()),
		Requests:  e.requests.Load(),
	}
}

// EndpointRegistry remembers every endpoint that ever requested work so the
// coordinator can broadcast done at shutdown.
//
// The registry is advisory. It is not used for delivery guarantees, retries or
// deduplication: the protocol has no notion of "the same worker twice", and
// the same process reconnecting from a new port is simply a new endpoint.
//
// Bounding:
//   - maxEntries <= 0 keeps every endpoint (append-only set)
//   - maxEntries > 0 evicts the least-recently-seen endpoint when full
//
// Thread safety: Record, Len and Endpoints may be called from any number of
// goroutines. Entries live in a lock-free xsync.Map; only eviction takes a
// mutex, so the common path (a known endpoint asking again) never blocks.
type EndpointRegistry struct {
	entries    *xsync.Map[string, *endpointEntry]
	evictMu    sync.Mutex
	now        func() time.Time
	maxEntries int
}

// NewEndpointRegistry creates a registry holding at most maxEntries endpoints
// (unbounded when maxEntries <= 0).
func NewEndpointRegistry(maxEntries int) *EndpointRegistry {
	return &EndpointRegistry{
		entries:    xsync.NewMap[string, *endpointEntry](),
		now:        time.Now,
		maxEntries: maxEntries,
	}
}

// Record notes a request from addr. It reports whether addr was new.
func (r *EndpointRegistry) Record(addr net.Addr) bool {
	now := r.now()
	key := addr.String()

	fresh := &endpointEntry{addr: addr, firstSeen: now}
	fresh.touch(now)
	if actual, loaded := r.entries.LoadOrStore(key, fresh); loaded {
		actual.touch(now)
		return false
	}

	if r.maxEntries > 0 && r.entries.Size() > r.maxEntries {
		r.evictOldest(key)
	}
	return true
}

// evictOldest removes least-recently-seen entries until the registry fits,
// never evicting keep (the endpoint just recorded).
func (r *EndpointRegistry) evictOldest(keep string) {
	r.evictMu.Lock()
	defer r.evictMu.Unlock()

	for r.entries.Size() > r.maxEntries {
		var (
			oldestKey  string
			oldestSeen int64
			found      bool
		)
		r.entries.Range(func(key string, e *endpointEntry) bool {
			if key == keep {
				return true
			}
			seen := e.lastSeen.Load()
			if !found || seen < oldestSeen {
				oldestKey, oldestSeen, found = key, seen, true
			}
			return true
		})
		if !found {
			return
		}
		r.entries.Delete(oldestKey)
	}
}

// Len returns the number of endpoints currently held.
func (r *EndpointRegistry) Len() int {
	return r.entries.Size()
}

// Endpoints returns the addresses of every held endpoint, ordered by first
// contact so broadcasts reach the longest-running workers first.
func (r *EndpointRegistry) Endpoints() []net.Addr {
	infos := r.Snapshot()
	out := make([]net.Addr, len(infos))
	for i, info := range infos {
		out[i] = info.Addr
	}
	return out
}

// Snapshot returns a copy of every entry ordered by first contact.
func (r *EndpointRegistry) Snapshot() []EndpointInfo {
	infos := make([]EndpointInfo, 0, r.entries.Size())
	r.entries.Range(func(_ string, e *endpointEntry) bool {
		infos = append(infos, e.info())
		return true
	})
	slices.SortFunc(infos, func(a, b EndpointInfo) int {
		if c := a.FirstSeen.Compare(b.FirstSeen); c != 0 {
			return c
		}
		switch {
		case a.Addr.String() < b.Addr.String():
			return -1
		case a.Addr.String() > b.Addr.String():
			return 1
		}
		return 0
	})
	return infos
}
