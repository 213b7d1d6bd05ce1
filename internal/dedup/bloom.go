// Package dedup suppresses replayed activity reports on the collector side.
// The SDK already deduplicates client-side, but beacons and offline-queue
// replays can deliver the same report twice; this is the server-side
// backstop, a sliding-window bloom filter keyed by session and duration.
package dedup

import (
	"sync"
	"time"

	"github.com/bits-and-blooms/bloom/v3"
)

// filterSet is a sliding-window membership test over two bloom filters.
// Keys go into the current filter; lookups consult both current and
// previous. Rotating every window/2 keeps a key visible for at least one
// full window.
type filterSet struct {
	mu       sync.RWMutex
	current  *bloom.BloomFilter
	previous *bloom.BloomFilter
	window   time.Duration
	capacity uint
	fpRate   float64
}

func newFilterSet(window time.Duration, capacity uint, fpRate float64) *filterSet {
	return &filterSet{
		current:  bloom.NewWithEstimates(capacity, fpRate),
		previous: bloom.NewWithEstimates(capacity, fpRate),
		window:   window,
		capacity: capacity,
		fpRate:   fpRate,
	}
}

// testAndAdd reports whether key was already present, adding it if not.
// Safe for concurrent use.
func (f *filterSet) testAndAdd(key string) bool {
	data := []byte(key)

	f.mu.RLock()
	seen := f.current.Test(data) || f.previous.Test(data)
	f.mu.RUnlock()
	if seen {
		return true
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	// Re-check: another goroutine may have added the key between the read
	// unlock and here.
	if f.current.Test(data) || f.previous.Test(data) {
		return true
	}
	f.current.Add(data)
	return false
}

// rotate discards the previous filter and starts a fresh current one.
func (f *filterSet) rotate() {
	f.mu.Lock()
	f.previous = f.current
	f.current = bloom.NewWithEstimates(f.capacity, f.fpRate)
	f.mu.Unlock()
}
