package metrics

import (
	"sync/atomic"
	"time"
)

// BucketCount is the number of latency buckets, the last one being +Inf.
const BucketCount = 8

const cacheLineSize = 64

// BucketBounds are the inclusive upper bounds of the finite buckets.
var BucketBounds = [BucketCount - 1]time.Duration{
	5 * time.Millisecond,
	10 * time.Millisecond,
	25 * time.Millisecond,
	50 * time.Millisecond,
	100 * time.Millisecond,
	250 * time.Millisecond,
	500 * time.Millisecond,
}

type paddedCounter struct {
	value atomic.Uint64
	_     [cacheLineSize - 8]byte
}

type histogram struct {
	buckets [BucketCount]atomic.Uint64
}

// Table is a fixed-size set of counters and histograms addressed by slot.
type Table struct {
	counters   []paddedCounter
	histograms []histogram
}

// NewTable allocates n counter slots and n histogram slots.
func NewTable(n int) *Table {
	return &Table{
		counters:   make([]paddedCounter, n),
		histograms: make([]histogram, n),
	}
}

// Len returns the number of slots.
func (t *Table) Len() int {
	return len(t.counters)
}

// Add increments slot by one. Out-of-range slots are ignored.
func (t *Table) Add(slot int) {
	if slot < 0 || slot >= len(t.counters) {
		return
	}
	t.counters[slot].value.Add(1)
}

// Load returns the counter value at slot.
func (t *Table) Load(slot int) uint64 {
	if slot < 0 || slot >= len(t.counters) {
		return 0
	}
	return t.counters[slot].value.Load()
}

// Observe records d in the histogram at slot.
func (t *Table) Observe(slot int, d time.Duration) {
	if slot < 0 || slot >= len(t.histograms) {
		return
	}
	t.histograms[slot].buckets[BucketIndex(d)].Add(1)
}

// Buckets returns the non-cumulative bucket counts at slot.
func (t *Table) Buckets(slot int) []uint64 {
	out := make([]uint64, BucketCount)
	if slot < 0 || slot >= len(t.histograms) {
		return out
	}
	for i := range out {
		out[i] = t.histograms[slot].buckets[i].Load()
	}
	return out
}

// BucketIndex maps a duration to its bucket.
func BucketIndex(d time.Duration) int {
	for i, bound := range BucketBounds {
		if d <= bound {
			return i
		}
	}
	return BucketCount - 1
}
