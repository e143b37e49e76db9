package compute

import "sync/atomic"

// Overflow tracks the largest count that did not fit a capacity.
// Safe for concurrent use.
type Overflow struct {
	max atomic.Int64
}

func (o *Overflow) Observe(n int) {
	v := int64(n)
	for {
		cur := o.max.Load()
		if v <= cur || o.max.CompareAndSwap(cur, v) {
			return
		}
	}
}

// Max returns the largest observed count, or 0 if nothing overflowed.
func (o *Overflow) Max() int { return int(o.max.Load()) }

func (o *Overflow) Reset() { o.max.Store(0) }

// Slots is a set of fixed-capacity buckets filled by concurrent appends.
// An append past capacity is not stored; the bucket's count keeps growing so
// Overflow reports the capacity that would have been needed.
type Slots struct {
	counts   []atomic.Int32
	capacity int
	overflow Overflow
}

func NewSlots(buckets, capacity int) *Slots {
	return &Slots{
		counts:   make([]atomic.Int32, buckets),
		capacity: capacity,
	}
}

// Claim reserves the next slot in bucket b. ok is false when the bucket is
// already full.
func (s *Slots) Claim(b int) (slot int, ok bool) {
	slot = int(s.counts[b].Add(1) - 1)
	if slot >= s.capacity {
		s.overflow.Observe(slot + 1)
		return slot, false
	}
	return slot, true
}

// Count returns the number of stored entries in bucket b, capped at capacity.
func (s *Slots) Count(b int) int {
	n := int(s.counts[b].Load())
	if n > s.capacity {
		return s.capacity
	}
	return n
}

func (s *Slots) Capacity() int { return s.capacity }
func (s *Slots) Buckets() int  { return len(s.counts) }

// Overflowed returns the capacity the fullest bucket needed, or 0.
func (s *Slots) Overflowed() int { return s.overflow.Max() }

// Reset clears every bucket and sets a new capacity. The bucket count is kept
// when it already matches.
func (s *Slots) Reset(buckets, capacity int) {
	if len(s.counts) != buckets {
		s.counts = make([]atomic.Int32, buckets)
	} else {
		for i := range s.counts {
			s.counts[i].Store(0)
		}
	}
	s.capacity = capacity
	s.overflow.Reset()
}
