// Package compute provides the parallel executors the neighbor list runs on.
//
// Work is expressed as a range [0, n) split into chunks of a given
// granularity. The CPU backend spreads chunks over a pool of goroutines; the
// serial backend runs them in order on the calling goroutine and is used for
// analysis and reference runs:
//
//	backend := compute.GetBackend()
//	backend.ParallelFor(n, 256, func(start, end int) {
//	    for i := start; i < end; i++ {
//	        // one work item per particle
//	    }
//	})
//
// [Slots] and [Overflow] implement the bounded concurrent append used by the
// cell list and the neighbor list: appends past capacity are counted rather
// than stored, and the caller grows and retries.
package compute
