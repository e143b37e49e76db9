package nlist

import "github.com/san-kum/mdnlist/internal/geom"

// The accessors below read the result of the last successful Update and
// must not race with it.

func (nl *NeighborList) NumNeighbors(i int) int { return nl.counts[i] }

// Neighbors returns the local indices listed for particle i. The slice
// aliases list storage.
func (nl *NeighborList) Neighbors(i int) []uint32 {
	base := i * nl.capacity
	return nl.list[base : base+nl.counts[i]]
}

// Capacity is the per-particle stride of list storage.
func (nl *NeighborList) Capacity() int { return nl.capacity }

// LastBuild returns the timestep of the last rebuild.
func (nl *NeighborList) LastBuild() uint64 { return nl.lastBuild }

func (nl *NeighborList) Stats() Stats { return nl.stats }

func (nl *NeighborList) Storage() StorageMode { return nl.cfg.Storage }

// Valid reports whether a successful build backs the current contents.
func (nl *NeighborList) Valid() bool { return nl.last.valid }

// SnapshotBox is the box of the last build.
func (nl *NeighborList) SnapshotBox() geom.Box { return nl.last.box }

// NumPairs counts listed pairs; in Full storage each pair is counted once.
func (nl *NeighborList) NumPairs() int {
	total := 0
	for _, c := range nl.counts {
		total += c
	}
	if nl.cfg.Storage == Full {
		return total / 2
	}
	return total
}

// ForEachPair calls fn once per listed pair with i < j.
func (nl *NeighborList) ForEachPair(fn func(i, j int)) {
	for i := range nl.counts {
		for _, j := range nl.Neighbors(i) {
			if nl.cfg.Storage == Full && int(j) < i {
				continue
			}
			fn(i, int(j))
		}
	}
}
