// Package nlist maintains, for every particle, the list of particles within
// its pairwise cutoff plus a shared buffer (skin) radius.
//
// The list is built from a cell list ([celllist.Grid]) and a per-type-pair
// stencil ([stencil.Table]) and reused across steps until one of:
//
//   - a sticky invalidation signal fired (reorder, count, cutoff, box)
//   - some particle moved more than half the buffer since the last build
//   - a forced update (exclusions, storage mode, diameters)
//
// A typical step:
//
//	nl := nlist.New(pdata.NumTypes(), 2.5, nlist.DefaultConfig())
//	pdata.Attach(nl)
//	for step := uint64(0); ; step++ {
//	    if err := nl.Update(step, pdata, box); err != nil {
//	        return err // fatal: never run forces on an incomplete list
//	    }
//	    for i := 0; i < pdata.N(); i++ {
//	        for _, j := range nl.Neighbors(i) { ... }
//	    }
//	}
//
// # Pair policy
//
// In [Full] storage each pair within range is listed under both particles.
// In [Half] storage a pair is listed once, under the lower local index.
//
// # Ownership
//
// Neighbor storage belongs to the list. Slices returned by
// [NeighborList.Neighbors] are valid until the next Update, which may grow
// and relocate storage.
package nlist
