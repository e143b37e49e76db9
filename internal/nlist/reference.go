package nlist

import (
	"fmt"
	"slices"

	"github.com/san-kum/mdnlist/internal/geom"
)

// Reference computes the lists by testing every pair directly, using the
// current cutoffs, buffer, exclusions and storage mode. Each list is sorted.
func (nl *NeighborList) Reference(p ParticleSource, box geom.Box) [][]uint32 {
	nl.mu.Lock()
	defer nl.mu.Unlock()

	n := p.N()
	pos, types, tags := p.Positions(), p.Types(), p.Tags()
	var diam []float64
	if nl.cfg.DiameterShift {
		diam = p.Diameters()
	}
	half := nl.cfg.Storage == Half

	out := make([][]uint32, n)
	for i := 0; i < n; i++ {
		for j := 0; j < n; j++ {
			if i == j || (half && j < i) {
				continue
			}
			rc := nl.rcut[int(types[i])*nl.ntypes+int(types[j])]
			if rc <= 0 {
				continue
			}
			r := rc + nl.cfg.RBuff
			if diam != nil {
				r += (diam[i]+diam[j])/2 - 1
			}
			if r <= 0 || box.Dist2(pos[i], pos[j]) > r*r {
				continue
			}
			if _, ex := nl.exclusions[pairKey(tags[i], tags[j])]; ex {
				continue
			}
			out[i] = append(out[i], uint32(j))
		}
	}
	return out
}

// Verify compares the built lists against Reference and describes the
// first particle whose neighbor set differs.
func (nl *NeighborList) Verify(p ParticleSource, box geom.Box) error {
	want := nl.Reference(p, box)
	if len(want) != len(nl.counts) {
		return fmt.Errorf("nlist: list built for %d particles, have %d", len(nl.counts), len(want))
	}
	for i := range want {
		got := slices.Clone(nl.Neighbors(i))
		slices.Sort(got)
		if !slices.Equal(got, want[i]) {
			return fmt.Errorf("nlist: particle %d: listed %v, want %v", i, got, want[i])
		}
	}
	return nil
}
