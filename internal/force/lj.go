// Package force evaluates a truncated Lennard-Jones pair potential over a
// neighbor list. It exists to drive the list in a realistic loop and reads
// the lists without modifying them.
package force

import (
	"math"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/san-kum/mdnlist/internal/compute"
	"github.com/san-kum/mdnlist/internal/geom"
	"github.com/san-kum/mdnlist/internal/nlist"
	"github.com/san-kum/mdnlist/internal/particles"
)

// Lists is the read side of a neighbor list.
type Lists interface {
	Neighbors(i int) []uint32
	Storage() nlist.StorageMode
}

type LJ struct {
	Epsilon float64
	Sigma   float64
	RCut    float64
	// Shift subtracts the potential at the cutoff so energy is continuous.
	Shift bool

	backend compute.Backend
	partial []float64

	// per type pair, row-major; nil uses RCut for every pair
	ntypes int
	rc2    []float64
	ushift []float64
}

func NewLJ(epsilon, sigma, rcut float64) *LJ {
	return &LJ{Epsilon: epsilon, Sigma: sigma, RCut: rcut, Shift: true, backend: compute.GetBackend()}
}

func (lj *LJ) SetBackend(b compute.Backend) { lj.backend = b }

// SetCutoffs installs per type pair cutoffs. A cutoff <= 0 disables the pair.
func (lj *LJ) SetCutoffs(ntypes int, rcut func(a, b uint32) float64) {
	lj.ntypes = ntypes
	lj.rc2 = make([]float64, ntypes*ntypes)
	lj.ushift = make([]float64, ntypes*ntypes)
	for a := 0; a < ntypes; a++ {
		for b := 0; b < ntypes; b++ {
			r := rcut(uint32(a), uint32(b))
			if r <= 0 {
				continue
			}
			lj.rc2[a*ntypes+b] = r * r
			if lj.Shift {
				lj.ushift[a*ntypes+b], _ = lj.pair(r * r)
			}
		}
	}
}

// cutoff returns the squared cutoff and energy shift for a type pair.
func (lj *LJ) cutoff(a, b uint32) (rc2, ushift float64) {
	if lj.rc2 == nil {
		return lj.RCut * lj.RCut, lj.shift()
	}
	k := int(a)*lj.ntypes + int(b)
	return lj.rc2[k], lj.ushift[k]
}

// pair returns the potential and F/r at squared separation r2.
func (lj *LJ) pair(r2 float64) (u, fr float64) {
	s2 := lj.Sigma * lj.Sigma / r2
	s6 := s2 * s2 * s2
	u = 4 * lj.Epsilon * (s6*s6 - s6)
	fr = 24 * lj.Epsilon * (2*s6*s6 - s6) / r2
	return u, fr
}

func (lj *LJ) shift() float64 {
	if !lj.Shift {
		return 0
	}
	u, _ := lj.pair(lj.RCut * lj.RCut)
	return u
}

// Compute overwrites the forces in p and returns the potential energy.
func (lj *LJ) Compute(p *particles.Data, box geom.Box, nl Lists) float64 {
	pos, f, types := p.Positions(), p.Forces(), p.Types()
	for i := range f {
		f[i] = r3.Vec{}
	}

	if nl.Storage() == nlist.Half {
		energy := 0.0
		for i := range pos {
			for _, j := range nl.Neighbors(i) {
				rc2, ushift := lj.cutoff(types[i], types[j])
				d := box.MinImage(r3.Sub(pos[i], pos[j]))
				r2 := r3.Norm2(d)
				if r2 >= rc2 {
					continue
				}
				u, fr := lj.pair(r2)
				energy += u - ushift
				f[i] = r3.Add(f[i], r3.Scale(fr, d))
				f[j] = r3.Sub(f[j], r3.Scale(fr, d))
			}
		}
		return energy
	}

	// full lists: each particle owns its own force, pairs counted twice
	const grain = 256
	n := len(pos)
	if cap(lj.partial) < (n+grain-1)/grain {
		lj.partial = make([]float64, (n+grain-1)/grain)
	}
	partial := lj.partial[:(n+grain-1)/grain]
	lj.backend.ParallelFor(n, grain, func(start, end int) {
		e := 0.0
		for i := start; i < end; i++ {
			var fi r3.Vec
			for _, j := range nl.Neighbors(i) {
				rc2, ushift := lj.cutoff(types[i], types[j])
				d := box.MinImage(r3.Sub(pos[i], pos[j]))
				r2 := r3.Norm2(d)
				if r2 >= rc2 {
					continue
				}
				u, fr := lj.pair(r2)
				e += u - ushift
				fi = r3.Add(fi, r3.Scale(fr, d))
			}
			f[i] = fi
		}
		partial[start/grain] = e
	})
	energy := 0.0
	for _, e := range partial {
		energy += e
	}
	return energy / 2
}

// Direct evaluates the same potential over every pair.
func (lj *LJ) Direct(p *particles.Data, box geom.Box) (float64, []r3.Vec) {
	pos, types := p.Positions(), p.Types()
	f := make([]r3.Vec, len(pos))
	energy := 0.0
	for i := range pos {
		for j := i + 1; j < len(pos); j++ {
			rc2, ushift := lj.cutoff(types[i], types[j])
			d := box.MinImage(r3.Sub(pos[i], pos[j]))
			r2 := r3.Norm2(d)
			if r2 >= rc2 {
				continue
			}
			u, fr := lj.pair(r2)
			energy += u - ushift
			f[i] = r3.Add(f[i], r3.Scale(fr, d))
			f[j] = r3.Sub(f[j], r3.Scale(fr, d))
		}
	}
	return energy, f
}

// MaxForce returns the largest force magnitude in p.
func MaxForce(p *particles.Data) float64 {
	m := 0.0
	for _, f := range p.Forces() {
		m = math.Max(m, r3.Norm(f))
	}
	return m
}
