package nlist

import (
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/sirupsen/logrus"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/san-kum/mdnlist/internal/celllist"
	"github.com/san-kum/mdnlist/internal/geom"
	"github.com/san-kum/mdnlist/internal/stencil"
)

const capacityAlign = 8

// pass holds the read-only inputs of one population pass.
type pass struct {
	pos      []r3.Vec
	wrapped  []r3.Vec
	types    []uint32
	tags     []uint32
	diam     []float64
	box      geom.Box
	width    r3.Vec
	rbuff    float64
	dmax     float64
	shift    bool
	half     bool
	capacity int
}

func (nl *NeighborList) build(timestep uint64, p ParticleSource, box geom.Box, reason Reason) error {
	start := time.Now()
	n := p.N()
	pos, types := p.Positions(), p.Types()
	if len(pos) != n || len(types) != n {
		return &BuildError{Step: timestep, Op: "validate", Wrapped: fmt.Errorf("nlist: %d positions and %d types for %d particles", len(pos), len(types), n)}
	}
	for i, t := range types {
		if int(t) >= nl.ntypes {
			return &BuildError{Step: timestep, Op: "validate", Wrapped: fmt.Errorf("%w: particle %d has type %d of %d", ErrTypeMismatch, i, t, nl.ntypes)}
		}
	}
	nl.last.valid = false

	ps := &pass{
		pos:   pos,
		types: types,
		tags:  p.Tags(),
		box:   box,
		rbuff: nl.cfg.RBuff,
		dmax:  nl.maxDiameter,
		shift: nl.cfg.DiameterShift,
		half:  nl.cfg.Storage == Half,
	}
	if ps.shift {
		ps.diam = p.Diameters()
		for _, d := range ps.diam {
			ps.dmax = math.Max(ps.dmax, d)
		}
		if ps.dmax > nl.maxDiameter {
			if err := fitBox(box, nl.maxRadius(nl.rcut, ps.rbuff, ps.dmax)); err != nil {
				return &BuildError{Step: timestep, Op: "validate", Wrapped: err}
			}
		}
	}

	radii := make([]float64, len(nl.rcut))
	rmax := 0.0
	for k, r := range nl.rcut {
		radii[k] = nl.listRadius(r, ps.rbuff, ps.dmax)
		rmax = math.Max(rmax, radii[k])
	}

	nl.resize(n)
	if rmax > 0 && n > 0 {
		if err := nl.prepare(timestep, ps, radii, rmax); err != nil {
			return err
		}
		if err := nl.populate(timestep, ps); err != nil {
			return err
		}
	} else {
		for i := range nl.counts {
			nl.counts[i] = 0
		}
	}

	nl.last.pos = append(nl.last.pos[:0], pos...)
	nl.last.box = box
	nl.last.n = n
	nl.last.valid = true
	nl.signals.clear(reason)

	nl.rebuilt = true
	nl.lastBuild = timestep
	nl.record(timestep, reason, time.Since(start))
	return nil
}

// prepare rebins the grid and recomputes the stencil table when the radii
// or the cell geometry changed.
func (nl *NeighborList) prepare(timestep uint64, ps *pass, radii []float64, rmax float64) error {
	width := nl.cfg.CellWidth
	if width <= 0 {
		width = rmax
	}

	grain := nl.tuner.SuggestLaunchGranularity("celllist")
	nl.grid.Grain = grain
	t0 := time.Now()
	err := nl.grid.Rebuild(ps.pos, ps.types, ps.box, width)
	nl.tuner.RecordTiming("celllist", grain, time.Since(t0))
	if err != nil {
		if errors.Is(err, celllist.ErrResourceExhausted) {
			err = fmt.Errorf("%w: %w", ErrResourceExhausted, err)
		}
		return &BuildError{Step: timestep, Op: "celllist", Wrapped: err}
	}
	nl.stats.GridRetries += nl.grid.Retries()

	cw, dim := nl.grid.Width(), nl.grid.Dim()
	if nl.needsRestencil || !nl.table.Matches(cw, dim) || !sameRadii(nl.table, radii) {
		table, err := stencil.Compute(radii, nl.ntypes, cw, dim)
		if err != nil {
			if errors.Is(err, stencil.ErrDegenerateStencil) {
				err = fmt.Errorf("%w: %w", ErrDegenerateStencil, err)
			}
			return &BuildError{Step: timestep, Op: "stencil", Wrapped: err}
		}
		nl.table = table
		nl.needsRestencil = false
		logrus.WithFields(logrus.Fields{
			"step":    timestep,
			"cells":   nl.grid.NumCells(),
			"offsets": table.Len(),
		}).Debug("nlist: stencil recomputed")
	}

	ps.width = cw
	if cap(ps.wrapped) < len(ps.pos) {
		ps.wrapped = make([]r3.Vec, len(ps.pos))
	}
	ps.wrapped = ps.wrapped[:len(ps.pos)]
	// same folding as binning, so each position lies in its own cell
	for i, x := range ps.pos {
		f := ps.box.Fraction(x)
		ps.wrapped[i] = r3.Vec{X: f.X * ps.box.L.X, Y: f.Y * ps.box.L.Y, Z: f.Z * ps.box.L.Z}
	}
	return nil
}

// populate runs full passes until every list fits its capacity.
func (nl *NeighborList) populate(timestep uint64, ps *pass) error {
	n := len(ps.pos)
	for {
		if err := nl.checkCeiling(n, nl.capacity, -1); err != nil {
			return &BuildError{Step: timestep, Op: "populate", Wrapped: err}
		}
		if need := n * nl.capacity; cap(nl.list) < need {
			nl.list = make([]uint32, need)
		} else {
			nl.list = nl.list[:need]
		}
		ps.capacity = nl.capacity
		nl.overflow.Reset()

		grain := nl.tuner.SuggestLaunchGranularity("nlist")
		t0 := time.Now()
		nl.backend.ParallelFor(n, grain, func(start, end int) {
			for i := start; i < end; i++ {
				c := nl.scan(i, ps)
				nl.counts[i] = c
				if c > ps.capacity {
					nl.overflow.Observe(c)
				}
			}
		})
		nl.tuner.RecordTiming("nlist", grain, time.Since(t0))

		over := nl.overflow.Max()
		if over == 0 {
			return nil
		}
		next := grow(nl.capacity, over, nl.cfg.GrowthFactor)
		if next > nl.cfg.MaxNeighbors && over <= nl.cfg.MaxNeighbors {
			next = nl.cfg.MaxNeighbors
		}
		if err := nl.checkCeiling(n, next, over); err != nil {
			return &BuildError{Step: timestep, Op: "populate", Wrapped: nl.diagnose(ps, err)}
		}
		logrus.WithFields(logrus.Fields{
			"step":     timestep,
			"capacity": nl.capacity,
			"needed":   over,
			"grown":    next,
		}).Info("nlist: neighbor capacity overflow, growing")
		nl.stats.Overflows++
		nl.capacity = next
	}
}

// scan fills the list of particle i and returns its full neighbor count,
// which may exceed the capacity.
func (nl *NeighborList) scan(i int, ps *pass) int {
	g, t := nl.grid, nl.table
	ti := ps.types[i]
	ci := g.CellOf(i)
	xi := ps.wrapped[i]
	base := i * ps.capacity
	di := 1.0
	if ps.shift {
		di = ps.diam[i]
	}

	count := 0
	for tj := 0; tj < nl.ntypes; tj++ {
		rc := nl.rcut[int(ti)*nl.ntypes+tj]
		if rc <= 0 {
			continue
		}
		rlist := rc + ps.rbuff
		reach := rlist
		if ps.shift {
			reach += (di+ps.dmax)/2 - 1
		}
		reach2 := reach * reach
		prune := !t.Aliased(ti, uint32(tj))

		for _, o := range t.For(ti, uint32(tj)) {
			if o.MinDist2 > reach2 {
				break
			}
			cx, cy, cz := ci[0]+o.D[0], ci[1]+o.D[1], ci[2]+o.D[2]
			if prune && cellDist2(xi, cx, cy, cz, ps.width) > reach2 {
				continue
			}
			for _, j := range g.CellOfType(g.Index(cx, cy, cz), uint32(tj)) {
				jj := int(j)
				if jj == i || (ps.half && jj < i) {
					continue
				}
				r := rlist
				if ps.shift {
					r += (di+ps.diam[jj])/2 - 1
				}
				if r <= 0 || ps.box.Dist2(ps.pos[i], ps.pos[jj]) > r*r {
					continue
				}
				if len(nl.exclusions) > 0 {
					if _, ex := nl.exclusions[pairKey(ps.tags[i], ps.tags[jj])]; ex {
						continue
					}
				}
				if count < ps.capacity {
					nl.list[base+count] = j
				}
				count++
			}
		}
	}
	return count
}

// cellDist2 is the squared distance from x to the box of the unwrapped cell
// (cx, cy, cz).
func cellDist2(x r3.Vec, cx, cy, cz int, w r3.Vec) float64 {
	return gap2(x.X, cx, w.X) + gap2(x.Y, cy, w.Y) + gap2(x.Z, cz, w.Z)
}

func gap2(x float64, c int, w float64) float64 {
	lo := float64(c) * w
	hi := lo + w
	switch {
	case x < lo:
		return (lo - x) * (lo - x)
	case x > hi:
		return (x - hi) * (x - hi)
	}
	return 0
}

func (nl *NeighborList) checkCeiling(n, capacity, observed int) error {
	if capacity > nl.cfg.MaxNeighbors {
		return fmt.Errorf("%w: %d neighbors per particle needed, ceiling %d",
			ErrResourceExhausted, max(capacity, observed), nl.cfg.MaxNeighbors)
	}
	if n*capacity > nl.cfg.MaxEntries {
		return fmt.Errorf("%w: %d particles x %d neighbors exceeds %d entries",
			ErrResourceExhausted, n, capacity, nl.cfg.MaxEntries)
	}
	return nil
}

// diagnose attaches the densest particle to a resource error.
func (nl *NeighborList) diagnose(ps *pass, err error) error {
	worst := 0
	for i, c := range nl.counts {
		if c > nl.counts[worst] {
			worst = i
		}
	}
	ti := ps.types[worst]
	reach := 0.0
	for tj := 0; tj < nl.ntypes; tj++ {
		reach = math.Max(reach, nl.listRadius(nl.rcut[int(ti)*nl.ntypes+tj], ps.rbuff, ps.dmax))
	}
	count := nl.counts[worst]
	density := float64(count) / (4.0 / 3.0 * math.Pi * reach * reach * reach)
	if ps.half {
		// half lists hold roughly half the sphere
		density *= 2
	}

	tag := uint32(worst)
	if worst < len(ps.tags) {
		tag = ps.tags[worst]
	}
	logrus.WithFields(logrus.Fields{
		"tag":       tag,
		"neighbors": count,
		"density":   density,
		"cutoff":    reach,
	}).Error("nlist: neighbor storage exhausted")
	return fmt.Errorf("%w (particle tag %d has %d neighbors within %g, local density %.3g)",
		err, tag, count, reach, density)
}

// grow returns the next capacity: at least observed and at least
// capacity*factor, aligned up.
func grow(capacity, observed int, factor float64) int {
	next := int(math.Ceil(float64(capacity) * factor))
	next = max(next, observed)
	return (next + capacityAlign - 1) / capacityAlign * capacityAlign
}

func (nl *NeighborList) resize(n int) {
	if cap(nl.counts) < n {
		nl.counts = make([]int, n)
	}
	nl.counts = nl.counts[:n]
}

func sameRadii(t *stencil.Table, radii []float64) bool {
	if t == nil || t.NumTypes()*t.NumTypes() != len(radii) {
		return false
	}
	nt := t.NumTypes()
	for a := 0; a < nt; a++ {
		for b := 0; b < nt; b++ {
			if t.Radius(uint32(a), uint32(b)) != radii[a*nt+b] {
				return false
			}
		}
	}
	return true
}

func (nl *NeighborList) record(timestep uint64, reason Reason, elapsed time.Duration) {
	s := &nl.stats
	s.Builds++
	s.Capacity = nl.capacity
	s.LastBuildStep = timestep
	s.LastReason = reason
	s.LastBuildDuration = elapsed
	s.MaxNeighbors = 0
	total := 0
	for _, c := range nl.counts {
		total += c
		s.MaxNeighbors = max(s.MaxNeighbors, c)
	}
	s.MeanNeighbors = 0
	if len(nl.counts) > 0 {
		s.MeanNeighbors = float64(total) / float64(len(nl.counts))
	}
	if nl.table != nil {
		s.Cells = nl.grid.NumCells()
		s.StencilOffsets = nl.table.Len()
	}

	logrus.WithFields(logrus.Fields{
		"step":     timestep,
		"reason":   reason.String(),
		"capacity": nl.capacity,
		"mean":     s.MeanNeighbors,
		"elapsed":  elapsed,
	}).Debug("nlist: rebuilt")
}
