package stencil

import (
	"errors"
	"fmt"
	"math"
	"sort"

	"github.com/sirupsen/logrus"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/san-kum/mdnlist/internal/geom"
)

// ErrDegenerateStencil indicates a list radius larger than half the box,
// where the stencil would cover every cell and minimum image is unsafe.
var ErrDegenerateStencil = errors.New("stencil: list radius exceeds half the box length")

type Offset struct {
	D        [3]int
	MinDist2 float64
}

type Table struct {
	ntypes   int
	width    r3.Vec
	dim      [3]int
	radius   []float64
	stencils [][]Offset
	aliased  []bool
}

// Compute builds the table for a row-major ntypes x ntypes matrix of list
// radii. A radius <= 0 disables the pair and yields an empty stencil.
func Compute(radii []float64, ntypes int, width r3.Vec, dim [3]int) (*Table, error) {
	if len(radii) != ntypes*ntypes {
		return nil, fmt.Errorf("stencil: %d radii for %d types", len(radii), ntypes)
	}
	t := &Table{
		ntypes:   ntypes,
		width:    width,
		dim:      dim,
		radius:   append([]float64(nil), radii...),
		stencils: make([][]Offset, ntypes*ntypes),
		aliased:  make([]bool, ntypes*ntypes),
	}

	box := r3.Vec{X: width.X * float64(dim[0]), Y: width.Y * float64(dim[1]), Z: width.Z * float64(dim[2])}
	byRadius := make(map[float64][]Offset)
	for a := 0; a < ntypes; a++ {
		for b := 0; b < ntypes; b++ {
			r := radii[a*ntypes+b]
			if r <= 0 {
				continue
			}
			for ax := 0; ax < 3; ax++ {
				// width*dim can round just below the box length
				if r > geom.Axis(box, ax)/2*(1+1e-12) {
					logrus.WithFields(logrus.Fields{
						"pair":   fmt.Sprintf("%d-%d", a, b),
						"radius": r,
						"axis":   geom.AxisName(ax),
						"length": geom.Axis(box, ax),
					}).Warn("stencil: degenerate, would cover every cell")
					return nil, fmt.Errorf("%w: pair (%d,%d) radius %g, box %s length %g",
						ErrDegenerateStencil, a, b, r, geom.AxisName(ax), geom.Axis(box, ax))
				}
			}
			st, ok := byRadius[r]
			if !ok {
				st = build(r, width, dim)
				byRadius[r] = st
			}
			t.stencils[a*ntypes+b] = st
			t.aliased[a*ntypes+b] = aliases(r, width, dim)
		}
	}
	return t, nil
}

func build(r float64, width r3.Vec, dim [3]int) []Offset {
	var k [3]int
	for a := 0; a < 3; a++ {
		k[a] = int(math.Ceil(r / geom.Axis(width, a)))
	}
	r2 := r * r

	var out []Offset
	for dz := -k[2]; dz <= k[2]; dz++ {
		for dy := -k[1]; dy <= k[1]; dy++ {
			for dx := -k[0]; dx <= k[0]; dx++ {
				d := [3]int{dx, dy, dz}
				m2 := 0.0
				for a := 0; a < 3; a++ {
					gap := float64(abs(d[a])-1) * geom.Axis(width, a)
					if gap > 0 {
						m2 += gap * gap
					}
				}
				if m2 <= r2 {
					out = append(out, Offset{D: d, MinDist2: m2})
				}
			}
		}
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].MinDist2 != out[j].MinDist2 {
			return out[i].MinDist2 < out[j].MinDist2
		}
		return less(out[i].D, out[j].D)
	})

	// small grids alias several offsets onto one periodic cell; keep the
	// closest
	seen := make(map[[3]int]struct{}, len(out))
	uniq := out[:0]
	for _, o := range out {
		key := [3]int{mod(o.D[0], dim[0]), mod(o.D[1], dim[1]), mod(o.D[2], dim[2])}
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		uniq = append(uniq, o)
	}
	return uniq
}

// For returns the ordered offsets for a particle of type a looking for
// neighbors of type b.
func (t *Table) For(a, b uint32) []Offset {
	return t.stencils[int(a)*t.ntypes+int(b)]
}

// Aliased reports whether the pair's search block wraps onto itself on a
// small grid, so one kept offset stands for several periodic images.
func (t *Table) Aliased(a, b uint32) bool {
	return t.aliased[int(a)*t.ntypes+int(b)]
}

func (t *Table) Radius(a, b uint32) float64 {
	return t.radius[int(a)*t.ntypes+int(b)]
}

func (t *Table) NumTypes() int { return t.ntypes }
func (t *Table) Width() r3.Vec { return t.width }
func (t *Table) Dim() [3]int   { return t.dim }

// Matches reports whether the table was built for this cell geometry.
func (t *Table) Matches(width r3.Vec, dim [3]int) bool {
	return t != nil && t.width == width && t.dim == dim
}

// Len returns the total number of offsets over all pairs.
func (t *Table) Len() int {
	n := 0
	for _, s := range t.stencils {
		n += len(s)
	}
	return n
}

func aliases(r float64, width r3.Vec, dim [3]int) bool {
	for a := 0; a < 3; a++ {
		k := int(math.Ceil(r / geom.Axis(width, a)))
		if 2*k+1 > dim[a] {
			return true
		}
	}
	return false
}

func less(a, b [3]int) bool {
	for i := 2; i >= 0; i-- {
		if a[i] != b[i] {
			return a[i] < b[i]
		}
	}
	return false
}

func abs(x int) int {
	if x < 0 {
		return -x
	}
	return x
}

func mod(a, n int) int {
	a %= n
	if a < 0 {
		a += n
	}
	return a
}
