package celllist

import (
	"fmt"
	"math"
	"sort"

	"github.com/sirupsen/logrus"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/san-kum/mdnlist/internal/compute"
	"github.com/san-kum/mdnlist/internal/geom"
)

const (
	DefaultMaxCells   = 1 << 24
	DefaultMaxEntries = 1 << 28
	minCapacity       = 4
)

type Config struct {
	MaxCells   int
	MaxEntries int
	// Capacity is the starting per-cell capacity; 0 estimates it from the
	// mean occupancy.
	Capacity int
}

func DefaultConfig() Config {
	return Config{MaxCells: DefaultMaxCells, MaxEntries: DefaultMaxEntries}
}

type Grid struct {
	cfg     Config
	backend compute.Backend
	ntypes  int

	// Grain is the number of particles per work item during binning.
	Grain int

	box   geom.Box
	dim   [3]int
	width r3.Vec

	capacity  int
	slots     *compute.Slots
	contents  []uint32
	size      []int
	typeStart []int
	cellOf    []int
	retries   int
}

func New(ntypes int, cfg Config, backend compute.Backend) *Grid {
	if cfg.MaxCells <= 0 {
		cfg.MaxCells = DefaultMaxCells
	}
	if cfg.MaxEntries <= 0 {
		cfg.MaxEntries = DefaultMaxEntries
	}
	if ntypes < 1 {
		ntypes = 1
	}
	if backend == nil {
		backend = compute.GetBackend()
	}
	return &Grid{
		cfg:      cfg,
		backend:  backend,
		ntypes:   ntypes,
		Grain:    256,
		capacity: cfg.Capacity,
		slots:    compute.NewSlots(0, 0),
	}
}

// Dims returns the cell counts a box/width pair would produce, and false if
// their product exceeds maxCells.
func Dims(box geom.Box, nominalWidth float64, maxCells int) ([3]int, bool) {
	var dim [3]int
	total := 1.0
	for a := 0; a < 3; a++ {
		n := math.Floor(geom.Axis(box.L, a) / nominalWidth)
		if n < 1 {
			n = 1
		}
		total *= n
		if total > float64(maxCells) {
			return dim, false
		}
		dim[a] = int(n)
	}
	return dim, true
}

// Rebuild bins every particle. types must have the same length as pos.
func (g *Grid) Rebuild(pos []r3.Vec, types []uint32, box geom.Box, nominalWidth float64) error {
	if !(nominalWidth > 0) {
		return ErrInvalidWidth
	}
	if !box.Valid() {
		return geom.ErrInvalidBox
	}
	dim, ok := Dims(box, nominalWidth, g.cfg.MaxCells)
	if !ok {
		return fmt.Errorf("%w: box %s with width %g needs more than %d cells",
			ErrTooManyCells, box, nominalWidth, g.cfg.MaxCells)
	}
	g.box = box
	g.dim = dim
	g.width = r3.Vec{X: box.L.X / float64(dim[0]), Y: box.L.Y / float64(dim[1]), Z: box.L.Z / float64(dim[2])}

	n := len(pos)
	cells := g.NumCells()
	if g.capacity <= 0 {
		g.capacity = estimateCapacity(n, cells)
	}
	if cap(g.cellOf) < n {
		g.cellOf = make([]int, n)
	}
	g.cellOf = g.cellOf[:n]
	g.retries = 0

	for {
		if cells*g.capacity > g.cfg.MaxEntries {
			return fmt.Errorf("%w: %d cells x %d per cell (mean density %.3g per unit volume)",
				ErrResourceExhausted, cells, g.capacity, float64(n)/box.Volume())
		}
		g.bin(pos)
		over := g.slots.Overflowed()
		if over == 0 {
			break
		}
		logrus.WithFields(logrus.Fields{
			"capacity": g.capacity,
			"needed":   over,
			"cells":    cells,
		}).Debug("celllist: cell capacity overflow, growing")
		g.capacity = roundUp(over)
		g.retries++
	}

	g.finish(types)
	return nil
}

func (g *Grid) bin(pos []r3.Vec) {
	cells := g.NumCells()
	g.slots.Reset(cells, g.capacity)
	if need := cells * g.capacity; cap(g.contents) < need {
		g.contents = make([]uint32, need)
	} else {
		g.contents = g.contents[:need]
	}

	nx, ny, nz := g.dim[0], g.dim[1], g.dim[2]
	capacity := g.capacity
	g.backend.ParallelFor(len(pos), g.Grain, func(start, end int) {
		for i := start; i < end; i++ {
			f := g.box.Fraction(pos[i])
			cx := clamp(int(f.X*float64(nx)), nx)
			cy := clamp(int(f.Y*float64(ny)), ny)
			cz := clamp(int(f.Z*float64(nz)), nz)
			c := (cz*ny+cy)*nx + cx
			g.cellOf[i] = c
			if slot, ok := g.slots.Claim(c); ok {
				g.contents[c*capacity+slot] = uint32(i)
			}
		}
	})
}

// finish orders each cell by (type, index) and records per-type offsets.
func (g *Grid) finish(types []uint32) {
	cells := g.NumCells()
	stride := g.ntypes + 1
	if cap(g.size) < cells {
		g.size = make([]int, cells)
	}
	g.size = g.size[:cells]
	if need := cells * stride; cap(g.typeStart) < need {
		g.typeStart = make([]int, need)
	} else {
		g.typeStart = g.typeStart[:need]
	}

	g.backend.ParallelFor(cells, 64, func(start, end int) {
		for c := start; c < end; c++ {
			cnt := g.slots.Count(c)
			g.size[c] = cnt
			members := g.contents[c*g.capacity : c*g.capacity+cnt]
			sort.Slice(members, func(a, b int) bool {
				ta, tb := types[members[a]], types[members[b]]
				if ta != tb {
					return ta < tb
				}
				return members[a] < members[b]
			})

			offs := g.typeStart[c*stride : (c+1)*stride]
			k := 0
			for t := 0; t < g.ntypes; t++ {
				offs[t] = k
				for k < cnt && int(types[members[k]]) == t {
					k++
				}
			}
			offs[g.ntypes] = cnt
		}
	})
}

func (g *Grid) Dim() [3]int   { return g.dim }
func (g *Grid) Width() r3.Vec { return g.width }
func (g *Grid) Box() geom.Box { return g.box }
func (g *Grid) NumCells() int { return g.dim[0] * g.dim[1] * g.dim[2] }
func (g *Grid) NumTypes() int { return g.ntypes }
func (g *Grid) Capacity() int { return g.capacity }
func (g *Grid) Retries() int  { return g.retries }

// CellIndexOf returns the flat cell index particle i was binned into.
func (g *Grid) CellIndexOf(i int) int { return g.cellOf[i] }

// Index returns the flat index of cell (x, y, z), wrapping periodically.
func (g *Grid) Index(x, y, z int) int {
	x = mod(x, g.dim[0])
	y = mod(y, g.dim[1])
	z = mod(z, g.dim[2])
	return (z*g.dim[1]+y)*g.dim[0] + x
}

// Coords is the inverse of Index for in-range cells.
func (g *Grid) Coords(c int) [3]int {
	nx, ny := g.dim[0], g.dim[1]
	return [3]int{c % nx, (c / nx) % ny, c / (nx * ny)}
}

// CellOf returns the cell coordinate particle i was binned into.
func (g *Grid) CellOf(i int) [3]int { return g.Coords(g.cellOf[i]) }

// Cell returns the particles in cell c. The slice aliases grid storage and
// is valid until the next Rebuild.
func (g *Grid) Cell(c int) []uint32 {
	return g.contents[c*g.capacity : c*g.capacity+g.size[c]]
}

// CellOfType returns the particles of type t in cell c.
func (g *Grid) CellOfType(c int, t uint32) []uint32 {
	stride := g.ntypes + 1
	offs := g.typeStart[c*stride : (c+1)*stride]
	base := c * g.capacity
	return g.contents[base+offs[t] : base+offs[t+1]]
}

func estimateCapacity(n, cells int) int {
	mean := float64(n) / float64(cells)
	c := int(math.Ceil(mean*2)) + 1
	if c < minCapacity {
		c = minCapacity
	}
	return roundUp(c)
}

func roundUp(n int) int {
	return (n + 3) &^ 3
}

func clamp(c, n int) int {
	if c >= n {
		return n - 1
	}
	if c < 0 {
		return 0
	}
	return c
}

func mod(a, n int) int {
	a %= n
	if a < 0 {
		a += n
	}
	return a
}
