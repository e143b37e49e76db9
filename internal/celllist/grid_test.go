package celllist

import (
	"math/rand"
	"os"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/san-kum/mdnlist/internal/compute"
	"github.com/san-kum/mdnlist/internal/geom"
)

func TestMain(m *testing.M) {
	if os.Getenv("DEBUG_TESTS") == "" {
		logrus.SetLevel(logrus.WarnLevel)
	}
	os.Exit(m.Run())
}

func randomSystem(n, ntypes int, box geom.Box, seed int64) ([]r3.Vec, []uint32) {
	rng := rand.New(rand.NewSource(seed))
	pos := make([]r3.Vec, n)
	types := make([]uint32, n)
	for i := range pos {
		pos[i] = r3.Vec{X: rng.Float64() * box.L.X, Y: rng.Float64() * box.L.Y, Z: rng.Float64() * box.L.Z}
		types[i] = uint32(rng.Intn(ntypes))
	}
	return pos, types
}

func TestDims(t *testing.T) {
	box := geom.Box{L: r3.Vec{X: 10, Y: 4.5, Z: 0.5}}
	dim, ok := Dims(box, 1.5, 1000)
	require.True(t, ok)
	assert.Equal(t, [3]int{6, 3, 1}, dim)

	_, ok = Dims(geom.Cube(100), 0.01, 1000)
	assert.False(t, ok)
}

func TestGrid_EveryParticleInExactlyOneCell(t *testing.T) {
	box := geom.Cube(12)
	pos, types := randomSystem(2000, 3, box, 11)

	g := New(3, DefaultConfig(), compute.NewCPUBackend(4))
	g.Grain = 37
	require.NoError(t, g.Rebuild(pos, types, box, 1.3))

	assert.Equal(t, [3]int{9, 9, 9}, g.Dim())
	assert.InDelta(t, 12.0/9, g.Width().X, 1e-12)

	seen := make([]int, len(pos))
	for c := 0; c < g.NumCells(); c++ {
		for _, idx := range g.Cell(c) {
			seen[idx]++
			assert.Equal(t, c, g.CellIndexOf(int(idx)))
		}
	}
	for i, s := range seen {
		require.Equalf(t, 1, s, "particle %d found in %d cells", i, s)
	}

	for i, p := range pos {
		cc := g.CellOf(i)
		for a := 0; a < 3; a++ {
			lo := float64(cc[a]) * geom.Axis(g.Width(), a)
			hi := lo + geom.Axis(g.Width(), a)
			x := geom.Axis(p, a)
			assert.True(t, x >= lo-1e-9 && x < hi+1e-9, "particle %d axis %d: %g not in [%g,%g)", i, a, x, lo, hi)
		}
	}
}

func TestGrid_CellOfType(t *testing.T) {
	box := geom.Cube(6)
	pos, types := randomSystem(500, 2, box, 5)

	g := New(2, DefaultConfig(), compute.NewSerialBackend())
	require.NoError(t, g.Rebuild(pos, types, box, 2))

	total := 0
	for c := 0; c < g.NumCells(); c++ {
		a := g.CellOfType(c, 0)
		b := g.CellOfType(c, 1)
		assert.Equal(t, len(g.Cell(c)), len(a)+len(b))
		for k, idx := range a {
			assert.Equal(t, uint32(0), types[idx])
			if k > 0 {
				assert.Less(t, a[k-1], idx)
			}
		}
		for _, idx := range b {
			assert.Equal(t, uint32(1), types[idx])
		}
		total += len(a) + len(b)
	}
	assert.Equal(t, len(pos), total)
}

func TestGrid_CapacityOverflowGrows(t *testing.T) {
	box := geom.Cube(10)
	rng := rand.New(rand.NewSource(2))
	pos := make([]r3.Vec, 300)
	types := make([]uint32, len(pos))
	for i := range pos {
		// everything inside one cell
		pos[i] = r3.Vec{X: 0.1 + rng.Float64()*0.5, Y: 0.1 + rng.Float64()*0.5, Z: 0.1 + rng.Float64()*0.5}
	}

	g := New(1, Config{Capacity: 4}, compute.NewCPUBackend(4))
	require.NoError(t, g.Rebuild(pos, types, box, 1))

	assert.GreaterOrEqual(t, g.Capacity(), 300)
	assert.Equal(t, 1, g.Retries())
	assert.Len(t, g.Cell(g.Index(0, 0, 0)), 300)
}

func TestGrid_Ceilings(t *testing.T) {
	box := geom.Cube(10)
	pos, types := randomSystem(10, 1, box, 1)

	g := New(1, Config{MaxCells: 100}, nil)
	err := g.Rebuild(pos, types, box, 0.5)
	assert.ErrorIs(t, err, ErrTooManyCells)

	dense := make([]r3.Vec, 64)
	g = New(1, Config{MaxCells: 1000, MaxEntries: 1000, Capacity: 1}, nil)
	err = g.Rebuild(dense, make([]uint32, len(dense)), box, 1)
	assert.ErrorIs(t, err, ErrResourceExhausted)

	err = g.Rebuild(pos, types, box, 0)
	assert.ErrorIs(t, err, ErrInvalidWidth)
}

func TestGrid_IndexWraps(t *testing.T) {
	g := New(1, DefaultConfig(), nil)
	require.NoError(t, g.Rebuild(nil, nil, geom.Cube(3), 1))

	assert.Equal(t, g.Index(0, 0, 0), g.Index(3, -3, 6))
	assert.Equal(t, [3]int{2, 1, 0}, g.Coords(g.Index(-1, 1, 0)))
}
