package particles

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/san-kum/mdnlist/internal/geom"
)

type countingListener struct {
	reorders int
	counts   int
}

func (c *countingListener) ParticlesReordered()   { c.reorders++ }
func (c *countingListener) ParticleCountChanged() { c.counts++ }

func TestData_AddRemove(t *testing.T) {
	d := New("A", "B")
	l := &countingListener{}
	d.Attach(l)

	t0, err := d.Add(r3.Vec{X: 1}, 0)
	require.NoError(t, err)
	t1, err := d.Add(r3.Vec{X: 2}, 1)
	require.NoError(t, err)
	_, err = d.Add(r3.Vec{X: 3}, 5)
	assert.ErrorIs(t, err, ErrUnknownType)

	require.NoError(t, d.AddMany([]r3.Vec{{X: 4}, {X: 5}}, 0))
	assert.Equal(t, 4, d.N())
	assert.Equal(t, 3, l.counts)

	require.NoError(t, d.Remove(t0))
	assert.Equal(t, 3, d.N())
	assert.Equal(t, 4, l.counts)

	idx, err := d.Index(t1)
	require.NoError(t, err)
	assert.Equal(t, 0, idx)
	assert.Equal(t, uint32(1), d.Types()[idx])

	_, err = d.Index(t0)
	assert.ErrorIs(t, err, ErrUnknownTag)
}

func TestData_SortSpatialKeepsIdentity(t *testing.T) {
	box := geom.Cube(10)
	d := New("A")
	l := &countingListener{}
	rng := rand.New(rand.NewSource(7))
	require.NoError(t, d.AddMany(Uniform(box, 200, rng), 0))
	d.Attach(l)

	byTag := make(map[uint32]r3.Vec)
	for i, tag := range d.Tags() {
		byTag[tag] = d.Positions()[i]
	}

	d.SortSpatial(box, 2.0)
	assert.Equal(t, 1, l.reorders)
	assert.Equal(t, 0, l.counts)

	for i, tag := range d.Tags() {
		assert.Equal(t, byTag[tag], d.Positions()[i])
		idx, err := d.Index(tag)
		require.NoError(t, err)
		assert.Equal(t, i, idx)
	}
}

func TestLattice(t *testing.T) {
	box := geom.Cube(10)
	pts := SimpleCubic(box, 27)
	require.Len(t, pts, 27)
	assert.InDelta(t, 10.0/6, pts[0].X, 1e-12)

	rng := rand.New(rand.NewSource(1))
	c := Cluster(box, r3.Vec{X: 5, Y: 5, Z: 5}, 1, 50, rng)
	for _, p := range c {
		assert.LessOrEqual(t, box.Dist2(p, r3.Vec{X: 5, Y: 5, Z: 5}), 1.0+1e-12)
	}
}

func TestThermalize_ZeroMomentum(t *testing.T) {
	d := New("A")
	require.NoError(t, d.AddMany(SimpleCubic(geom.Cube(5), 64), 0))
	d.Thermalize(1.0, rand.New(rand.NewSource(3)))

	var p r3.Vec
	for _, v := range d.Velocities() {
		p = r3.Add(p, v)
	}
	assert.InDelta(t, 0, r3.Norm(p), 1e-9)
	assert.Greater(t, d.KineticEnergy(), 0.0)
}
