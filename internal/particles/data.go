package particles

import (
	"errors"
	"fmt"
	"sort"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/san-kum/mdnlist/internal/geom"
)

var (
	ErrUnknownType = errors.New("particles: unknown particle type")
	ErrUnknownTag  = errors.New("particles: unknown particle tag")
)

// Listener receives storage events. Calls are synchronous.
type Listener interface {
	ParticlesReordered()
	ParticleCountChanged()
}

type Data struct {
	pos   []r3.Vec
	vel   []r3.Vec
	force []r3.Vec
	types []uint32
	tags  []uint32
	diam  []float64

	rtag      []int
	typeNames []string
	listener  Listener
}

func New(typeNames ...string) *Data {
	if len(typeNames) == 0 {
		typeNames = []string{"A"}
	}
	names := make([]string, len(typeNames))
	copy(names, typeNames)
	return &Data{typeNames: names}
}

// Attach sets the single listener for reorder and count events.
func (d *Data) Attach(l Listener) { d.listener = l }

func (d *Data) N() int               { return len(d.pos) }
func (d *Data) NumTypes() int        { return len(d.typeNames) }
func (d *Data) TypeNames() []string  { return d.typeNames }
func (d *Data) Positions() []r3.Vec  { return d.pos }
func (d *Data) Velocities() []r3.Vec { return d.vel }
func (d *Data) Forces() []r3.Vec     { return d.force }
func (d *Data) Types() []uint32      { return d.types }
func (d *Data) Tags() []uint32       { return d.tags }
func (d *Data) Diameters() []float64 { return d.diam }

func (d *Data) TypeID(name string) (uint32, error) {
	for i, n := range d.typeNames {
		if n == name {
			return uint32(i), nil
		}
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownType, name)
}

// Add appends a particle with unit diameter and returns its tag.
func (d *Data) Add(p r3.Vec, typ uint32) (uint32, error) {
	tag, err := d.add(p, typ)
	if err != nil {
		return 0, err
	}
	d.notifyCount()
	return tag, nil
}

// AddMany appends a batch of particles of one type as a single count event.
func (d *Data) AddMany(ps []r3.Vec, typ uint32) error {
	for _, p := range ps {
		if _, err := d.add(p, typ); err != nil {
			return err
		}
	}
	if len(ps) > 0 {
		d.notifyCount()
	}
	return nil
}

func (d *Data) add(p r3.Vec, typ uint32) (uint32, error) {
	if int(typ) >= len(d.typeNames) {
		return 0, fmt.Errorf("%w: %d", ErrUnknownType, typ)
	}
	tag := uint32(len(d.rtag))
	d.rtag = append(d.rtag, len(d.pos))
	d.pos = append(d.pos, p)
	d.vel = append(d.vel, r3.Vec{})
	d.force = append(d.force, r3.Vec{})
	d.types = append(d.types, typ)
	d.tags = append(d.tags, tag)
	d.diam = append(d.diam, 1)
	return tag, nil
}

// Remove deletes the particle with the given tag, keeping the relative order
// of the others.
func (d *Data) Remove(tag uint32) error {
	idx, err := d.Index(tag)
	if err != nil {
		return err
	}
	d.pos = append(d.pos[:idx], d.pos[idx+1:]...)
	d.vel = append(d.vel[:idx], d.vel[idx+1:]...)
	d.force = append(d.force[:idx], d.force[idx+1:]...)
	d.types = append(d.types[:idx], d.types[idx+1:]...)
	d.tags = append(d.tags[:idx], d.tags[idx+1:]...)
	d.diam = append(d.diam[:idx], d.diam[idx+1:]...)

	d.rtag[tag] = -1
	for i := idx; i < len(d.tags); i++ {
		d.rtag[d.tags[i]] = i
	}
	d.notifyCount()
	return nil
}

// Index returns the current local index of tag.
func (d *Data) Index(tag uint32) (int, error) {
	if int(tag) >= len(d.rtag) || d.rtag[tag] < 0 {
		return -1, fmt.Errorf("%w: %d", ErrUnknownTag, tag)
	}
	return d.rtag[tag], nil
}

func (d *Data) SetDiameter(tag uint32, diameter float64) error {
	idx, err := d.Index(tag)
	if err != nil {
		return err
	}
	d.diam[idx] = diameter
	return nil
}

func (d *Data) MaxDiameter() float64 {
	m := 0.0
	for _, v := range d.diam {
		if v > m {
			m = v
		}
	}
	return m
}

// SortSpatial reorders particles by the index of the cell of width cellWidth
// containing them, ties broken by tag. Neighbors in space end up close in
// memory. The listener is told once.
func (d *Data) SortSpatial(box geom.Box, cellWidth float64) {
	n := len(d.pos)
	if n < 2 || cellWidth <= 0 {
		return
	}
	nx := cellsAlong(box.L.X, cellWidth)
	ny := cellsAlong(box.L.Y, cellWidth)
	nz := cellsAlong(box.L.Z, cellWidth)

	keys := make([]int, n)
	for i, p := range d.pos {
		f := box.Fraction(p)
		cx := clampCell(int(f.X*float64(nx)), nx)
		cy := clampCell(int(f.Y*float64(ny)), ny)
		cz := clampCell(int(f.Z*float64(nz)), nz)
		keys[i] = (cz*ny+cy)*nx + cx
	}

	perm := make([]int, n)
	for i := range perm {
		perm[i] = i
	}
	sort.Slice(perm, func(a, b int) bool {
		ka, kb := keys[perm[a]], keys[perm[b]]
		if ka != kb {
			return ka < kb
		}
		return d.tags[perm[a]] < d.tags[perm[b]]
	})
	d.Permute(perm)
}

// Permute reorders storage so new index i holds old index perm[i].
func (d *Data) Permute(perm []int) {
	n := len(d.pos)
	if len(perm) != n {
		return
	}
	pos := make([]r3.Vec, n)
	vel := make([]r3.Vec, n)
	force := make([]r3.Vec, n)
	types := make([]uint32, n)
	tags := make([]uint32, n)
	diam := make([]float64, n)
	for i, old := range perm {
		pos[i] = d.pos[old]
		vel[i] = d.vel[old]
		force[i] = d.force[old]
		types[i] = d.types[old]
		tags[i] = d.tags[old]
		diam[i] = d.diam[old]
		d.rtag[tags[i]] = i
	}
	d.pos, d.vel, d.force, d.types, d.tags, d.diam = pos, vel, force, types, tags, diam
	if d.listener != nil {
		d.listener.ParticlesReordered()
	}
}

// WrapInto folds every position into box.
func (d *Data) WrapInto(box geom.Box) {
	for i, p := range d.pos {
		d.pos[i] = box.Wrap(p)
	}
}

func (d *Data) notifyCount() {
	if d.listener != nil {
		d.listener.ParticleCountChanged()
	}
}

func cellsAlong(l, w float64) int {
	n := int(l / w)
	if n < 1 {
		n = 1
	}
	return n
}

func clampCell(c, n int) int {
	if c >= n {
		return n - 1
	}
	if c < 0 {
		return 0
	}
	return c
}
