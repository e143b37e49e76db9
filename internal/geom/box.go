package geom

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/spatial/r3"
)

var ErrInvalidBox = errors.New("geom: box lengths must be positive and finite")

type Box struct {
	L r3.Vec
}

func NewBox(lx, ly, lz float64) (Box, error) {
	b := Box{L: r3.Vec{X: lx, Y: ly, Z: lz}}
	if !b.Valid() {
		return Box{}, fmt.Errorf("%w: got %v", ErrInvalidBox, b.L)
	}
	return b, nil
}

// Cube returns a cubic box of side l. It does not validate l.
func Cube(l float64) Box {
	return Box{L: r3.Vec{X: l, Y: l, Z: l}}
}

func (b Box) Valid() bool {
	for a := 0; a < 3; a++ {
		l := Axis(b.L, a)
		if !(l > 0) || math.IsInf(l, 0) {
			return false
		}
	}
	return true
}

func (b Box) Volume() float64 { return b.L.X * b.L.Y * b.L.Z }

func (b Box) MinLength() float64 {
	return math.Min(b.L.X, math.Min(b.L.Y, b.L.Z))
}

// Scaled returns the box with every length multiplied by f.
func (b Box) Scaled(f float64) Box {
	return Box{L: r3.Scale(f, b.L)}
}

// MinImage reduces a separation vector to its closest periodic replica.
func (b Box) MinImage(d r3.Vec) r3.Vec {
	d.X -= b.L.X * math.Round(d.X/b.L.X)
	d.Y -= b.L.Y * math.Round(d.Y/b.L.Y)
	d.Z -= b.L.Z * math.Round(d.Z/b.L.Z)
	return d
}

// Dist2 is the squared minimum-image distance from p to q.
func (b Box) Dist2(p, q r3.Vec) float64 {
	return r3.Norm2(b.MinImage(r3.Sub(q, p)))
}

// Wrap folds p into [0, L).
func (b Box) Wrap(p r3.Vec) r3.Vec {
	return r3.Vec{
		X: wrap1(p.X, b.L.X),
		Y: wrap1(p.Y, b.L.Y),
		Z: wrap1(p.Z, b.L.Z),
	}
}

// Fraction returns the wrapped fractional coordinates of p, each in [0, 1).
func (b Box) Fraction(p r3.Vec) r3.Vec {
	w := b.Wrap(p)
	f := r3.Vec{X: w.X / b.L.X, Y: w.Y / b.L.Y, Z: w.Z / b.L.Z}
	// rounding can land exactly on 1
	if f.X >= 1 {
		f.X = 0
	}
	if f.Y >= 1 {
		f.Y = 0
	}
	if f.Z >= 1 {
		f.Z = 0
	}
	return f
}

// FitsRange reports whether r satisfies the minimum-image condition
// L >= 2r along every axis. The first failing axis is returned otherwise.
func (b Box) FitsRange(r float64) (ok bool, axis int) {
	for a := 0; a < 3; a++ {
		if Axis(b.L, a) < 2*r {
			return false, a
		}
	}
	return true, -1
}

func (b Box) Equal(o Box) bool { return b.L == o.L }

func (b Box) String() string {
	return fmt.Sprintf("%gx%gx%g", b.L.X, b.L.Y, b.L.Z)
}

func wrap1(x, l float64) float64 {
	x -= l * math.Floor(x/l)
	if x >= l {
		x = 0
	}
	return x
}

// Axis returns component a (0=x, 1=y, 2=z) of v.
func Axis(v r3.Vec, a int) float64 {
	switch a {
	case 0:
		return v.X
	case 1:
		return v.Y
	default:
		return v.Z
	}
}

func AxisName(a int) string {
	return [...]string{"x", "y", "z"}[a]
}
