package particles

import (
	"math"
	"math/rand"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/san-kum/mdnlist/internal/geom"
)

// SimpleCubic returns up to n points on a simple cubic lattice filling box.
func SimpleCubic(box geom.Box, n int) []r3.Vec {
	if n <= 0 {
		return nil
	}
	side := int(math.Ceil(math.Cbrt(float64(n))))
	a := r3.Vec{X: box.L.X / float64(side), Y: box.L.Y / float64(side), Z: box.L.Z / float64(side)}
	pts := make([]r3.Vec, 0, n)
	for k := 0; k < side && len(pts) < n; k++ {
		for j := 0; j < side && len(pts) < n; j++ {
			for i := 0; i < side && len(pts) < n; i++ {
				pts = append(pts, r3.Vec{
					X: (float64(i) + 0.5) * a.X,
					Y: (float64(j) + 0.5) * a.Y,
					Z: (float64(k) + 0.5) * a.Z,
				})
			}
		}
	}
	return pts
}

// Uniform returns n points drawn uniformly in box.
func Uniform(box geom.Box, n int, rng *rand.Rand) []r3.Vec {
	pts := make([]r3.Vec, n)
	for i := range pts {
		pts[i] = r3.Vec{
			X: rng.Float64() * box.L.X,
			Y: rng.Float64() * box.L.Y,
			Z: rng.Float64() * box.L.Z,
		}
	}
	return pts
}

// Cluster returns n points uniformly inside a sphere, wrapped into box.
func Cluster(box geom.Box, center r3.Vec, radius float64, n int, rng *rand.Rand) []r3.Vec {
	pts := make([]r3.Vec, 0, n)
	for len(pts) < n {
		p := r3.Vec{X: 2*rng.Float64() - 1, Y: 2*rng.Float64() - 1, Z: 2*rng.Float64() - 1}
		if r3.Norm2(p) > 1 {
			continue
		}
		pts = append(pts, box.Wrap(r3.Add(center, r3.Scale(radius, p))))
	}
	return pts
}

// Thermalize draws Gaussian velocities at temperature kT (unit mass) and
// removes the net momentum.
func (d *Data) Thermalize(kT float64, rng *rand.Rand) {
	n := len(d.vel)
	if n == 0 {
		return
	}
	sigma := math.Sqrt(kT)
	var sum r3.Vec
	for i := range d.vel {
		v := r3.Vec{X: rng.NormFloat64() * sigma, Y: rng.NormFloat64() * sigma, Z: rng.NormFloat64() * sigma}
		d.vel[i] = v
		sum = r3.Add(sum, v)
	}
	mean := r3.Scale(1/float64(n), sum)
	for i := range d.vel {
		d.vel[i] = r3.Sub(d.vel[i], mean)
	}
}

// KineticEnergy returns the total kinetic energy for unit masses.
func (d *Data) KineticEnergy() float64 {
	ke := 0.0
	for _, v := range d.vel {
		ke += 0.5 * r3.Norm2(v)
	}
	return ke
}
