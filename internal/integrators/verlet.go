package integrators

import (
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/san-kum/mdnlist/internal/particles"
)

// VelocityVerlet integrates unit-mass particles. A step is split around the
// force evaluation:
//
//	v.First(p)   // half kick, drift
//	... update neighbor list, compute forces ...
//	v.Second(p)  // half kick
type VelocityVerlet struct {
	Dt float64
}

func NewVelocityVerlet(dt float64) *VelocityVerlet {
	return &VelocityVerlet{Dt: dt}
}

func (v *VelocityVerlet) First(p *particles.Data) {
	pos, vel, f := p.Positions(), p.Velocities(), p.Forces()
	halfDt := 0.5 * v.Dt
	for i := range pos {
		vel[i] = r3.Add(vel[i], r3.Scale(halfDt, f[i]))
		pos[i] = r3.Add(pos[i], r3.Scale(v.Dt, vel[i]))
	}
}

func (v *VelocityVerlet) Second(p *particles.Data) {
	vel, f := p.Velocities(), p.Forces()
	halfDt := 0.5 * v.Dt
	for i := range vel {
		vel[i] = r3.Add(vel[i], r3.Scale(halfDt, f[i]))
	}
}

// Leapfrog drifts a full step on the current velocities and kicks with the
// forces from the end of the previous step. Positions and velocities are
// offset by half a step.
type Leapfrog struct {
	Dt float64
}

func NewLeapfrog(dt float64) *Leapfrog {
	return &Leapfrog{Dt: dt}
}

func (l *Leapfrog) First(p *particles.Data) {
	pos, vel, f := p.Positions(), p.Velocities(), p.Forces()
	for i := range pos {
		vel[i] = r3.Add(vel[i], r3.Scale(l.Dt, f[i]))
		pos[i] = r3.Add(pos[i], r3.Scale(l.Dt, vel[i]))
	}
}

func (l *Leapfrog) Second(*particles.Data) {}
