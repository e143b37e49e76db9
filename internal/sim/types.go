package sim

import (
	"fmt"
	"time"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/san-kum/mdnlist/internal/force"
	"github.com/san-kum/mdnlist/internal/geom"
	"github.com/san-kum/mdnlist/internal/nlist"
	"github.com/san-kum/mdnlist/internal/particles"
)

type Integrator interface {
	First(p *particles.Data)
	Second(p *particles.Data)
}

type Potential interface {
	Compute(p *particles.Data, box geom.Box, nl force.Lists) float64
}

type Observer interface {
	OnStep(info StepInfo)
}

type ObserverFunc func(info StepInfo)

func (f ObserverFunc) OnStep(info StepInfo) { f(info) }

type Config struct {
	Steps int
	// SortPeriod is the number of steps between spatial sorts; 0 disables.
	SortPeriod int
	SortWidth  float64
	// BoxScale is the box scale reached linearly by the last step. 0 and 1
	// keep the box fixed.
	BoxScale float64
	// VerifyEvery checks the list against brute force every so many steps.
	VerifyEvery int
}

type StepInfo struct {
	Step          uint64
	Box           geom.Box
	Rebuilt       bool
	Reason        nlist.Reason
	Potential     float64
	Kinetic       float64
	Capacity      int
	MeanNeighbors float64
	BuildTime     time.Duration
	Elapsed       time.Duration
}

func (s StepInfo) Total() float64 { return s.Potential + s.Kinetic }

type Result struct {
	Steps         int
	Builds        int
	Skips         int
	Overflows     int
	Dangerous     int
	Capacity      int
	InitialEnergy float64
	FinalEnergy   float64
	Elapsed       time.Duration
	Metrics       map[string]float64
}

// EnergyDrift is the relative change of total energy over the run.
func (r *Result) EnergyDrift() float64 {
	if r.InitialEnergy == 0 {
		return r.FinalEnergy
	}
	return (r.FinalEnergy - r.InitialEnergy) / abs(r.InitialEnergy)
}

type SimError struct {
	Step    uint64
	Message string
}

func (e *SimError) Error() string {
	return fmt.Sprintf("simulation error at step %d: %s", e.Step, e.Message)
}

func finite(v r3.Vec) bool {
	return !(isBad(v.X) || isBad(v.Y) || isBad(v.Z))
}
