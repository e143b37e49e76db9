package metrics

import "github.com/san-kum/mdnlist/internal/sim"

type Metric interface {
	Name() string
	Observe(info sim.StepInfo)
	Value() float64
	Reset()
}

// Set fans step notifications out to every metric.
type Set []Metric

func (s Set) OnStep(info sim.StepInfo) {
	for _, m := range s {
		m.Observe(info)
	}
}

func (s Set) Values() map[string]float64 {
	out := make(map[string]float64, len(s))
	for _, m := range s {
		out[m.Name()] = m.Value()
	}
	return out
}

func (s Set) Reset() {
	for _, m := range s {
		m.Reset()
	}
}

// Standard returns the metrics attached to every run.
func Standard() Set {
	return Set{NewEnergy(), NewEnergyDrift(), NewRebuildRate(), NewMeanBuildTime()}
}
