package metrics

import (
	"time"

	"github.com/san-kum/mdnlist/internal/sim"
)

// RebuildRate is the fraction of observed steps that rebuilt the list.
type RebuildRate struct {
	name     string
	rebuilds int
	samples  int
}

func NewRebuildRate() *RebuildRate {
	return &RebuildRate{name: "rebuild_rate"}
}

func (r *RebuildRate) Name() string {
	return r.name
}

func (r *RebuildRate) Observe(info sim.StepInfo) {
	r.samples++
	if info.Rebuilt {
		r.rebuilds++
	}
}

func (r *RebuildRate) Value() float64 {
	if r.samples == 0 {
		return 0
	}
	return float64(r.rebuilds) / float64(r.samples)
}

func (r *RebuildRate) Reset() {
	r.rebuilds = 0
	r.samples = 0
}

// MeanBuildTime averages the list build duration over rebuilding steps, in
// seconds.
type MeanBuildTime struct {
	name   string
	sum    time.Duration
	builds int
}

func NewMeanBuildTime() *MeanBuildTime {
	return &MeanBuildTime{name: "mean_build_seconds"}
}

func (m *MeanBuildTime) Name() string {
	return m.name
}

func (m *MeanBuildTime) Observe(info sim.StepInfo) {
	if !info.Rebuilt {
		return
	}
	m.sum += info.BuildTime
	m.builds++
}

func (m *MeanBuildTime) Value() float64 {
	if m.builds == 0 {
		return 0
	}
	return m.sum.Seconds() / float64(m.builds)
}

func (m *MeanBuildTime) Reset() {
	m.sum = 0
	m.builds = 0
}
