package metrics

import (
	"gonum.org/v1/gonum/stat"

	"github.com/san-kum/mdnlist/internal/sim"
)

// StepRow is one sampled step of a run.
type StepRow struct {
	Step          uint64
	Potential     float64
	Kinetic       float64
	Rebuilt       bool
	Reason        string
	Capacity      int
	MeanNeighbors float64
	BuildSeconds  float64
	StepSeconds   float64
}

// Recorder keeps every Nth step.
type Recorder struct {
	every int
	rows  []StepRow
}

func NewRecorder(every int) *Recorder {
	if every < 1 {
		every = 1
	}
	return &Recorder{every: every}
}

func (r *Recorder) OnStep(info sim.StepInfo) {
	if info.Step%uint64(r.every) != 0 && !info.Rebuilt {
		return
	}
	row := StepRow{
		Step:          info.Step,
		Potential:     info.Potential,
		Kinetic:       info.Kinetic,
		Rebuilt:       info.Rebuilt,
		Capacity:      info.Capacity,
		MeanNeighbors: info.MeanNeighbors,
		BuildSeconds:  info.BuildTime.Seconds(),
		StepSeconds:   info.Elapsed.Seconds(),
	}
	if info.Rebuilt {
		row.Reason = info.Reason.String()
	}
	r.rows = append(r.rows, row)
}

func (r *Recorder) Rows() []StepRow { return r.rows }

type Summary struct {
	Rows            int
	Builds          int
	MeanEnergy      float64
	EnergyStdDev    float64
	MeanBuildTime   float64
	BuildTimeStdDev float64
	MeanStepTime    float64
	MeanNeighbors   float64
}

// Summarize reduces recorded rows with sample statistics.
func Summarize(rows []StepRow) Summary {
	s := Summary{Rows: len(rows)}
	if len(rows) == 0 {
		return s
	}
	energy := make([]float64, len(rows))
	step := make([]float64, len(rows))
	var build, neigh []float64
	for i, row := range rows {
		energy[i] = row.Potential + row.Kinetic
		step[i] = row.StepSeconds
		if row.Rebuilt {
			build = append(build, row.BuildSeconds)
			neigh = append(neigh, row.MeanNeighbors)
		}
	}
	s.Builds = len(build)
	s.MeanEnergy, s.EnergyStdDev = meanStdDev(energy)
	s.MeanStepTime = stat.Mean(step, nil)
	if len(build) > 0 {
		s.MeanBuildTime, s.BuildTimeStdDev = meanStdDev(build)
		s.MeanNeighbors = stat.Mean(neigh, nil)
	}
	return s
}

func meanStdDev(x []float64) (mean, std float64) {
	if len(x) < 2 {
		return stat.Mean(x, nil), 0
	}
	return stat.MeanStdDev(x, nil)
}
