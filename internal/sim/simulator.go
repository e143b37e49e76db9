package sim

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/sirupsen/logrus"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/san-kum/mdnlist/internal/geom"
	"github.com/san-kum/mdnlist/internal/nlist"
	"github.com/san-kum/mdnlist/internal/particles"
)

type Simulator struct {
	p          *particles.Data
	nl         *nlist.NeighborList
	potential  Potential
	integrator Integrator
	observers  []Observer

	box   geom.Box
	box0  geom.Box
	step  uint64
	ready bool
}

// New wires a simulator and attaches the list to the particle storage so
// reorders and count changes reach it.
func New(p *particles.Data, nl *nlist.NeighborList, pot Potential, integ Integrator, box geom.Box) *Simulator {
	p.Attach(nl)
	return &Simulator{
		p:          p,
		nl:         nl,
		potential:  pot,
		integrator: integ,
		box:        box,
		box0:       box,
		observers:  make([]Observer, 0),
	}
}

func (s *Simulator) AddObserver(o Observer) { s.observers = append(s.observers, o) }

func (s *Simulator) Particles() *particles.Data { return s.p }
func (s *Simulator) List() *nlist.NeighborList  { return s.nl }
func (s *Simulator) Box() geom.Box              { return s.box }
func (s *Simulator) Timestep() uint64           { return s.step }

// Init builds the list and forces at the current step.
func (s *Simulator) Init() (StepInfo, error) {
	start := time.Now()
	if err := s.nl.Update(s.step, s.p, s.box); err != nil {
		return StepInfo{}, err
	}
	pe := s.potential.Compute(s.p, s.box, s.nl)
	if math.IsNaN(pe) || math.IsInf(pe, 0) {
		return StepInfo{}, &SimError{Step: s.step, Message: "non-finite potential energy"}
	}
	s.ready = true
	return s.info(pe, time.Since(start)), nil
}

// Step advances one timestep.
func (s *Simulator) Step(cfg Config) (StepInfo, error) {
	if !s.ready {
		if _, err := s.Init(); err != nil {
			return StepInfo{}, err
		}
	}
	start := time.Now()
	s.step++

	if err := s.rampBox(cfg); err != nil {
		return StepInfo{}, err
	}

	s.integrator.First(s.p)

	if cfg.SortPeriod > 0 && s.step%uint64(cfg.SortPeriod) == 0 {
		width := cfg.SortWidth
		if width <= 0 {
			width = 1
		}
		s.p.WrapInto(s.box)
		s.p.SortSpatial(s.box, width)
	}

	if err := s.nl.Update(s.step, s.p, s.box); err != nil {
		return StepInfo{}, err
	}
	if cfg.VerifyEvery > 0 && s.step%uint64(cfg.VerifyEvery) == 0 {
		if err := s.nl.Verify(s.p, s.box); err != nil {
			return StepInfo{}, fmt.Errorf("step %d: %w", s.step, err)
		}
	}

	pe := s.potential.Compute(s.p, s.box, s.nl)
	s.integrator.Second(s.p)

	if math.IsNaN(pe) || math.IsInf(pe, 0) {
		return StepInfo{}, &SimError{Step: s.step, Message: "non-finite potential energy"}
	}
	for _, v := range s.p.Velocities() {
		if !finite(v) {
			return StepInfo{}, &SimError{Step: s.step, Message: "non-finite velocity"}
		}
	}

	return s.info(pe, time.Since(start)), nil
}

// rampBox scales the box and positions affinely toward cfg.BoxScale.
func (s *Simulator) rampBox(cfg Config) error {
	if cfg.BoxScale <= 0 || cfg.BoxScale == 1 || cfg.Steps <= 0 || s.step > uint64(cfg.Steps) {
		return nil
	}
	f := 1 + (cfg.BoxScale-1)*float64(s.step)/float64(cfg.Steps)
	next := s.box0.Scaled(f)
	if err := s.nl.BoxChanged(next); err != nil {
		return &SimError{Step: s.step, Message: err.Error()}
	}
	sx, sy, sz := next.L.X/s.box.L.X, next.L.Y/s.box.L.Y, next.L.Z/s.box.L.Z
	pos := s.p.Positions()
	for i := range pos {
		pos[i] = r3.Vec{X: pos[i].X * sx, Y: pos[i].Y * sy, Z: pos[i].Z * sz}
	}
	s.box = next
	return nil
}

func (s *Simulator) info(pe float64, elapsed time.Duration) StepInfo {
	st := s.nl.Stats()
	info := StepInfo{
		Step:          s.step,
		Box:           s.box,
		Rebuilt:       s.nl.Rebuilt(),
		Potential:     pe,
		Kinetic:       s.p.KineticEnergy(),
		Capacity:      st.Capacity,
		MeanNeighbors: st.MeanNeighbors,
		Elapsed:       elapsed,
	}
	if info.Rebuilt {
		info.Reason = st.LastReason
		info.BuildTime = st.LastBuildDuration
	}
	return info
}

func (s *Simulator) notify(info StepInfo) {
	for _, obs := range s.observers {
		obs.OnStep(info)
	}
}

// Run initializes and advances cfg.Steps steps. On error the partial result
// is returned with it.
func (s *Simulator) Run(ctx context.Context, cfg Config) (*Result, error) {
	if err := validateConfig(cfg); err != nil {
		return nil, err
	}
	start := time.Now()
	result := &Result{Metrics: make(map[string]float64)}

	info, err := s.Init()
	if err != nil {
		return nil, err
	}
	result.InitialEnergy = info.Total()
	result.FinalEnergy = info.Total()
	s.notify(info)

	for i := 0; i < cfg.Steps; i++ {
		select {
		case <-ctx.Done():
			s.finish(result, start)
			return result, ctx.Err()
		default:
		}

		info, err = s.Step(cfg)
		if err != nil {
			s.finish(result, start)
			var be *nlist.BuildError
			if errors.As(err, &be) {
				logrus.WithFields(logrus.Fields{"step": be.Step, "op": be.Op}).Error("sim: neighbor list build failed")
			}
			return result, err
		}
		result.Steps++
		result.FinalEnergy = info.Total()
		s.notify(info)
	}

	s.finish(result, start)
	logrus.WithFields(logrus.Fields{
		"steps":  result.Steps,
		"builds": result.Builds,
		"drift":  result.EnergyDrift(),
	}).Debug("sim: run complete")
	return result, nil
}

func (s *Simulator) finish(r *Result, start time.Time) {
	st := s.nl.Stats()
	r.Builds = st.Builds
	r.Skips = st.Skips
	r.Overflows = st.Overflows
	r.Dangerous = st.Dangerous
	r.Capacity = st.Capacity
	r.Elapsed = time.Since(start)

	r.Metrics["builds"] = float64(st.Builds)
	r.Metrics["skips"] = float64(st.Skips)
	r.Metrics["overflows"] = float64(st.Overflows)
	r.Metrics["dangerous"] = float64(st.Dangerous)
	r.Metrics["capacity"] = float64(st.Capacity)
	r.Metrics["mean_neighbors"] = st.MeanNeighbors
	r.Metrics["energy_drift"] = r.EnergyDrift()
	if r.Steps > 0 {
		r.Metrics["rebuild_rate"] = float64(st.Builds) / float64(r.Steps)
		r.Metrics["ns_per_step"] = float64(r.Elapsed.Nanoseconds()) / float64(r.Steps)
	}
}

func validateConfig(cfg Config) error {
	if cfg.Steps < 0 {
		return fmt.Errorf("steps must not be negative, got %d", cfg.Steps)
	}
	if cfg.SortPeriod < 0 || cfg.VerifyEvery < 0 {
		return fmt.Errorf("sort period and verify interval must not be negative")
	}
	if cfg.BoxScale < 0 {
		return fmt.Errorf("box scale must not be negative, got %g", cfg.BoxScale)
	}
	return nil
}

func isBad(x float64) bool  { return math.IsNaN(x) || math.IsInf(x, 0) }
func abs(x float64) float64 { return math.Abs(x) }
