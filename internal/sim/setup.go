package sim

import (
	"fmt"
	"math/rand"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/san-kum/mdnlist/internal/compute"
	"github.com/san-kum/mdnlist/internal/config"
	"github.com/san-kum/mdnlist/internal/force"
	"github.com/san-kum/mdnlist/internal/geom"
	"github.com/san-kum/mdnlist/internal/integrators"
	"github.com/san-kum/mdnlist/internal/nlist"
	"github.com/san-kum/mdnlist/internal/particles"
)

// FromConfig builds a ready simulator and its run settings. The config is
// validated first.
func FromConfig(cfg *config.Config) (*Simulator, Config, error) {
	if err := cfg.Validate(); err != nil {
		return nil, Config{}, err
	}
	box, err := geom.NewBox(cfg.Box.X, cfg.Box.Y, cfg.Box.Z)
	if err != nil {
		return nil, Config{}, err
	}

	backend, ok := compute.ByName(cfg.Compute.Backend, cfg.Compute.Workers)
	if !ok {
		return nil, Config{}, fmt.Errorf("%w: backend %q", config.ErrInvalidConfig, cfg.Compute.Backend)
	}

	rng := rand.New(rand.NewSource(cfg.Seed))
	p, err := placeParticles(cfg, box, rng)
	if err != nil {
		return nil, Config{}, err
	}
	p.Thermalize(cfg.KT, rng)

	nl, err := NewList(cfg)
	if err != nil {
		return nil, Config{}, err
	}
	nl.SetBackend(backend)

	lj := force.NewLJ(cfg.Potential.Epsilon, cfg.Potential.Sigma, cfg.RCut)
	lj.SetBackend(backend)
	if len(cfg.PairCutoffs) > 0 {
		lj.SetCutoffs(nl.NumTypes(), nl.RCut)
	}

	s := New(p, nl, lj, integrators.NewVelocityVerlet(cfg.Dt), box)
	run := Config{
		Steps:      cfg.Steps,
		SortPeriod: cfg.SortPeriod,
		SortWidth:  cfg.MaxRCut() + cfg.RBuff,
		BoxScale:   cfg.BoxScale,
	}
	return s, run, nil
}

// NewList configures a neighbor list from cfg without a backend override.
func NewList(cfg *config.Config) (*nlist.NeighborList, error) {
	ncfg := nlist.DefaultConfig()
	ncfg.RBuff = cfg.RBuff
	ncfg.Every = cfg.NeighborList.Every
	ncfg.DistCheck = cfg.NeighborList.DistCheck
	ncfg.CellWidth = cfg.NeighborList.CellWidth
	ncfg.DiameterShift = cfg.NeighborList.DiameterShift
	if cfg.NeighborList.InitialCapacity > 0 {
		ncfg.InitialCapacity = cfg.NeighborList.InitialCapacity
	}
	if cfg.NeighborList.MaxNeighbors > 0 {
		ncfg.MaxNeighbors = cfg.NeighborList.MaxNeighbors
	}
	mode, ok := nlist.ParseStorageMode(cfg.NeighborList.Storage)
	if !ok {
		return nil, fmt.Errorf("%w: storage %q", config.ErrInvalidConfig, cfg.NeighborList.Storage)
	}
	ncfg.Storage = mode

	nl := nlist.New(len(cfg.Types), cfg.RCut, ncfg)
	for _, pc := range cfg.PairCutoffs {
		a, _ := cfg.TypeIndex(pc.A)
		b, _ := cfg.TypeIndex(pc.B)
		if err := nl.SetRCutPair(uint32(a), uint32(b), pc.RCut); err != nil {
			return nil, err
		}
	}

	dmax := 1.0
	for _, t := range cfg.Types {
		if t.Diameter > dmax {
			dmax = t.Diameter
		}
	}
	if err := nl.SetMaximumDiameter(dmax); err != nil {
		return nil, err
	}

	period := cfg.Compute.AutotunePeriod
	if period <= 0 {
		period = nlist.DefaultAutotunePeriod
	}
	nl.SetAutotunerParams(cfg.Compute.Autotune, period)
	return nl, nil
}

func placeParticles(cfg *config.Config, box geom.Box, rng *rand.Rand) (*particles.Data, error) {
	n := cfg.N()
	var pts []r3.Vec
	switch cfg.Lattice {
	case "cubic":
		pts = particles.SimpleCubic(box, n)
	case "uniform":
		pts = particles.Uniform(box, n, rng)
	case "cluster":
		center := r3.Scale(0.5, box.L)
		pts = particles.Cluster(box, center, cfg.ClusterRadius, n, rng)
	default:
		return nil, fmt.Errorf("%w: lattice %q", config.ErrInvalidConfig, cfg.Lattice)
	}
	rng.Shuffle(len(pts), func(i, j int) { pts[i], pts[j] = pts[j], pts[i] })

	p := particles.New(cfg.TypeNames()...)
	k := 0
	for typ, t := range cfg.Types {
		for c := 0; c < t.Count; c++ {
			tag, err := p.Add(pts[k], uint32(typ))
			if err != nil {
				return nil, err
			}
			if t.Diameter > 0 {
				if err := p.SetDiameter(tag, t.Diameter); err != nil {
					return nil, err
				}
			}
			k++
		}
	}
	return p, nil
}
