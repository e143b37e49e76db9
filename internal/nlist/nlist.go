package nlist

import (
	"fmt"
	"math"
	"sync"
	"time"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/san-kum/mdnlist/internal/autotune"
	"github.com/san-kum/mdnlist/internal/celllist"
	"github.com/san-kum/mdnlist/internal/compute"
	"github.com/san-kum/mdnlist/internal/geom"
	"github.com/san-kum/mdnlist/internal/stencil"
)

// ParticleSource is the read side of particle storage the list consumes.
type ParticleSource interface {
	N() int
	Positions() []r3.Vec
	Types() []uint32
	Tags() []uint32
	Diameters() []float64
}

// Stats summarizes list activity since construction.
type Stats struct {
	Builds      int
	Skips       int
	Overflows   int
	Dangerous   int
	GridRetries int

	Capacity      int
	MaxNeighbors  int
	MeanNeighbors float64

	LastBuildStep     uint64
	LastReason        Reason
	LastBuildDuration time.Duration
	Cells             int
	StencilOffsets    int
}

type snapshot struct {
	pos   []r3.Vec
	box   geom.Box
	n     int
	valid bool
}

type NeighborList struct {
	// mu serializes Update against the configuration setters.
	mu sync.Mutex

	cfg     Config
	ntypes  int
	rcut    []float64
	backend compute.Backend
	tuner   autotune.Tuner

	signals Signals

	grid           *celllist.Grid
	table          *stencil.Table
	needsRestencil bool
	maxDiameter    float64

	exclusions map[uint64]struct{}

	capacity int
	list     []uint32
	counts   []int
	overflow compute.Overflow

	last   snapshot
	box    geom.Box
	hasBox bool

	rebuilt   bool
	lastBuild uint64
	stats     Stats
}

// New returns a list for ntypes particle types with every pair cutoff set to
// rcut. It uses the active compute backend and an enabled autotuner.
func New(ntypes int, rcut float64, cfg Config) *NeighborList {
	if ntypes < 1 {
		ntypes = 1
	}
	cfg.normalize()
	backend := compute.GetBackend()
	nl := &NeighborList{
		cfg:            cfg,
		ntypes:         ntypes,
		rcut:           make([]float64, ntypes*ntypes),
		backend:        backend,
		tuner:          autotune.New(autotune.DefaultCandidates, DefaultAutotuneSamples, DefaultAutotunePeriod),
		grid:           celllist.New(ntypes, cfg.Grid, backend),
		needsRestencil: true,
		maxDiameter:    1,
		exclusions:     make(map[uint64]struct{}),
		capacity:       cfg.InitialCapacity,
	}
	for i := range nl.rcut {
		nl.rcut[i] = rcut
	}
	nl.signals.MarkCutoffChanged()
	return nl
}

func (nl *NeighborList) SetBackend(b compute.Backend) {
	nl.mu.Lock()
	defer nl.mu.Unlock()
	nl.backend = b
	nl.grid = celllist.New(nl.ntypes, nl.cfg.Grid, b)
	nl.needsRestencil = true
	nl.signals.markForced()
}

func (nl *NeighborList) SetTuner(t autotune.Tuner) {
	nl.mu.Lock()
	defer nl.mu.Unlock()
	nl.tuner = t
}

// SetAutotunerParams forwards to the tuner if it supports it.
func (nl *NeighborList) SetAutotunerParams(enable bool, period int) {
	nl.mu.Lock()
	defer nl.mu.Unlock()
	if p, ok := nl.tuner.(interface{ SetParams(bool, int) }); ok {
		p.SetParams(enable, period)
	}
}

// Signals exposes the invalidation flags to collaborators.
func (nl *NeighborList) Signals() *Signals { return &nl.signals }

func (nl *NeighborList) ParticlesReordered()   { nl.signals.MarkReorder() }
func (nl *NeighborList) ParticleCountChanged() { nl.signals.MarkCountChanged() }

// SetRCut sets the cutoff of every type pair and the buffer.
func (nl *NeighborList) SetRCut(rcut, rbuff float64) error {
	nl.mu.Lock()
	defer nl.mu.Unlock()
	if math.IsNaN(rcut) || !(rbuff >= 0) {
		return fmt.Errorf("%w: rcut %g, rbuff %g", ErrInvalidCutoff, rcut, rbuff)
	}
	next := make([]float64, len(nl.rcut))
	for i := range next {
		next[i] = rcut
	}
	if err := nl.checkGeometry(next, rbuff, nl.maxDiameter); err != nil {
		return err
	}
	nl.rcut = next
	nl.cfg.RBuff = rbuff
	nl.cutoffChanged()
	return nil
}

// SetRCutPair sets the cutoff of pair (a, b) and (b, a). r <= 0 disables
// the pair.
func (nl *NeighborList) SetRCutPair(a, b uint32, r float64) error {
	nl.mu.Lock()
	defer nl.mu.Unlock()
	if int(a) >= nl.ntypes || int(b) >= nl.ntypes {
		return fmt.Errorf("%w: pair (%d,%d) with %d types", ErrTypeMismatch, a, b, nl.ntypes)
	}
	if math.IsNaN(r) {
		return fmt.Errorf("%w: rcut %g", ErrInvalidCutoff, r)
	}
	next := append([]float64(nil), nl.rcut...)
	next[int(a)*nl.ntypes+int(b)] = r
	next[int(b)*nl.ntypes+int(a)] = r
	if err := nl.checkGeometry(next, nl.cfg.RBuff, nl.maxDiameter); err != nil {
		return err
	}
	nl.rcut = next
	nl.cutoffChanged()
	return nil
}

func (nl *NeighborList) SetBuffer(rbuff float64) error {
	nl.mu.Lock()
	defer nl.mu.Unlock()
	if !(rbuff >= 0) {
		return fmt.Errorf("%w: rbuff %g", ErrInvalidCutoff, rbuff)
	}
	if err := nl.checkGeometry(nl.rcut, rbuff, nl.maxDiameter); err != nil {
		return err
	}
	nl.cfg.RBuff = rbuff
	nl.cutoffChanged()
	return nil
}

// SetCellWidth overrides the nominal cell width. 0 restores the default.
func (nl *NeighborList) SetCellWidth(w float64) error {
	nl.mu.Lock()
	defer nl.mu.Unlock()
	if w < 0 || math.IsNaN(w) {
		return fmt.Errorf("%w: %g", celllist.ErrInvalidWidth, w)
	}
	nl.cfg.CellWidth = w
	nl.needsRestencil = true
	nl.signals.markForced()
	return nil
}

// SetMaximumDiameter sets the largest diameter used to size the stencil
// when diameter shifting is enabled.
func (nl *NeighborList) SetMaximumDiameter(d float64) error {
	nl.mu.Lock()
	defer nl.mu.Unlock()
	if !(d > 0) {
		return fmt.Errorf("%w: diameter %g", ErrInvalidCutoff, d)
	}
	if err := nl.checkGeometry(nl.rcut, nl.cfg.RBuff, d); err != nil {
		return err
	}
	nl.maxDiameter = d
	nl.cutoffChanged()
	return nil
}

func (nl *NeighborList) SetDiameterShift(on bool) {
	nl.mu.Lock()
	defer nl.mu.Unlock()
	if nl.cfg.DiameterShift != on {
		nl.cfg.DiameterShift = on
		nl.cutoffChanged()
	}
}

// SetEvery sets the number of steps between rebuild checks.
func (nl *NeighborList) SetEvery(every int, distCheck bool) {
	nl.mu.Lock()
	defer nl.mu.Unlock()
	if every < 1 {
		every = 1
	}
	nl.cfg.Every = every
	nl.cfg.DistCheck = distCheck
}

func (nl *NeighborList) SetStorage(m StorageMode) {
	nl.mu.Lock()
	defer nl.mu.Unlock()
	if nl.cfg.Storage != m {
		nl.cfg.Storage = m
		nl.signals.markForced()
	}
}

// ForceUpdate makes the next Update rebuild.
func (nl *NeighborList) ForceUpdate() { nl.signals.markForced() }

// AddExclusion removes the pair with tags a and b from every future build.
func (nl *NeighborList) AddExclusion(a, b uint32) {
	nl.mu.Lock()
	defer nl.mu.Unlock()
	nl.exclusions[pairKey(a, b)] = struct{}{}
	nl.signals.markForced()
}

func (nl *NeighborList) ClearExclusions() {
	nl.mu.Lock()
	defer nl.mu.Unlock()
	if len(nl.exclusions) > 0 {
		nl.exclusions = make(map[uint64]struct{})
		nl.signals.markForced()
	}
}

func (nl *NeighborList) NumExclusions() int {
	nl.mu.Lock()
	defer nl.mu.Unlock()
	return len(nl.exclusions)
}

// BoxChanged records a new box. It fails without marking anything if the
// box cannot hold the current list radii.
func (nl *NeighborList) BoxChanged(box geom.Box) error {
	nl.mu.Lock()
	defer nl.mu.Unlock()
	if !box.Valid() {
		return fmt.Errorf("%w: %v", ErrInvalidBox, box.L)
	}
	if err := fitBox(box, nl.maxRadius(nl.rcut, nl.cfg.RBuff, nl.maxDiameter)); err != nil {
		return err
	}
	nl.box = box
	nl.hasBox = true
	nl.signals.MarkBoxChanged()
	return nil
}

func (nl *NeighborList) cutoffChanged() {
	nl.needsRestencil = true
	nl.signals.MarkCutoffChanged()
}

// checkGeometry validates candidate radii against the last known box.
func (nl *NeighborList) checkGeometry(rcut []float64, rbuff, dmax float64) error {
	if !nl.hasBox {
		return nil
	}
	return fitBox(nl.box, nl.maxRadius(rcut, rbuff, dmax))
}

func fitBox(box geom.Box, r float64) error {
	if ok, axis := box.FitsRange(r); !ok {
		return fmt.Errorf("%w: %s length %g < 2 x %g", ErrMinimumImage,
			geom.AxisName(axis), geom.Axis(box.L, axis), r)
	}
	return nil
}

// listRadius is the stencil radius for pair cutoff r, 0 when disabled.
func (nl *NeighborList) listRadius(r, rbuff, dmax float64) float64 {
	if r <= 0 {
		return 0
	}
	rl := r + rbuff
	if nl.cfg.DiameterShift {
		rl += dmax - 1
	}
	return rl
}

func (nl *NeighborList) maxRadius(rcut []float64, rbuff, dmax float64) float64 {
	m := 0.0
	for _, r := range rcut {
		m = math.Max(m, nl.listRadius(r, rbuff, dmax))
	}
	return m
}

// RList returns the list radius of pair (a, b) at unit diameters.
func (nl *NeighborList) RList(a, b uint32) float64 {
	nl.mu.Lock()
	defer nl.mu.Unlock()
	return nl.listRadius(nl.rcut[int(a)*nl.ntypes+int(b)], nl.cfg.RBuff, 1)
}

func (nl *NeighborList) RCut(a, b uint32) float64 {
	nl.mu.Lock()
	defer nl.mu.Unlock()
	return nl.rcut[int(a)*nl.ntypes+int(b)]
}

func (nl *NeighborList) Buffer() float64 {
	nl.mu.Lock()
	defer nl.mu.Unlock()
	return nl.cfg.RBuff
}

func (nl *NeighborList) NumTypes() int { return nl.ntypes }

func pairKey(a, b uint32) uint64 {
	if a > b {
		a, b = b, a
	}
	return uint64(a)<<32 | uint64(b)
}
