package nlist

import (
	"fmt"
	"math"
	"time"

	"github.com/sirupsen/logrus"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/san-kum/mdnlist/internal/geom"
)

// Update brings the list up to date for timestep. It rebuilds only when a
// signal is pending, the particle count or box differs from the last build,
// or some particle has moved more than half the buffer. Errors are fatal:
// the list is left marked stale and must not be consumed.
func (nl *NeighborList) Update(timestep uint64, p ParticleSource, box geom.Box) error {
	nl.mu.Lock()
	defer nl.mu.Unlock()
	nl.rebuilt = false

	if !box.Valid() {
		return &BuildError{Step: timestep, Op: "validate", Wrapped: fmt.Errorf("%w: %v", ErrInvalidBox, box.L)}
	}
	if err := fitBox(box, nl.maxRadius(nl.rcut, nl.cfg.RBuff, nl.maxDiameter)); err != nil {
		return &BuildError{Step: timestep, Op: "validate", Wrapped: err}
	}
	nl.box = box
	nl.hasBox = true

	reason := nl.needsRebuild(timestep, p, box)
	if reason == 0 {
		nl.stats.Skips++
		return nil
	}
	return nl.build(timestep, p, box, reason)
}

// Rebuilt reports whether the last Update rebuilt the list.
func (nl *NeighborList) Rebuilt() bool { return nl.rebuilt }

func (nl *NeighborList) needsRebuild(timestep uint64, p ParticleSource, box geom.Box) Reason {
	if !nl.last.valid {
		return ReasonInitial | nl.signals.Pending()
	}

	reason := nl.signals.Pending()
	if p.N() != nl.last.n {
		reason |= ReasonCount
	}
	if !box.Equal(nl.last.box) {
		reason |= ReasonBox
	}
	// local indices or geometry are stale, the every gate does not apply
	if reason != 0 {
		return reason
	}

	since := timestep - nl.lastBuild
	if timestep < nl.lastBuild {
		since = uint64(nl.cfg.Every)
	}
	if since < uint64(nl.cfg.Every) {
		return 0
	}
	if !nl.cfg.DistCheck {
		return ReasonPeriodic
	}

	half := nl.cfg.RBuff / 2
	if nl.maxDisplacement2(p.Positions(), box) > half*half {
		if nl.cfg.Every > 1 && since == uint64(nl.cfg.Every) {
			nl.stats.Dangerous++
			logrus.WithFields(logrus.Fields{
				"step":  timestep,
				"every": nl.cfg.Every,
			}).Warn("nlist: dangerous build, particles may have moved past the buffer between checks")
		}
		return ReasonDistance
	}
	return 0
}

// maxDisplacement2 is the largest squared minimum-image displacement since
// the last build.
func (nl *NeighborList) maxDisplacement2(pos []r3.Vec, box geom.Box) float64 {
	n := len(pos)
	if n == 0 {
		return 0
	}
	grain := nl.tuner.SuggestLaunchGranularity("displacement")
	if grain < 1 {
		grain = 1
	}
	partial := make([]float64, (n+grain-1)/grain)
	last := nl.last.pos

	start := time.Now()
	nl.backend.ParallelFor(n, grain, func(lo, hi int) {
		m := 0.0
		for i := lo; i < hi; i++ {
			if d := box.Dist2(last[i], pos[i]); d > m {
				m = d
			}
		}
		partial[lo/grain] = m
	})
	nl.tuner.RecordTiming("displacement", grain, time.Since(start))

	m := 0.0
	for _, v := range partial {
		m = math.Max(m, v)
	}
	return m
}
