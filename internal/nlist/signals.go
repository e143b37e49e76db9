package nlist

import "sync/atomic"

// Signals holds the sticky invalidation flags. Collaborators set them with
// direct calls at any time; only the neighbor list clears them, after a
// successful rebuild.
type Signals struct {
	reorderPending atomic.Bool
	countChanged   atomic.Bool
	cutoffChanged  atomic.Bool
	boxChanged     atomic.Bool
	forced         atomic.Bool
}

func (s *Signals) MarkReorder()       { s.reorderPending.Store(true) }
func (s *Signals) MarkCountChanged()  { s.countChanged.Store(true) }
func (s *Signals) MarkCutoffChanged() { s.cutoffChanged.Store(true) }
func (s *Signals) MarkBoxChanged()    { s.boxChanged.Store(true) }

func (s *Signals) markForced() { s.forced.Store(true) }

// Pending returns the set flags as a Reason mask.
func (s *Signals) Pending() Reason {
	var r Reason
	if s.reorderPending.Load() {
		r |= ReasonReorder
	}
	if s.countChanged.Load() {
		r |= ReasonCount
	}
	if s.cutoffChanged.Load() {
		r |= ReasonCutoff
	}
	if s.boxChanged.Load() {
		r |= ReasonBox
	}
	if s.forced.Load() {
		r |= ReasonForced
	}
	return r
}

// clear resets only the flags in r, so a signal raised while a build was
// running survives into the next Update.
func (s *Signals) clear(r Reason) {
	if r&ReasonReorder != 0 {
		s.reorderPending.Store(false)
	}
	if r&ReasonCount != 0 {
		s.countChanged.Store(false)
	}
	if r&ReasonCutoff != 0 {
		s.cutoffChanged.Store(false)
	}
	if r&ReasonBox != 0 {
		s.boxChanged.Store(false)
	}
	if r&ReasonForced != 0 {
		s.forced.Store(false)
	}
}

// Reason is a bit mask of why a rebuild happened.
type Reason uint16

const (
	ReasonInitial Reason = 1 << iota
	ReasonReorder
	ReasonCount
	ReasonCutoff
	ReasonBox
	ReasonForced
	ReasonDistance
	ReasonPeriodic
)

var reasonNames = []struct {
	r    Reason
	name string
}{
	{ReasonInitial, "initial"},
	{ReasonReorder, "reorder"},
	{ReasonCount, "count"},
	{ReasonCutoff, "cutoff"},
	{ReasonBox, "box"},
	{ReasonForced, "forced"},
	{ReasonDistance, "distance"},
	{ReasonPeriodic, "periodic"},
}

func (r Reason) String() string {
	if r == 0 {
		return "none"
	}
	s := ""
	for _, rn := range reasonNames {
		if r&rn.r != 0 {
			if s != "" {
				s += "|"
			}
			s += rn.name
		}
	}
	return s
}
