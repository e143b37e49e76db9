// Package geom provides the periodic simulation box.
//
// Boxes are orthorhombic and span [0, L) along each axis. Positions outside
// the box are folded back with [Box.Wrap]; separations are reduced to their
// closest periodic replica with [Box.MinImage].
//
// The minimum-image convention requires every box length to be at least
// twice the largest interaction range; callers check that with
// [Box.FitsRange] before trusting a min-imaged distance.
package geom
