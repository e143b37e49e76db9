// Package celllist bins particles into a regular periodic grid of cells.
//
// The grid is sized so every cell is at least as wide as a nominal width,
// normally the largest neighbor-list radius. Each rebuild assigns every
// particle to exactly one cell. Cell storage is a flat array with a fixed
// per-cell capacity; binning is a bounded concurrent append and a full cell
// makes the rebuild grow the capacity and bin again, so no particle is ever
// dropped.
//
// After binning, the contents of each cell are ordered by (type, index), so
// [Grid.CellOfType] returns the particles of a single type as a contiguous
// slice. That ordering also makes the contents deterministic regardless of
// how the concurrent append interleaved.
package celllist
