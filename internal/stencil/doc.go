// Package stencil precomputes, per particle-type pair, the cell offsets a
// neighbor search must visit.
//
// For a pair with list radius r and cells of width w, every offset d in the
// bounding block |d_a| <= ceil(r / w_a) is a candidate. The closest two
// points of the origin cell and cell d are separated by max(0, |d_a|-1)*w_a
// along each axis; offsets whose minimum separation exceeds r cannot hold a
// neighbor and are dropped. Survivors are ordered closest first.
//
// The table depends only on radii and cell geometry, never on positions.
package stencil
