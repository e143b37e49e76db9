// Package particles is the particle storage the neighbor list reads from.
//
// Particles are addressed two ways: a permanent tag assigned on insertion,
// and a local index into the storage arrays. Local indices change whenever
// the storage is reordered ([Data.SortSpatial]) or particles are removed;
// the attached [Listener] is told exactly once per such event so cached
// index-based state (the neighbor list) can be marked stale.
package particles
