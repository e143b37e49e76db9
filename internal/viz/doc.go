// Package viz renders a running simulation in the terminal with Bubble Tea.
//
// The view projects particle positions onto a braille [Canvas] and shows
// the neighbor list counters beside it: builds, skips, trigger reasons,
// capacity and an energy history.
//
// # Key Bindings
//
//	Space - Pause/Resume
//	F     - Force a list rebuild on the next step
//	P     - Cycle the projection axis
//	T     - Cycle color themes
//	+/-   - Change steps per frame
//	Q     - Quit
package viz
