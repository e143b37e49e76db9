// Package autotune picks launch granularities for parallel kernels from
// measured timings.
//
// Each kernel cycles through a calibration window: every candidate
// granularity is suggested for a fixed number of samples, the candidate with
// the lowest median time wins, and it is kept until the period elapses and
// the next window starts. Only throughput depends on the choice.
package autotune

import (
	"sort"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"gonum.org/v1/gonum/stat"
)

// Tuner is the contract kernels consume.
type Tuner interface {
	SuggestLaunchGranularity(kernel string) int
	RecordTiming(kernel string, granularity int, elapsed time.Duration)
}

var DefaultCandidates = []int{32, 64, 128, 256, 512, 1024}

type Autotuner struct {
	mu         sync.Mutex
	candidates []int
	samples    int
	period     int
	enabled    bool
	kernels    map[string]*kernelState
}

type kernelState struct {
	calibrating bool
	idx         int
	timings     [][]float64
	best        int
	calls       int
}

// New returns an enabled tuner. samples is the number of timings per
// candidate, period the number of suggestions between calibrations.
func New(candidates []int, samples, period int) *Autotuner {
	if len(candidates) == 0 {
		candidates = DefaultCandidates
	}
	if samples < 1 {
		samples = 1
	}
	if period < 1 {
		period = 1
	}
	return &Autotuner{
		candidates: append([]int(nil), candidates...),
		samples:    samples,
		period:     period,
		enabled:    true,
		kernels:    make(map[string]*kernelState),
	}
}

// SetParams enables or disables calibration and sets the period. A disabled
// tuner keeps suggesting the last winner.
func (a *Autotuner) SetParams(enable bool, period int) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.enabled = enable
	if period > 0 {
		a.period = period
	}
	if !enable {
		for _, k := range a.kernels {
			k.calibrating = false
		}
	}
}

func (a *Autotuner) SuggestLaunchGranularity(kernel string) int {
	a.mu.Lock()
	defer a.mu.Unlock()

	k := a.state(kernel)
	if k.calibrating {
		return a.candidates[k.idx]
	}
	if a.enabled {
		k.calls++
		if k.calls > a.period {
			a.begin(k)
			return a.candidates[k.idx]
		}
	}
	return k.best
}

func (a *Autotuner) RecordTiming(kernel string, granularity int, elapsed time.Duration) {
	a.mu.Lock()
	defer a.mu.Unlock()

	k := a.state(kernel)
	if !k.calibrating || granularity != a.candidates[k.idx] {
		return
	}
	k.timings[k.idx] = append(k.timings[k.idx], elapsed.Seconds())
	if len(k.timings[k.idx]) < a.samples {
		return
	}
	k.idx++
	if k.idx < len(a.candidates) {
		return
	}

	best, bestMedian := a.candidates[0], 0.0
	for i, ts := range k.timings {
		sorted := append([]float64(nil), ts...)
		sort.Float64s(sorted)
		m := stat.Quantile(0.5, stat.Empirical, sorted, nil)
		if i == 0 || m < bestMedian {
			best, bestMedian = a.candidates[i], m
		}
	}
	k.best = best
	k.calibrating = false
	k.calls = 0

	logrus.WithFields(logrus.Fields{
		"kernel":      kernel,
		"granularity": best,
		"median":      time.Duration(bestMedian * float64(time.Second)),
	}).Debug("autotune: calibration complete")
}

// Best returns the current winner for kernel without counting a call.
func (a *Autotuner) Best(kernel string) int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.state(kernel).best
}

// Calibrating reports whether kernel is inside a calibration window.
func (a *Autotuner) Calibrating(kernel string) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.state(kernel).calibrating
}

func (a *Autotuner) state(kernel string) *kernelState {
	k, ok := a.kernels[kernel]
	if !ok {
		k = &kernelState{best: a.candidates[len(a.candidates)/2]}
		a.kernels[kernel] = k
		if a.enabled {
			a.begin(k)
		}
	}
	return k
}

func (a *Autotuner) begin(k *kernelState) {
	k.calibrating = true
	k.idx = 0
	k.calls = 0
	k.timings = make([][]float64, len(a.candidates))
}

// Fixed always suggests the same granularity.
type Fixed int

func (f Fixed) SuggestLaunchGranularity(string) int     { return int(f) }
func (f Fixed) RecordTiming(string, int, time.Duration) {}
