package metrics

import (
	"io"
	"math"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/san-kum/mdnlist/internal/nlist"
	"github.com/san-kum/mdnlist/internal/sim"
)

func steps() []sim.StepInfo {
	return []sim.StepInfo{
		{Step: 0, Rebuilt: true, Reason: nlist.ReasonInitial | nlist.ReasonCutoff, Potential: -10, Kinetic: 5, Capacity: 32, MeanNeighbors: 20, BuildTime: 2 * time.Millisecond},
		{Step: 1, Potential: -9, Kinetic: 4, Capacity: 32},
		{Step: 2, Potential: -11, Kinetic: 6, Capacity: 32},
		{Step: 3, Rebuilt: true, Reason: nlist.ReasonDistance, Potential: -10, Kinetic: 5.5, Capacity: 40, MeanNeighbors: 22, BuildTime: 4 * time.Millisecond},
	}
}

func TestEnergy(t *testing.T) {
	m := NewEnergy()
	for _, s := range steps() {
		m.Observe(s)
	}
	assert.InDelta(t, (-5.0-5-5-4.5)/4, m.Value(), 1e-12)

	m.Reset()
	assert.Equal(t, 0.0, m.Value())
}

func TestEnergyDrift(t *testing.T) {
	m := NewEnergyDrift()
	for _, s := range steps() {
		m.Observe(s)
	}
	assert.InDelta(t, 0.1, m.Value(), 1e-12)

	m.Reset()
	assert.Equal(t, 0.0, m.Value())
}

func TestRebuildRate(t *testing.T) {
	m := NewRebuildRate()
	assert.Equal(t, 0.0, m.Value())
	for _, s := range steps() {
		m.Observe(s)
	}
	assert.Equal(t, 0.5, m.Value())
}

func TestMeanBuildTime(t *testing.T) {
	m := NewMeanBuildTime()
	for _, s := range steps() {
		m.Observe(s)
	}
	assert.InDelta(t, 0.003, m.Value(), 1e-12)
}

func TestSet(t *testing.T) {
	set := Standard()
	for _, s := range steps() {
		set.OnStep(s)
	}
	values := set.Values()
	assert.Len(t, values, 4)
	assert.Equal(t, 0.5, values["rebuild_rate"])

	set.Reset()
	assert.Equal(t, 0.0, set.Values()["rebuild_rate"])
}

func TestRecorder(t *testing.T) {
	r := NewRecorder(2)
	for _, s := range steps() {
		r.OnStep(s)
	}
	rows := r.Rows()
	// 0 and 2 by period, 3 because it rebuilt
	require.Len(t, rows, 3)
	assert.Equal(t, []uint64{0, 2, 3}, []uint64{rows[0].Step, rows[1].Step, rows[2].Step})
	assert.Equal(t, "initial|cutoff", rows[0].Reason)
	assert.Equal(t, "", rows[1].Reason)
}

func TestSummarize(t *testing.T) {
	r := NewRecorder(1)
	for _, s := range steps() {
		r.OnStep(s)
	}
	s := Summarize(r.Rows())
	assert.Equal(t, 4, s.Rows)
	assert.Equal(t, 2, s.Builds)
	assert.InDelta(t, -4.875, s.MeanEnergy, 1e-12)
	assert.InDelta(t, 0.003, s.MeanBuildTime, 1e-12)
	assert.InDelta(t, 0.001*math.Sqrt2, s.BuildTimeStdDev, 1e-12)
	assert.InDelta(t, 21, s.MeanNeighbors, 1e-12)

	assert.Equal(t, Summary{}, Summarize(nil))
}

func TestCollector_Gather(t *testing.T) {
	c := NewCollector()
	for _, s := range steps() {
		c.OnStep(s)
	}

	families, err := c.Registry().Gather()
	require.NoError(t, err)
	got := make(map[string]float64)
	for _, mf := range families {
		for _, m := range mf.GetMetric() {
			switch {
			case m.GetCounter() != nil:
				got[mf.GetName()] += m.GetCounter().GetValue()
			case m.GetGauge() != nil:
				got[mf.GetName()] = m.GetGauge().GetValue()
			case m.GetHistogram() != nil:
				got[mf.GetName()] = float64(m.GetHistogram().GetSampleCount())
			}
		}
	}

	assert.Equal(t, 3.0, got["nlist_builds_total"], "initial, cutoff and distance")
	assert.Equal(t, 2.0, got["nlist_skips_total"])
	assert.Equal(t, 4.0, got["sim_steps_total"])
	assert.Equal(t, 40.0, got["nlist_capacity"])
	assert.Equal(t, 22.0, got["nlist_mean_neighbors"])
	assert.Equal(t, 2.0, got["nlist_build_duration_seconds"])
	assert.Equal(t, 4.0, got["sim_step_duration_seconds"])
}

func TestCollector_Handler(t *testing.T) {
	c := NewCollector()
	for _, s := range steps() {
		c.OnStep(s)
	}
	srv := httptest.NewServer(c.Handler())
	defer srv.Close()

	resp, err := srv.Client().Get(srv.URL)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	assert.Contains(t, string(body), `nlist_builds_total{reason="distance"} 1`)
	assert.Contains(t, string(body), `nlist_builds_total{reason="initial"} 1`)
	assert.Contains(t, string(body), "nlist_skips_total 2")
}
