package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/san-kum/mdnlist/internal/nlist"
	"github.com/san-kum/mdnlist/internal/sim"
)

// Collector exports neighbor list activity as Prometheus metrics. Labels are
// single reason bits, so cardinality is bounded.
type Collector struct {
	reg *prometheus.Registry

	builds        *prometheus.CounterVec
	skips         prometheus.Counter
	steps         prometheus.Counter
	capacity      prometheus.Gauge
	meanNeighbors prometheus.Gauge
	potential     prometheus.Gauge
	buildDuration prometheus.Histogram
	stepDuration  prometheus.Histogram
}

func NewCollector() *Collector {
	reg := prometheus.NewRegistry()
	f := promauto.With(reg)
	return &Collector{
		reg: reg,
		builds: f.NewCounterVec(prometheus.CounterOpts{
			Name: "nlist_builds_total",
			Help: "Neighbor list rebuilds by trigger",
		}, []string{"reason"}),
		skips: f.NewCounter(prometheus.CounterOpts{
			Name: "nlist_skips_total",
			Help: "Steps that kept the previous list",
		}),
		steps: f.NewCounter(prometheus.CounterOpts{
			Name: "sim_steps_total",
			Help: "Integration steps taken",
		}),
		capacity: f.NewGauge(prometheus.GaugeOpts{
			Name: "nlist_capacity",
			Help: "Per-particle neighbor capacity",
		}),
		meanNeighbors: f.NewGauge(prometheus.GaugeOpts{
			Name: "nlist_mean_neighbors",
			Help: "Mean neighbors per particle at the last build",
		}),
		potential: f.NewGauge(prometheus.GaugeOpts{
			Name: "sim_potential_energy",
			Help: "Potential energy at the last step",
		}),
		buildDuration: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "nlist_build_duration_seconds",
			Help:    "Time spent building the list",
			Buckets: prometheus.ExponentialBuckets(0.0001, 2, 14),
		}),
		stepDuration: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "sim_step_duration_seconds",
			Help:    "Wall time per step",
			Buckets: prometheus.ExponentialBuckets(0.0001, 2, 14),
		}),
	}
}

func (c *Collector) OnStep(info sim.StepInfo) {
	c.steps.Inc()
	c.potential.Set(info.Potential)
	c.capacity.Set(float64(info.Capacity))
	c.stepDuration.Observe(info.Elapsed.Seconds())
	if !info.Rebuilt {
		c.skips.Inc()
		return
	}
	for _, r := range reasonBits(info.Reason) {
		c.builds.WithLabelValues(r.String()).Inc()
	}
	c.meanNeighbors.Set(info.MeanNeighbors)
	c.buildDuration.Observe(info.BuildTime.Seconds())
}

func (c *Collector) Registry() *prometheus.Registry { return c.reg }

func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.reg, promhttp.HandlerOpts{})
}

func reasonBits(r nlist.Reason) []nlist.Reason {
	var out []nlist.Reason
	for bit := nlist.ReasonInitial; bit <= nlist.ReasonPeriodic; bit <<= 1 {
		if r&bit != 0 {
			out = append(out, bit)
		}
	}
	return out
}
