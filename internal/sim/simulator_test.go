package sim_test

import (
	"context"
	"math"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/san-kum/mdnlist/internal/config"
	"github.com/san-kum/mdnlist/internal/nlist"
	"github.com/san-kum/mdnlist/internal/sim"
)

func smallConfig() *config.Config {
	cfg := config.DefaultConfig()
	cfg.Types = []config.TypeConfig{{Name: "A", Count: 216}}
	cfg.Box = config.BoxConfig{X: 7, Y: 7, Z: 7}
	cfg.Steps = 200
	cfg.Dt = 0.002
	cfg.SortPeriod = 0
	cfg.Compute.Backend = "serial"
	return cfg
}

type recorder struct {
	infos []sim.StepInfo
}

func (r *recorder) OnStep(info sim.StepInfo) { r.infos = append(r.infos, info) }

var _ = Describe("Simulator", func() {
	var (
		cfg *config.Config
		rec *recorder
	)

	BeforeEach(func() {
		cfg = smallConfig()
		rec = &recorder{}
	})

	Describe("Run", func() {
		It("keeps the list exact while the fluid moves", func() {
			s, run, err := sim.FromConfig(cfg)
			Expect(err).NotTo(HaveOccurred())
			run.VerifyEvery = 1
			s.AddObserver(rec)

			result, err := s.Run(context.Background(), run)
			Expect(err).NotTo(HaveOccurred())
			Expect(result.Steps).To(Equal(200))
			Expect(result.Builds).To(BeNumerically(">=", 1))
			Expect(result.Builds + result.Skips).To(Equal(201))
			Expect(rec.infos).To(HaveLen(201))
			Expect(rec.infos[0].Rebuilt).To(BeTrue())
			Expect(rec.infos[0].Reason & nlist.ReasonInitial).NotTo(BeZero())
		})

		It("conserves energy", func() {
			s, run, err := sim.FromConfig(cfg)
			Expect(err).NotTo(HaveOccurred())

			result, err := s.Run(context.Background(), run)
			Expect(err).NotTo(HaveOccurred())
			Expect(math.Abs(result.EnergyDrift())).To(BeNumerically("<", 0.05))
			Expect(result.Metrics).To(HaveKey("rebuild_rate"))
		})

		It("rebuilds after every spatial sort", func() {
			s, run, err := sim.FromConfig(cfg)
			Expect(err).NotTo(HaveOccurred())
			run.Steps = 30
			run.SortPeriod = 10
			s.AddObserver(rec)

			_, err = s.Run(context.Background(), run)
			Expect(err).NotTo(HaveOccurred())
			for _, step := range []int{10, 20, 30} {
				info := rec.infos[step]
				Expect(info.Step).To(BeEquivalentTo(step))
				Expect(info.Rebuilt).To(BeTrue())
				Expect(info.Reason & nlist.ReasonReorder).NotTo(BeZero())
			}
		})

		It("follows a box ramp", func() {
			s, run, err := sim.FromConfig(cfg)
			Expect(err).NotTo(HaveOccurred())
			run.Steps = 20
			run.BoxScale = 1.05
			run.VerifyEvery = 5
			s.AddObserver(rec)

			_, err = s.Run(context.Background(), run)
			Expect(err).NotTo(HaveOccurred())
			Expect(s.Box().L.X).To(BeNumerically("~", 7.35, 1e-9))
			for _, info := range rec.infos[1:] {
				Expect(info.Reason & nlist.ReasonBox).NotTo(BeZero())
			}
		})

		It("stops on a cancelled context", func() {
			s, run, err := sim.FromConfig(cfg)
			Expect(err).NotTo(HaveOccurred())
			ctx, cancel := context.WithCancel(context.Background())
			cancel()

			result, err := s.Run(ctx, run)
			Expect(err).To(MatchError(context.Canceled))
			Expect(result).NotTo(BeNil())
			Expect(result.Steps).To(BeZero())
			Expect(result.Builds).To(Equal(1))
		})

		It("rejects a negative step count", func() {
			s, run, err := sim.FromConfig(cfg)
			Expect(err).NotTo(HaveOccurred())
			run.Steps = -1
			_, err = s.Run(context.Background(), run)
			Expect(err).To(HaveOccurred())
		})
	})

	Describe("neighbor list failures", func() {
		It("grows capacity for a dense cluster", func() {
			cfg = config.GetPreset("cluster")
			cfg.Compute.Backend = "serial"
			s, _, err := sim.FromConfig(cfg)
			Expect(err).NotTo(HaveOccurred())

			_, err = s.Init()
			Expect(err).NotTo(HaveOccurred())
			st := s.List().Stats()
			Expect(st.Overflows).To(BeNumerically(">", 0))
			Expect(st.Capacity).To(BeNumerically(">", 8))
			Expect(s.List().Verify(s.Particles(), s.Box())).To(Succeed())
		})

		It("surfaces resource exhaustion", func() {
			cfg = config.GetPreset("cluster")
			cfg.NeighborList.MaxNeighbors = 16
			s, run, err := sim.FromConfig(cfg)
			Expect(err).NotTo(HaveOccurred())

			_, err = s.Run(context.Background(), run)
			Expect(err).To(MatchError(nlist.ErrResourceExhausted))
			Expect(s.List().Valid()).To(BeFalse())
		})
	})

	Describe("FromConfig", func() {
		It("rejects invalid configs", func() {
			cfg.Dt = 0
			_, _, err := sim.FromConfig(cfg)
			Expect(err).To(MatchError(config.ErrInvalidConfig))
		})

		It("applies per pair cutoffs and diameters", func() {
			cfg = config.GetPreset("binary")
			cfg.Compute.Backend = "serial"
			s, _, err := sim.FromConfig(cfg)
			Expect(err).NotTo(HaveOccurred())

			nl := s.List()
			Expect(nl.NumTypes()).To(Equal(2))
			Expect(nl.RCut(0, 1)).To(Equal(2.0))
			Expect(nl.RCut(1, 0)).To(Equal(2.0))
			Expect(nl.RCut(1, 1)).To(Equal(2.2))
			Expect(s.Particles().N()).To(Equal(2000))
			Expect(s.Particles().MaxDiameter()).To(Equal(1.0))

			_, err = s.Init()
			Expect(err).NotTo(HaveOccurred())
			Expect(nl.Verify(s.Particles(), s.Box())).To(Succeed())
		})

		It("is reproducible for a fixed seed", func() {
			a, _, err := sim.FromConfig(cfg)
			Expect(err).NotTo(HaveOccurred())
			b, _, err := sim.FromConfig(cfg)
			Expect(err).NotTo(HaveOccurred())
			Expect(a.Particles().Velocities()).To(Equal(b.Particles().Velocities()))
		})
	})
})

var _ = Describe("Ensemble", func() {
	It("runs independent replicas in seed order", func() {
		factory := func(seed int64) (*sim.Simulator, sim.Config, error) {
			cfg := smallConfig()
			cfg.Seed = seed
			cfg.Steps = 20
			return sim.FromConfig(cfg)
		}
		results, err := sim.NewEnsemble(factory, 3, 10).Run(context.Background())
		Expect(err).NotTo(HaveOccurred())
		Expect(results).To(HaveLen(3))
		for _, r := range results {
			Expect(r.Steps).To(Equal(20))
		}
		Expect(results[0].InitialEnergy).NotTo(Equal(results[1].InitialEnergy))
	})

	It("reports factory errors", func() {
		factory := func(seed int64) (*sim.Simulator, sim.Config, error) {
			cfg := smallConfig()
			cfg.Types = nil
			return sim.FromConfig(cfg)
		}
		_, err := sim.NewEnsemble(factory, 2, 0).Run(context.Background())
		Expect(err).To(MatchError(config.ErrInvalidConfig))
	})
})
