package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"slices"
	"text/tabwriter"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/guptarohit/asciigraph"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/san-kum/mdnlist/internal/metrics"
	"github.com/san-kum/mdnlist/internal/nlist"
	"github.com/san-kum/mdnlist/internal/optim"
	"github.com/san-kum/mdnlist/internal/sim"
	runstore "github.com/san-kum/mdnlist/internal/storage"
	"github.com/san-kum/mdnlist/internal/viz"
)

func runSimulation(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	st := runstore.New(dataDir)
	if err := st.Init(); err != nil {
		return err
	}

	s, run, err := sim.FromConfig(cfg)
	if err != nil {
		return err
	}
	run.VerifyEvery = verifyEvery

	rec := metrics.NewRecorder(sampleEvery)
	set := metrics.Standard()
	s.AddObserver(rec)
	s.AddObserver(set)

	if metricsAddr != "" {
		collector := metrics.NewCollector()
		s.AddObserver(collector)
		srv := &http.Server{Addr: metricsAddr, Handler: collector.Handler()}
		go func() {
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logrus.WithError(err).Error("metrics server stopped")
			}
		}()
		defer srv.Close()
		logrus.WithField("addr", metricsAddr).Info("serving metrics")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	logrus.WithFields(logrus.Fields{
		"name":    cfg.Name,
		"n":       cfg.N(),
		"steps":   cfg.Steps,
		"storage": cfg.NeighborList.Storage,
	}).Info("running simulation")

	result, runErr := s.Run(ctx, run)
	if errors.Is(runErr, nlist.ErrResourceExhausted) {
		logrus.Warn("neighbor storage exhausted; raise nlist.max_neighbors or lower the density")
	}
	if result == nil {
		return runErr
	}
	for k, v := range set.Values() {
		result.Metrics[k] = v
	}

	runID, err := st.Save(runstore.RunMetadata{
		Name:    cfg.Name,
		Seed:    cfg.Seed,
		N:       cfg.N(),
		Steps:   result.Steps,
		Dt:      cfg.Dt,
		RCut:    cfg.MaxRCut(),
		RBuff:   cfg.RBuff,
		Storage: cfg.NeighborList.Storage,
		Backend: cfg.Compute.Backend,
		Metrics: result.Metrics,
	}, rec.Rows())
	if err != nil {
		return err
	}

	fmt.Printf("completed %d steps in %v\n", result.Steps, result.Elapsed.Round(time.Millisecond))
	fmt.Printf("run id: %s\n", runID)
	fmt.Printf("builds: %d  skips: %d  overflows: %d  dangerous: %d  capacity: %d\n",
		result.Builds, result.Skips, result.Overflows, result.Dangerous, result.Capacity)
	fmt.Println("\nmetrics:")
	for _, name := range sortedKeys(result.Metrics) {
		fmt.Printf("  %s: %.6g\n", name, result.Metrics[name])
	}

	return runErr
}

func runLive(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	s, run, err := sim.FromConfig(cfg)
	if err != nil {
		return err
	}
	if !cmd.Flags().Changed("steps") && preset == "" && configFile == "" {
		run.Steps = 0
	}

	// keep log output from tearing the alternate screen
	logrus.SetLevel(logrus.ErrorLevel)
	p := tea.NewProgram(viz.NewModel(s, run, theme), tea.WithAltScreen())
	_, err = p.Run()
	return err
}

func benchList(cmd *cobra.Command, args []string) error {
	base, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "BACKEND\tSTORAGE\tSTEPS\tBUILDS\tCAPACITY\tNS/STEP\tMEAN BUILD")

	for _, b := range []string{"serial", "cpu"} {
		for _, mode := range []string{"full", "half"} {
			cfg := base.Clone()
			cfg.Compute.Backend = b
			cfg.NeighborList.Storage = mode

			s, run, err := sim.FromConfig(cfg)
			if err != nil {
				return err
			}
			build := metrics.NewMeanBuildTime()
			s.AddObserver(sim.ObserverFunc(build.Observe))

			result, err := s.Run(context.Background(), run)
			if err != nil {
				return err
			}
			fmt.Fprintf(w, "%s\t%s\t%d\t%d\t%d\t%.0f\t%s\n",
				b, mode, result.Steps, result.Builds, result.Capacity,
				result.Metrics["ns_per_step"],
				time.Duration(build.Value()*float64(time.Second)).Round(time.Microsecond),
			)
		}
	}

	return w.Flush()
}

func verifyList(cmd *cobra.Command, args []string) error {
	base, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	factory := func(seed int64) (*sim.Simulator, sim.Config, error) {
		cfg := base.Clone()
		cfg.Seed = seed
		s, run, err := sim.FromConfig(cfg)
		run.VerifyEvery = verifyEvery
		return s, run, err
	}

	fmt.Printf("verifying %d replicas of %s (%d particles, %d steps)...\n", replicas, base.Name, base.N(), base.Steps)
	results, err := sim.NewEnsemble(factory, replicas, base.Seed).Run(context.Background())
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "SEED\tBUILDS\tSKIPS\tOVERFLOWS\tDANGEROUS\tDRIFT")
	for i, r := range results {
		fmt.Fprintf(w, "%d\t%d\t%d\t%d\t%d\t%.2e\n",
			base.Seed+int64(i), r.Builds, r.Skips, r.Overflows, r.Dangerous, r.EnergyDrift())
	}
	if err := w.Flush(); err != nil {
		return err
	}
	fmt.Println("ok")
	return nil
}

func tuneList(cmd *cobra.Command, args []string) error {
	base, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	g := optim.NewGridSearch(
		[]string{"rbuff", "every"},
		[][]float64{optim.Linspace(0.1, 0.6, 6), {1, 2, 5, 10}},
	)
	eval := func(ctx context.Context, p map[string]float64) (float64, error) {
		cfg := base.Clone()
		cfg.RBuff = p["rbuff"]
		cfg.NeighborList.Every = int(p["every"])
		s, run, err := sim.FromConfig(cfg)
		if err != nil {
			return 0, err
		}
		result, err := s.Run(ctx, run)
		if err != nil {
			return 0, err
		}
		if result.Dangerous > 0 {
			return 0, fmt.Errorf("%d dangerous builds", result.Dangerous)
		}
		return result.Metrics["ns_per_step"], nil
	}

	best, val, trials, err := g.Search(context.Background(), eval)
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "RBUFF\tEVERY\tNS/STEP\tNOTE")
	for _, t := range trials {
		note := ""
		if t.Err != nil {
			note = t.Err.Error()
		}
		fmt.Fprintf(w, "%.2f\t%d\t%.0f\t%s\n", t.Params["rbuff"], int(t.Params["every"]), t.Value, note)
	}
	if err := w.Flush(); err != nil {
		return err
	}
	if best == nil {
		return errors.New("no safe parameter point found")
	}

	var cost []float64
	for _, t := range trials {
		if t.Err == nil {
			cost = append(cost, t.Value)
		}
	}
	if len(cost) > 1 {
		fmt.Println()
		fmt.Println(asciigraph.Plot(cost, asciigraph.Height(8), asciigraph.Width(60), asciigraph.Caption("ns/step per trial")))
	}
	fmt.Printf("\nbest: rbuff=%.2f every=%d (%.0f ns/step)\n", best["rbuff"], int(best["every"]), val)
	return nil
}

func listRuns(cmd *cobra.Command, args []string) error {
	st := runstore.New(dataDir)
	runs, err := st.List()
	if err != nil {
		return err
	}

	if len(runs) == 0 {
		fmt.Println("no runs found")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tNAME\tTIME\tN\tSTEPS\tRBUFF\tSTORAGE\tBUILDS")

	for _, run := range runs {
		fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%d\t%.2f\t%s\t%.0f\n",
			run.ID,
			run.Name,
			run.Timestamp.Format("2006-01-02 15:04:05"),
			run.N,
			run.Steps,
			run.RBuff,
			run.Storage,
			run.Metrics["builds"],
		)
	}

	return w.Flush()
}

func plotRun(cmd *cobra.Command, args []string) error {
	runID := args[0]

	st := runstore.New(dataDir)
	meta, err := st.Load(runID)
	if err != nil {
		return err
	}

	rows, err := st.LoadSteps(runID)
	if err != nil {
		return err
	}

	if len(rows) == 0 {
		return fmt.Errorf("no data to plot")
	}

	fmt.Printf("run: %s\n", meta.ID)
	fmt.Printf("system: %s (N=%d)\n", meta.Name, meta.N)
	fmt.Printf("samples: %d\n\n", len(rows))

	energy := make([]float64, len(rows))
	capacity := make([]float64, len(rows))
	var neighbors []float64
	for i, r := range rows {
		energy[i] = r.Potential + r.Kinetic
		capacity[i] = float64(r.Capacity)
		if r.Rebuilt {
			neighbors = append(neighbors, r.MeanNeighbors)
		}
	}

	series := []struct {
		caption string
		data    []float64
	}{
		{"total energy", energy},
		{"neighbor capacity", capacity},
		{"mean neighbors at build", neighbors},
	}
	for _, s := range series {
		if len(s.data) < 2 {
			continue
		}
		graph := asciigraph.Plot(s.data,
			asciigraph.Height(10),
			asciigraph.Width(80),
			asciigraph.Caption(s.caption),
		)
		fmt.Println(graph)
		fmt.Println()
	}

	sum := metrics.Summarize(rows)
	fmt.Printf("builds recorded: %d  mean build: %.3gs  mean step: %.3gs\n", sum.Builds, sum.MeanBuildTime, sum.MeanStepTime)
	return nil
}

func sortedKeys(m map[string]float64) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}
