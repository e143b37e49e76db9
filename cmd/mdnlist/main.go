package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/san-kum/mdnlist/internal/config"
)

var (
	dataDir    string
	logLevel   string
	configFile string
	preset     string

	// overrides, applied only when set on the command line
	steps     int
	rbuff     float64
	every     int
	distCheck bool
	storage   string
	backend   string
	workers   int
	seed      int64
	autotune  bool

	metricsAddr string
	verifyEvery int
	sampleEvery int
	replicas    int
	theme       string
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "mdnlist",
		Short: "molecular dynamics neighbor list lab",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			level, err := logrus.ParseLevel(logLevel)
			if err != nil {
				return err
			}
			logrus.SetLevel(level)
			return nil
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().StringVar(&dataDir, "data", ".mdnlist", "data directory")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "config file path (yaml)")
	rootCmd.PersistentFlags().StringVar(&preset, "preset", "", "use preset configuration")

	runCmd := &cobra.Command{
		Use:   "run",
		Short: "run a simulation and store its step log",
		RunE:  runSimulation,
	}
	addSimFlags(runCmd)
	runCmd.Flags().StringVar(&metricsAddr, "metrics-addr", "", "serve prometheus metrics on this address while running")
	runCmd.Flags().IntVar(&verifyEvery, "verify-every", 0, "check the list against brute force every N steps")
	runCmd.Flags().IntVar(&sampleEvery, "sample-every", 10, "record every Nth step (rebuilds are always recorded)")

	liveCmd := &cobra.Command{
		Use:   "live",
		Short: "run with live terminal visualization",
		RunE:  runLive,
	}
	addSimFlags(liveCmd)
	liveCmd.Flags().StringVar(&theme, "theme", "cyberpunk", "color theme")

	benchCmd := &cobra.Command{
		Use:   "bench",
		Short: "compare backends and storage modes",
		RunE:  benchList,
	}
	addSimFlags(benchCmd)

	verifyCmd := &cobra.Command{
		Use:   "verify",
		Short: "check the list against brute force over several replicas",
		RunE:  verifyList,
	}
	addSimFlags(verifyCmd)
	verifyCmd.Flags().IntVar(&replicas, "replicas", 4, "independent seeds to run")
	verifyCmd.Flags().IntVar(&verifyEvery, "verify-every", 1, "check every N steps")

	tuneCmd := &cobra.Command{
		Use:   "tune",
		Short: "grid search buffer width and check interval for throughput",
		RunE:  tuneList,
	}
	addSimFlags(tuneCmd)

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "list runs",
		RunE:  listRuns,
	}

	plotCmd := &cobra.Command{
		Use:   "plot [run_id]",
		Short: "plot run results",
		Args:  cobra.ExactArgs(1),
		RunE:  plotRun,
	}

	presetsCmd := &cobra.Command{
		Use:   "presets",
		Short: "list available presets",
		RunE: func(cmd *cobra.Command, args []string) error {
			for _, name := range config.ListPresets() {
				p := config.GetPreset(name)
				fmt.Printf("  %-8s N=%-5d box=%gx%gx%g rcut=%g rbuff=%g storage=%s\n",
					name, p.N(), p.Box.X, p.Box.Y, p.Box.Z, p.RCut, p.RBuff, p.NeighborList.Storage)
			}
			return nil
		},
	}

	rootCmd.AddCommand(runCmd, liveCmd, benchCmd, verifyCmd, tuneCmd, listCmd, plotCmd, presetsCmd)

	if err := rootCmd.Execute(); err != nil {
		logrus.WithError(err).Error("mdnlist failed")
		os.Exit(1)
	}
}

func addSimFlags(cmd *cobra.Command) {
	cmd.Flags().IntVar(&steps, "steps", config.DefaultSteps, "number of steps")
	cmd.Flags().Float64Var(&rbuff, "rbuff", config.DefaultRBuff, "neighbor list buffer width")
	cmd.Flags().IntVar(&every, "every", 1, "steps between rebuild checks")
	cmd.Flags().BoolVar(&distCheck, "dist-check", true, "rebuild only when particles moved rbuff/2")
	cmd.Flags().StringVar(&storage, "storage", "full", "pair storage (full, half)")
	cmd.Flags().StringVar(&backend, "backend", "cpu", "compute backend (cpu, serial)")
	cmd.Flags().IntVar(&workers, "workers", 0, "worker goroutines, 0 for one per CPU")
	cmd.Flags().Int64Var(&seed, "seed", 1, "random seed")
	cmd.Flags().BoolVar(&autotune, "autotune", true, "tune launch granularity")
}

// loadConfig resolves preset, then config file, then explicit flags.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg := config.DefaultConfig()
	if preset != "" {
		cfg = config.GetPreset(preset)
		if cfg == nil {
			return nil, fmt.Errorf("unknown preset: %s (available: %s)", preset, strings.Join(config.ListPresets(), ", "))
		}
	}
	if configFile != "" {
		loaded, err := config.Load(configFile)
		if err != nil {
			return nil, fmt.Errorf("failed to load config: %w", err)
		}
		cfg = loaded
	}

	flags := cmd.Flags()
	if flags.Changed("steps") {
		cfg.Steps = steps
	}
	if flags.Changed("rbuff") {
		cfg.RBuff = rbuff
	}
	if flags.Changed("every") {
		cfg.NeighborList.Every = every
	}
	if flags.Changed("dist-check") {
		cfg.NeighborList.DistCheck = distCheck
	}
	if flags.Changed("storage") {
		cfg.NeighborList.Storage = storage
	}
	if flags.Changed("backend") {
		cfg.Compute.Backend = backend
	}
	if flags.Changed("workers") {
		cfg.Compute.Workers = workers
	}
	if flags.Changed("seed") {
		cfg.Seed = seed
	}
	if flags.Changed("autotune") {
		cfg.Compute.Autotune = autotune
	}
	return cfg, cfg.Validate()
}
