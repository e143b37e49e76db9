package config

import (
	"errors"
	"fmt"
	"math"
	"os"

	"gopkg.in/yaml.v3"
)

const (
	DefaultDt         = 0.005
	DefaultSteps      = 1000
	DefaultRCut       = 2.5
	DefaultRBuff      = 0.4
	DefaultKT         = 1.0
	DefaultSortPeriod = 300
	DefaultEpsilon    = 1.0
	DefaultSigma      = 1.0
)

var ErrInvalidConfig = errors.New("config: invalid configuration")

type Config struct {
	Name          string          `yaml:"name"`
	Types         []TypeConfig    `yaml:"types"`
	Box           BoxConfig       `yaml:"box"`
	Lattice       string          `yaml:"lattice"`
	ClusterRadius float64         `yaml:"cluster_radius,omitempty"`
	RCut          float64         `yaml:"rcut"`
	RBuff         float64         `yaml:"rbuff"`
	PairCutoffs   []PairCutoff    `yaml:"pair_cutoffs,omitempty"`
	Steps         int             `yaml:"steps"`
	Dt            float64         `yaml:"dt"`
	KT            float64         `yaml:"kt"`
	Seed          int64           `yaml:"seed"`
	SortPeriod    int             `yaml:"sort_period"`
	BoxScale      float64         `yaml:"box_scale,omitempty"`
	NeighborList  NListConfig     `yaml:"nlist"`
	Compute       ComputeConfig   `yaml:"compute"`
	Potential     PotentialConfig `yaml:"potential"`
}

type TypeConfig struct {
	Name     string  `yaml:"name"`
	Count    int     `yaml:"count"`
	Diameter float64 `yaml:"diameter,omitempty"`
}

type BoxConfig struct {
	X float64 `yaml:"x"`
	Y float64 `yaml:"y"`
	Z float64 `yaml:"z"`
}

// PairCutoff overrides RCut for one type pair. RCut <= 0 disables the pair.
type PairCutoff struct {
	A    string  `yaml:"a"`
	B    string  `yaml:"b"`
	RCut float64 `yaml:"rcut"`
}

type NListConfig struct {
	Every           int     `yaml:"every"`
	DistCheck       bool    `yaml:"dist_check"`
	Storage         string  `yaml:"storage"`
	InitialCapacity int     `yaml:"initial_capacity,omitempty"`
	MaxNeighbors    int     `yaml:"max_neighbors,omitempty"`
	CellWidth       float64 `yaml:"cell_width,omitempty"`
	DiameterShift   bool    `yaml:"diameter_shift,omitempty"`
}

type ComputeConfig struct {
	Backend        string `yaml:"backend"`
	Workers        int    `yaml:"workers"`
	Autotune       bool   `yaml:"autotune"`
	AutotunePeriod int    `yaml:"autotune_period,omitempty"`
}

type PotentialConfig struct {
	Epsilon float64 `yaml:"epsilon"`
	Sigma   float64 `yaml:"sigma"`
}

func DefaultConfig() *Config {
	return &Config{
		Name:       "default",
		Types:      []TypeConfig{{Name: "A", Count: 1000}},
		Box:        BoxConfig{X: 12, Y: 12, Z: 12},
		Lattice:    "cubic",
		RCut:       DefaultRCut,
		RBuff:      DefaultRBuff,
		Steps:      DefaultSteps,
		Dt:         DefaultDt,
		KT:         DefaultKT,
		Seed:       1,
		SortPeriod: DefaultSortPeriod,
		NeighborList: NListConfig{
			Every:     1,
			DistCheck: true,
			Storage:   "full",
		},
		Compute: ComputeConfig{
			Backend:  "cpu",
			Autotune: true,
		},
		Potential: PotentialConfig{
			Epsilon: DefaultEpsilon,
			Sigma:   DefaultSigma,
		},
	}
}

func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", path, err)
	}
	return cfg, nil
}

func Save(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

// Clone returns a deep copy.
func (c *Config) Clone() *Config {
	out := *c
	out.Types = append([]TypeConfig(nil), c.Types...)
	out.PairCutoffs = append([]PairCutoff(nil), c.PairCutoffs...)
	return &out
}

func (c *Config) N() int {
	n := 0
	for _, t := range c.Types {
		n += t.Count
	}
	return n
}

func (c *Config) TypeNames() []string {
	names := make([]string, len(c.Types))
	for i, t := range c.Types {
		names[i] = t.Name
	}
	return names
}

func (c *Config) TypeIndex(name string) (int, bool) {
	for i, t := range c.Types {
		if t.Name == name {
			return i, true
		}
	}
	return -1, false
}

// MaxRCut is the largest enabled pair cutoff.
func (c *Config) MaxRCut() float64 {
	m := c.RCut
	for _, pc := range c.PairCutoffs {
		m = math.Max(m, pc.RCut)
	}
	return m
}

// Density is the number density of the configured system.
func (c *Config) Density() float64 {
	return float64(c.N()) / (c.Box.X * c.Box.Y * c.Box.Z)
}

func (c *Config) Validate() error {
	if len(c.Types) == 0 || c.N() == 0 {
		return fmt.Errorf("%w: no particles", ErrInvalidConfig)
	}
	seen := make(map[string]bool)
	for _, t := range c.Types {
		if t.Name == "" || seen[t.Name] {
			return fmt.Errorf("%w: type names must be unique and non-empty, got %q", ErrInvalidConfig, t.Name)
		}
		seen[t.Name] = true
		if t.Count < 0 || t.Diameter < 0 {
			return fmt.Errorf("%w: type %s has count %d diameter %g", ErrInvalidConfig, t.Name, t.Count, t.Diameter)
		}
	}
	if !(c.Box.X > 0 && c.Box.Y > 0 && c.Box.Z > 0) {
		return fmt.Errorf("%w: box %gx%gx%g", ErrInvalidConfig, c.Box.X, c.Box.Y, c.Box.Z)
	}
	switch c.Lattice {
	case "cubic", "uniform":
	case "cluster":
		if !(c.ClusterRadius > 0) {
			return fmt.Errorf("%w: cluster lattice needs cluster_radius > 0", ErrInvalidConfig)
		}
	default:
		return fmt.Errorf("%w: unknown lattice %q", ErrInvalidConfig, c.Lattice)
	}
	if !(c.RCut > 0) || !(c.RBuff >= 0) {
		return fmt.Errorf("%w: rcut %g rbuff %g", ErrInvalidConfig, c.RCut, c.RBuff)
	}
	for _, pc := range c.PairCutoffs {
		if _, ok := c.TypeIndex(pc.A); !ok {
			return fmt.Errorf("%w: pair cutoff names unknown type %q", ErrInvalidConfig, pc.A)
		}
		if _, ok := c.TypeIndex(pc.B); !ok {
			return fmt.Errorf("%w: pair cutoff names unknown type %q", ErrInvalidConfig, pc.B)
		}
	}
	if !(c.Dt > 0) || c.Steps < 0 {
		return fmt.Errorf("%w: dt %g steps %d", ErrInvalidConfig, c.Dt, c.Steps)
	}
	if c.KT < 0 || c.SortPeriod < 0 || c.BoxScale < 0 {
		return fmt.Errorf("%w: kt, sort_period and box_scale must not be negative", ErrInvalidConfig)
	}
	switch c.NeighborList.Storage {
	case "", "full", "half":
	default:
		return fmt.Errorf("%w: storage %q (want full or half)", ErrInvalidConfig, c.NeighborList.Storage)
	}
	switch c.Compute.Backend {
	case "", "cpu", "serial":
	default:
		return fmt.Errorf("%w: backend %q (want cpu or serial)", ErrInvalidConfig, c.Compute.Backend)
	}

	r := c.MaxRCut() + c.RBuff
	minL := math.Min(c.Box.X, math.Min(c.Box.Y, c.Box.Z))
	if c.BoxScale > 0 && c.BoxScale < 1 {
		minL *= c.BoxScale
	}
	if minL < 2*r {
		return fmt.Errorf("%w: box length %g below 2 x (rcut+rbuff) = %g", ErrInvalidConfig, minL, 2*r)
	}
	return nil
}
