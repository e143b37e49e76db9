package config

import "sort"

// Presets are ready-made systems exercising different list regimes.
var Presets = map[string]*Config{
	"dilute": {
		Name:         "dilute",
		Types:        []TypeConfig{{Name: "A", Count: 2000}},
		Box:          BoxConfig{X: 25, Y: 25, Z: 25},
		Lattice:      "uniform",
		RCut:         2.5,
		RBuff:        0.5,
		Steps:        2000,
		Dt:           0.005,
		KT:           1.5,
		Seed:         1,
		SortPeriod:   500,
		NeighborList: NListConfig{Every: 1, DistCheck: true, Storage: "full"},
		Compute:      ComputeConfig{Backend: "cpu", Autotune: true},
		Potential:    PotentialConfig{Epsilon: 1, Sigma: 1},
	},
	"liquid": {
		Name:         "liquid",
		Types:        []TypeConfig{{Name: "A", Count: 4096}},
		Box:          BoxConfig{X: 16.8, Y: 16.8, Z: 16.8},
		Lattice:      "cubic",
		RCut:         2.5,
		RBuff:        0.4,
		Steps:        1000,
		Dt:           0.005,
		KT:           1.0,
		Seed:         1,
		SortPeriod:   300,
		NeighborList: NListConfig{Every: 1, DistCheck: true, Storage: "half"},
		Compute:      ComputeConfig{Backend: "cpu", Autotune: true},
		Potential:    PotentialConfig{Epsilon: 1, Sigma: 1},
	},
	"binary": {
		Name: "binary",
		Types: []TypeConfig{
			{Name: "A", Count: 1600},
			{Name: "B", Count: 400, Diameter: 0.88},
		},
		Box:        BoxConfig{X: 13.3, Y: 13.3, Z: 13.3},
		Lattice:    "cubic",
		RCut:       2.5,
		RBuff:      0.3,
		Steps:      1000,
		Dt:         0.004,
		KT:         0.8,
		Seed:       7,
		SortPeriod: 250,
		// A-B interactions are truncated shorter than A-A
		PairCutoffs: []PairCutoff{
			{A: "A", B: "B", RCut: 2.0},
			{A: "B", B: "B", RCut: 2.2},
		},
		NeighborList: NListConfig{Every: 1, DistCheck: true, Storage: "full"},
		Compute:      ComputeConfig{Backend: "cpu", Autotune: true},
		Potential:    PotentialConfig{Epsilon: 1, Sigma: 1},
	},
	"cluster": {
		Name:          "cluster",
		Types:         []TypeConfig{{Name: "A", Count: 1500}},
		Box:           BoxConfig{X: 30, Y: 30, Z: 30},
		Lattice:       "cluster",
		ClusterRadius: 6,
		RCut:          2.5,
		RBuff:         0.4,
		Steps:         500,
		Dt:            0.002,
		KT:            0.5,
		Seed:          3,
		NeighborList:  NListConfig{Every: 1, DistCheck: true, Storage: "full", InitialCapacity: 8},
		Compute:       ComputeConfig{Backend: "cpu", Autotune: true},
		Potential:     PotentialConfig{Epsilon: 1, Sigma: 1},
	},
}

// GetPreset returns a copy of the named preset, or nil.
func GetPreset(name string) *Config {
	cfg, ok := Presets[name]
	if !ok {
		return nil
	}
	return cfg.Clone()
}

func ListPresets() []string {
	names := make([]string, 0, len(Presets))
	for name := range Presets {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
