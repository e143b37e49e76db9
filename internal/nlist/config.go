package nlist

import "github.com/san-kum/mdnlist/internal/celllist"

type StorageMode int

const (
	Full StorageMode = iota
	Half
)

func (m StorageMode) String() string {
	if m == Half {
		return "half"
	}
	return "full"
}

func ParseStorageMode(s string) (StorageMode, bool) {
	switch s {
	case "full", "":
		return Full, true
	case "half":
		return Half, true
	}
	return Full, false
}

const (
	DefaultBuffer          = 0.4
	DefaultCapacity        = 32
	DefaultGrowthFactor    = 1.5
	DefaultMaxNeighbors    = 4096
	DefaultMaxEntries      = 1 << 28
	DefaultAutotunePeriod  = 1000
	DefaultAutotuneSamples = 5
)

type Config struct {
	RBuff float64
	// Every is the number of steps between rebuild checks.
	Every int
	// DistCheck enables the buffer/2 displacement test. Without it the list
	// is rebuilt on every check.
	DistCheck bool
	Storage   StorageMode

	InitialCapacity int
	GrowthFactor    float64
	// MaxNeighbors caps the per-particle capacity.
	MaxNeighbors int
	// MaxEntries caps N x capacity.
	MaxEntries int

	// CellWidth overrides the nominal cell width; 0 uses the largest list
	// radius.
	CellWidth     float64
	DiameterShift bool

	Grid celllist.Config
}

func DefaultConfig() Config {
	return Config{
		RBuff:           DefaultBuffer,
		Every:           1,
		DistCheck:       true,
		Storage:         Full,
		InitialCapacity: DefaultCapacity,
		GrowthFactor:    DefaultGrowthFactor,
		MaxNeighbors:    DefaultMaxNeighbors,
		MaxEntries:      DefaultMaxEntries,
		Grid:            celllist.DefaultConfig(),
	}
}

func (c *Config) normalize() {
	if c.Every < 1 {
		c.Every = 1
	}
	if c.InitialCapacity < 1 {
		c.InitialCapacity = DefaultCapacity
	}
	if c.GrowthFactor <= 1 {
		c.GrowthFactor = DefaultGrowthFactor
	}
	if c.MaxNeighbors < 1 {
		c.MaxNeighbors = DefaultMaxNeighbors
	}
	if c.MaxEntries < 1 {
		c.MaxEntries = DefaultMaxEntries
	}
	if c.InitialCapacity > c.MaxNeighbors {
		c.InitialCapacity = c.MaxNeighbors
	}
}
