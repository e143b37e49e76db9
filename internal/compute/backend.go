package compute

import "strings"

type Backend interface {
	Name() string
	Workers() int
	// ParallelFor calls fn over disjoint chunks covering [0, n) and returns
	// once every chunk has finished.
	ParallelFor(n, grain int, fn func(start, end int))
	Cleanup()
}

var activeBackend Backend

func init() {
	activeBackend = NewCPUBackend(0)
}

func SetBackend(b Backend) {
	if activeBackend != nil {
		activeBackend.Cleanup()
	}
	activeBackend = b
}

func GetBackend() Backend {
	return activeBackend
}

// ByName returns "cpu" or "serial" backends. workers <= 0 means one per CPU.
func ByName(name string, workers int) (Backend, bool) {
	switch strings.ToLower(name) {
	case "cpu", "":
		return NewCPUBackend(workers), true
	case "serial":
		return NewSerialBackend(), true
	}
	return nil, false
}
