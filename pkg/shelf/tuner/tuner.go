// Package tuner sizes the scanner and executor worker pools from the
// detected CPU and memory of the machine.
package tuner

// SystemResources contains detected system resources.
type SystemResources struct {
	// CPUCores is the number of logical CPU cores available.
	CPUCores int

	// TotalRAM is the total physical RAM in bytes.
	TotalRAM int64

	// AvailableRAM is an estimate of free RAM in bytes.
	AvailableRAM int64
}

// Worker limits.
const (
	maxScanWorkers = 32
	minScanWorkers = 4

	maxExecWorkers = 16
	minExecWorkers = 2

	// bytesPerExecWorker bounds executors by memory: a worker may hold a
	// copy buffer and a gzip window at the same time.
	bytesPerExecWorker = 64 << 20
)

// Plan is the worker configuration for one run.
type Plan struct {
	// ScanWorkers is the number of directory walking goroutines.
	ScanWorkers int

	// ExecWorkers is the number of requests executed at once.
	ExecWorkers int
}

// Calculate returns the plan for resources.
//
// Directory walking is metadata bound and scales with cores. Execution
// moves and compresses file contents, mostly on one disk, so it stays
// close to the core count and is further capped by available memory.
func Calculate(resources SystemResources) Plan {
	cores := max(resources.CPUCores, 1)

	scan := min(max(cores, minScanWorkers), maxScanWorkers)

	exec := min(max(cores, minExecWorkers), maxExecWorkers)
	if resources.AvailableRAM > 0 {
		byMemory := int(resources.AvailableRAM / bytesPerExecWorker)
		exec = min(exec, max(byMemory, 1))
	}

	return Plan{ScanWorkers: scan, ExecWorkers: exec}
}

// WithOverride replaces ExecWorkers with n when n is positive.
func (p Plan) WithOverride(n int) Plan {
	if n > 0 {
		p.ExecWorkers = min(n, maxExecWorkers*4)
	}
	return p
}

// Auto detects the resources and calculates the plan. Detection errors
// fall back to the core count alone.
func Auto() Plan {
	resources, err := Detect()
	if err != nil {
		resources.AvailableRAM = 0
	}
	return Calculate(resources)
}
