//go:build !linux && !darwin

package tuner

import (
	"runtime"
)

// defaultTotalRAM is assumed when memory cannot be detected.
const defaultTotalRAM = 8 << 30

// Detect returns the core count and a default memory size.
func Detect() (SystemResources, error) {
	return SystemResources{
		CPUCores:     runtime.NumCPU(),
		TotalRAM:     defaultTotalRAM,
		AvailableRAM: defaultTotalRAM / 2,
	}, nil
}
