//go:build darwin

package tuner

import (
	"fmt"
	"runtime"

	"golang.org/x/sys/unix"
)

// Detect reads the core count from the runtime and memory from sysctl.
// macOS keeps most free memory as file cache, so half of the total is
// taken as available.
func Detect() (SystemResources, error) {
	resources := SystemResources{CPUCores: runtime.NumCPU()}

	memsize, err := unix.SysctlUint64("hw.memsize")
	if err != nil {
		return resources, fmt.Errorf("sysctl hw.memsize: %w", err)
	}
	resources.TotalRAM = int64(memsize)
	resources.AvailableRAM = resources.TotalRAM / 2
	return resources, nil
}
