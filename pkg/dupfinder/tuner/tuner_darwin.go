//go:build darwin

package tuner

import (
	"fmt"
	"runtime"

	"golang.org/x/sys/unix"
)

// Detect detects available system resources (CPU and RAM).
// On darwin it reads hw.memsize via sysctl.
func Detect() (SystemResources, error) {
	resources := SystemResources{
		CPUCores: runtime.NumCPU(),
	}

	memsize, err := unix.SysctlUint64("hw.memsize")
	if err != nil {
		return resources, fmt.Errorf("failed to get total RAM: sysctl hw.memsize: %w", err)
	}
	resources.TotalRAM = int64(memsize)

	// macOS keeps most free memory in the file cache; half of total is a
	// usable estimate for buffer sizing.
	resources.AvailableRAM = resources.TotalRAM / 2

	return resources, nil
}
