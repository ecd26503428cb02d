package tuner

// Worker configuration limits.
const (
	maxWalkWorkers = 64
	minWalkWorkers = 8

	// Hashing is bound by disk reads; past a few readers per core the
	// extra workers only add seeks.
	maxHashWorkers = 32
	minHashWorkers = 2

	minBufferSize = 32 * 1024
	maxBufferSize = 1024 * 1024
)

// bufferMemoryFraction is the share of available RAM all hash buffers may use.
const bufferMemoryFraction = 0.01

// OptimalConfig contains tuned settings for the detected system resources.
type OptimalConfig struct {
	// WalkWorkers is the number of directory walking goroutines.
	WalkWorkers int

	// HashWorkers bounds concurrent checksum computations.
	HashWorkers int

	// BufferSize is the read buffer per hash worker, a power of two.
	BufferSize int
}

// Calculate returns optimal configuration based on system resources.
//
//   - WalkWorkers: max(NumCPU, 8), capped at 64; traversal is metadata-heavy
//   - HashWorkers: NumCPU * 2, between 2 and 32
//   - BufferSize: 1% of available RAM split across hash workers, rounded
//     down to a power of two between 32KiB and 1MiB
func Calculate(resources SystemResources) OptimalConfig {
	walk := max(resources.CPUCores, minWalkWorkers)
	walk = min(walk, maxWalkWorkers)

	hash := resources.CPUCores * 2
	hash = max(hash, minHashWorkers)
	hash = min(hash, maxHashWorkers)

	return OptimalConfig{
		WalkWorkers: walk,
		HashWorkers: hash,
		BufferSize:  calculateBufferSize(resources.AvailableRAM, hash),
	}
}

// CalculateWithOverrides applies user overrides to the optimal config.
// A positive hashWorkers replaces the computed count, capped at 32; a
// positive bufferSize replaces the computed buffer.
func CalculateWithOverrides(resources SystemResources, hashWorkers, bufferSize int) OptimalConfig {
	config := Calculate(resources)

	if hashWorkers > 0 {
		config.HashWorkers = min(hashWorkers, maxHashWorkers)
	}
	if bufferSize > 0 {
		config.BufferSize = bufferSize
	}

	return config
}

func calculateBufferSize(availableRAM int64, workers int) int {
	if workers < 1 {
		workers = 1
	}
	perWorker := int64(float64(availableRAM)*bufferMemoryFraction) / int64(workers)

	size := int64(minBufferSize)
	for size*2 <= perWorker && size < maxBufferSize {
		size *= 2
	}
	return int(size)
}
