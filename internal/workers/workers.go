package workers

import (
	"runtime"
)

// Count returns the number of concurrent slots for a given workload.
// It respects container CPU limits via GOMAXPROCS (Go 1.19+).
//
// The multiplier adjusts for task characteristics:
//   - 1.0 for CPU-bound tasks (transcoding)
//   - 2.0 for tasks that mostly wait on a child process or the network
//
// A positive override (EXTRACTOR_WORKERS) wins over the calculation but is
// still capped by limit. Use 0 for no limit.
func Count(multiplier float64, limit, override int) int {
	if override > 0 {
		if limit > 0 && override > limit {
			return limit
		}
		return override
	}

	available := runtime.GOMAXPROCS(0)

	workers := int(float64(available) * multiplier)

	if workers < 1 {
		workers = 1
	}
	if limit > 0 && workers > limit {
		workers = limit
	}

	return workers
}

// ForCPU returns the slot count for CPU-bound tasks (1 per CPU).
func ForCPU(limit, override int) int {
	return Count(1.0, limit, override)
}

// ForIO returns the slot count for I/O-bound tasks (2 per CPU).
func ForIO(limit, override int) int {
	return Count(2.0, limit, override)
}
