package workers

import (
	"os"
	"runtime"
	"strconv"
)

// overrideEnv lets operators pin the worker count regardless of what the
// CPU-based calculation would produce.
const overrideEnv = "PROCESS_WORKERS"

// Count returns a worker count derived from the CPUs actually available
// to the process. GOMAXPROCS tracks container CPU limits (Go 1.19+), so
// the result respects cgroup constraints where runtime.NumCPU would not.
//
// The multiplier scales workers per CPU: 1.0 for CPU-bound work such as
// video compression, 2.0 for I/O-bound work, 1.5 for mixed. The limit
// caps the result; 0 means uncapped.
//
// The PROCESS_WORKERS environment variable overrides the calculation
// (still subject to limit).
func Count(multiplier float64, limit int) int {
	if n, ok := envOverride(); ok {
		return clamp(n, limit)
	}

	available := runtime.GOMAXPROCS(0)
	workers := int(float64(available) * multiplier)
	if workers < 1 {
		workers = 1
	}
	return clamp(workers, limit)
}

func envOverride() (int, bool) {
	v := os.Getenv(overrideEnv)
	if v == "" {
		return 0, false
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		return 0, false
	}
	return n, true
}

func clamp(workers, limit int) int {
	if limit > 0 && workers > limit {
		return limit
	}
	return workers
}

// ForCPU sizes a pool for CPU-bound work, one worker per CPU. The swing
// pipeline uses this for its compression workers.
func ForCPU(limit int) int {
	return Count(1.0, limit)
}

// ForIO sizes a pool for I/O-bound work, two workers per CPU.
func ForIO(limit int) int {
	return Count(2.0, limit)
}

// ForMixed sizes a pool for work that alternates CPU and I/O.
func ForMixed(limit int) int {
	return Count(1.5, limit)
}
