package cluster

import (
	"runtime"

	"github.com/shirou/gopsutil/v3/cpu"
)

func clampCPUs(n int) int {
	if n < 1 {
		return 1
	}
	if n > MaxWorkers {
		return MaxWorkers
	}
	return n
}

// Cpus returns the logical CPU count, clamped to [1, MaxWorkers] (§4.1,
// §3). gopsutil is tried first since it can see affinity/cgroup limits
// that runtime.NumCPU ignores on some platforms; runtime.NumCPU is the
// fallback when gopsutil's backend errors.
func Cpus() int {
	if n, err := cpu.Counts(true); err == nil && n > 0 {
		return clampCPUs(n)
	}
	return clampCPUs(runtime.NumCPU())
}

// CpusPhysical returns the physical core count, clamped to [1,
// MaxWorkers], derived from distinct (PhysicalID, CoreID) pairs reported
// by the platform's topology information. Falls back to the logical count
// when that information isn't available (§4.1).
func CpusPhysical() int {
	infos, err := cpu.Info()
	if err != nil || len(infos) == 0 {
		return Cpus()
	}

	type key struct {
		physicalID string
		coreID     string
	}
	seen := make(map[key]struct{}, len(infos))
	for _, info := range infos {
		seen[key{info.PhysicalID, info.CoreID}] = struct{}{}
	}
	if len(seen) == 0 {
		return Cpus()
	}
	return clampCPUs(len(seen))
}
