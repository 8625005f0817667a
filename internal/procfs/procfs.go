// Package procfs reads the handful of /proc/[pid]/* fields the supervisor
// needs to enrich a worker's stats snapshot with live resource usage,
// without shelling out or linking a heavier process-inspection library for
// just these three numbers.
package procfs

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// Usage is resident memory, open file descriptor count and thread count
// for one pid, sampled at one instant. A worker whose slot no longer holds
// this pid by the time Usage is read may see partially stale or
// not-found data; callers treat a read error as "no usage available"
// rather than fatal.
type Usage struct {
	RSSKiB  int64
	Threads int
	OpenFDs int
}

// ReadUsage reads /proc/[pid]/status and /proc/[pid]/fd for pid. Returns an
// error if the process is gone by the time of the read — expected when a
// worker exits between a stats snapshot and this call.
func ReadUsage(pid int) (Usage, error) {
	procPath := fmt.Sprintf("/proc/%d", pid)

	data, err := os.ReadFile(filepath.Join(procPath, "status"))
	if err != nil {
		return Usage{}, fmt.Errorf("procfs: read status for pid %d: %w", pid, err)
	}

	var u Usage
	for _, line := range strings.Split(string(data), "\n") {
		key, val, ok := strings.Cut(line, ":")
		if !ok {
			continue
		}
		val = strings.TrimSpace(val)
		switch strings.TrimSpace(key) {
		case "Threads":
			u.Threads, _ = strconv.Atoi(val)
		case "VmRSS":
			fields := strings.Fields(val)
			if len(fields) > 0 {
				u.RSSKiB, _ = strconv.ParseInt(fields[0], 10, 64)
			}
		}
	}

	if entries, err := os.ReadDir(filepath.Join(procPath, "fd")); err == nil {
		u.OpenFDs = len(entries)
	}

	return u, nil
}
