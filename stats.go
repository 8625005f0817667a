package cluster

import (
	"fmt"
	"time"

	"github.com/ecewo/ecewo-cluster/internal/procfs"
)

// WorkerStats is a snapshot of one worker slot, returned by GetWorkerStats
// and as part of GetAllWorkers (§3 "WorkerStats", §6 "get_worker_stats").
type WorkerStats struct {
	ID          WorkerID
	PID         int
	Port        int
	Status      Status
	Incarnation string
	StartTime   time.Time
	ExitStatus  int
	CrashCount  int
	Disabled    bool
}

func snapshotLocked(rec *record) WorkerStats {
	return WorkerStats{
		ID:          rec.id,
		PID:         rec.pid,
		Port:        rec.port,
		Status:      rec.status,
		Incarnation: rec.incarnation,
		StartTime:   rec.startTime,
		ExitStatus:  rec.exitStatus,
		CrashCount:  int(rec.crashCount),
		Disabled:    rec.respawnDisabled,
	}
}

// Stats is the aggregate ClusterStats of §3, returned by GetStats.
type Stats struct {
	CPUs          int
	Port          int
	Active        int
	Starting      int
	Stopping      int
	Respawning    int
	Disabled      int
	TotalRestarts uint64
	ShuttingDown  bool
}

// GetStats returns a consistent snapshot of the whole cluster (master-only;
// ErrNotMaster elsewhere). The snapshot is taken under the same lock the
// supervisor loop uses, so it never observes a torn mid-transition state.
func GetStats() (Stats, error) {
	s, err := masterOrErr()
	if err != nil {
		return Stats{}, err
	}

	s.reg.mu.Lock()
	defer s.reg.mu.Unlock()

	st := Stats{
		CPUs:          len(s.reg.records),
		Port:          s.cfg.Port,
		Active:        s.reg.countByStatus(Active),
		Starting:      s.reg.countByStatus(Starting),
		Stopping:      s.reg.countByStatus(Stopping),
		Respawning:    s.reg.countByStatus(Respawning),
		Disabled:      s.reg.countByStatus(Disabled),
		TotalRestarts: s.totalRestarts,
		ShuttingDown:  s.shuttingDown,
	}
	return st, nil
}

// GetWorkerStats returns a snapshot of a single worker slot (master-only).
func GetWorkerStats(id WorkerID) (WorkerStats, error) {
	s, err := masterOrErr()
	if err != nil {
		return WorkerStats{}, err
	}

	s.reg.mu.Lock()
	defer s.reg.mu.Unlock()

	rec := s.reg.lookup(id)
	if rec == nil {
		return WorkerStats{}, &ConfigError{Reason: "unknown worker id"}
	}
	return snapshotLocked(rec), nil
}

// WorkerUsage is a point-in-time resource reading for one live worker,
// sourced from /proc rather than the registry (§3 doesn't model resource
// usage; this is additive and never consulted by any lifecycle decision).
type WorkerUsage = procfs.Usage

// GetWorkerUsage samples live resource usage for a worker's current pid
// (master-only). Returns an error if the slot has no live pid right now,
// or if the process has already exited by the time /proc is read.
func GetWorkerUsage(id WorkerID) (WorkerUsage, error) {
	s, err := masterOrErr()
	if err != nil {
		return WorkerUsage{}, err
	}

	s.reg.mu.Lock()
	rec := s.reg.lookup(id)
	var pid int
	if rec != nil {
		pid = rec.pid
	}
	s.reg.mu.Unlock()

	if rec == nil {
		return WorkerUsage{}, &ConfigError{Reason: "unknown worker id"}
	}
	if pid == 0 {
		return WorkerUsage{}, fmt.Errorf("cluster: worker %d has no live process", id)
	}
	return procfs.ReadUsage(pid)
}

// GetAllWorkers returns a snapshot of every configured worker slot, in id
// order (master-only).
func GetAllWorkers() ([]WorkerStats, error) {
	s, err := masterOrErr()
	if err != nil {
		return nil, err
	}

	s.reg.mu.Lock()
	defer s.reg.mu.Unlock()

	out := make([]WorkerStats, 0, len(s.reg.records))
	s.reg.iterAll(func(rec *record) {
		out = append(out, snapshotLocked(rec))
	})
	return out, nil
}
