package cluster

import (
	"fmt"
	"os"
	"strconv"
	"sync"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// Process-wide state (§3 "Global supervisor state" / "Worker-local
// state"). Exactly one of (sup != nil) or (selfID != 0) holds after a
// successful Init, mirroring "is_master() XOR is_worker()" (§8).
var (
	globalMu sync.Mutex
	sup      *Supervisor
	selfID   WorkerID
	selfPort int
)

// Logger is the package-wide logrus logger used for every supervisor
// event. Embedding applications may reassign it (e.g. to switch to a JSON
// formatter) before calling Init.
var Logger = logrus.StandardLogger()

// Init is the single entry point every process calls (§6 "init"). In the
// process that ends up being the master, it resolves CPUs, validates cfg,
// spawns the configured workers and returns (true, nil). In a process that
// turns out to be a worker (recognized by the environment Init's own
// re-exec left behind — see process_unix.go), it assigns that worker's
// stable ID and inherited port and returns (false, nil) without spawning
// anything.
func Init(cfg Config) (isMaster bool, err error) {
	globalMu.Lock()
	defer globalMu.Unlock()

	if sup != nil || selfID != 0 {
		return false, fmt.Errorf("cluster: Init called twice in one process")
	}

	if idEnv := os.Getenv(envWorkerID); idEnv != "" {
		return initWorker(idEnv)
	}
	return initMaster(cfg)
}

func initWorker(idEnv string) (bool, error) {
	id, err := strconv.Atoi(idEnv)
	if err != nil || id < 1 || id > MaxWorkers {
		return false, fmt.Errorf("cluster: malformed %s=%q", envWorkerID, idEnv)
	}
	port, err := strconv.Atoi(os.Getenv(envWorkerPort))
	if err != nil {
		return false, fmt.Errorf("cluster: malformed %s", envWorkerPort)
	}

	selfID = WorkerID(id)
	selfPort = port

	// §4.7: the dispatcher is never installed in a worker process in the
	// first place (a re-exec'd process starts with every signal at its
	// default disposition), so there is nothing to reset here — the
	// caller's own signal.Notify calls take effect immediately.
	return false, nil
}

func initMaster(cfg Config) (bool, error) {
	cfg = cfg.withDefaults()
	if cfg.CPUs == 0 {
		cfg.CPUs = Cpus()
	}
	if err := cfg.validate(); err != nil {
		return false, err
	}

	s := newSupervisor(cfg)
	s.spawnInitial()

	sup = s
	return true, nil
}

// WaitWorkers runs the supervisor loop (C6). It is master-only and blocks
// until every worker slot is terminal (Disabled, or empty with no respawn
// pending, which is the case after shutdown and also for a slot that
// exited while Respawn is off). Calling it from a worker, or before Init, returns
// ErrNotMaster. If no worker slots exist at all it returns immediately.
func WaitWorkers() error {
	globalMu.Lock()
	s := sup
	globalMu.Unlock()

	if s == nil {
		return ErrNotMaster
	}
	return s.run()
}

// SignalWorkers sends sig to every live worker (master-only). Signals this
// package also treats specially when sent to the master itself (SIGTERM,
// SIGINT, SIGUSR2) are delivered here exactly as requested: SignalWorkers
// talks to workers, not to the master's own dispatcher.
func SignalWorkers(sig int) error {
	s, err := masterOrErr()
	if err != nil {
		return err
	}
	return s.signalAllLive(sig)
}

// GracefulRestart requests a rolling restart (§4.6). It is idempotent: a
// second call while a restart is already underway is a no-op (§8).
func GracefulRestart() error {
	s, err := masterOrErr()
	if err != nil {
		return err
	}
	s.dispatcher.restartRequested.Store(true)
	return nil
}

// GetPort returns the inherited listening port in a worker, or 0 in the
// master.
func GetPort() int {
	globalMu.Lock()
	defer globalMu.Unlock()
	return selfPort
}

// IsMaster reports whether this process is the master.
func IsMaster() bool {
	globalMu.Lock()
	defer globalMu.Unlock()
	return sup != nil
}

// IsWorker reports whether this process is a worker.
func IsWorker() bool {
	globalMu.Lock()
	defer globalMu.Unlock()
	return selfID != 0
}

// ThisWorkerID returns this process's WorkerID ([1, N] in a worker), or 0
// in the master or before Init.
func ThisWorkerID() WorkerID {
	globalMu.Lock()
	defer globalMu.Unlock()
	return selfID
}

// WorkerCount returns the number of configured worker slots (master-only;
// 0 elsewhere).
func WorkerCount() int {
	globalMu.Lock()
	defer globalMu.Unlock()
	if sup == nil {
		return 0
	}
	return len(sup.reg.records)
}

func masterOrErr() (*Supervisor, error) {
	globalMu.Lock()
	s := sup
	globalMu.Unlock()
	if s == nil {
		return nil, ErrNotMaster
	}
	return s, nil
}

func newIncarnationID() string {
	return uuid.NewString()
}
