package cluster

import (
	"fmt"
	"os"
	"os/exec"
	"syscall"
	"time"

	"golang.org/x/sys/unix"
)

// envWorkerID and envWorkerPort are how a freshly re-exec'd process learns
// it is a worker (see the [REDESIGN] note in SPEC_FULL.md: Go cannot
// safely fork(2) without exec, so "fork" here means "re-exec the same
// binary with identity passed through the environment").
const (
	envWorkerID   = "CLUSTER_WORKER_ID"
	envWorkerPort = "CLUSTER_PORT"
)

// spawnChild starts a new worker incarnation for id on port, re-executing
// the current binary with its identity in the environment. It returns the
// child's pid. Setpgid mirrors the teacher's technique: a worker (and
// anything it spawns) lives in its own process group so a single signal to
// -pid reaches the whole group, not just the immediate child.
func spawnChild(id WorkerID, port int) (int, error) {
	exe, err := os.Executable()
	if err != nil {
		return 0, fmt.Errorf("%w: resolve executable: %v", errSpawn, err)
	}

	cmd := exec.Command(exe, os.Args[1:]...)
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	cmd.Stdin = os.Stdin
	cmd.Env = append(os.Environ(),
		fmt.Sprintf("%s=%d", envWorkerID, id),
		fmt.Sprintf("%s=%d", envWorkerPort, port),
	)
	cmd.SysProcAttr = &syscall.SysProcAttr{
		Setpgid: true,
		Pgid:    0,
	}

	if err := cmd.Start(); err != nil {
		return 0, fmt.Errorf("%w: worker %d: %v", errSpawn, id, err)
	}
	return cmd.Process.Pid, nil
}

// signalPID sends sig to the process group rooted at pid (negative pid is
// the kill(2) convention for "the whole group").
func signalPID(pid int, sig unix.Signal) error {
	if pid == 0 {
		return fmt.Errorf("cluster: no process to signal")
	}
	return unix.Kill(-pid, sig)
}

// reapResult is one nonblocking reap outcome.
type reapResult struct {
	pid        int
	exitStatus int
	bySignal   bool
	signal     unix.Signal
}

// reapOnce performs one nonblocking wait4(-1, WNOHANG). It returns ok=false
// when there is currently nothing to reap (pid <= 0), which is how the
// caller knows to stop draining (§4.6 step 1: "drain by repeated
// nonblocking reap").
func reapOnce() (res reapResult, ok bool, err error) {
	var ws unix.WaitStatus
	pid, werr := unix.Wait4(-1, &ws, unix.WNOHANG, nil)
	if werr == unix.ECHILD {
		// No children left at all; not an error condition worth logging.
		return reapResult{}, false, nil
	}
	if werr != nil {
		return reapResult{}, false, fmt.Errorf("%w: %v", errReap, werr)
	}
	if pid <= 0 {
		return reapResult{}, false, nil
	}

	res.pid = pid
	if ws.Exited() {
		res.exitStatus = ws.ExitStatus()
	} else if ws.Signaled() {
		res.bySignal = true
		res.signal = ws.Signal()
		res.exitStatus = 128 + int(ws.Signal())
	}
	return res, true, nil
}

// processAlive reports whether pid still exists, using the kill(pid, 0)
// idiom (no signal delivered, just existence/permission checked).
func processAlive(pid int) bool {
	if pid == 0 {
		return false
	}
	return unix.Kill(pid, 0) == nil
}

func monotonicNow() time.Time { return time.Now() }

func sleepFor(d time.Duration) { time.Sleep(d) }
