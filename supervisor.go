package cluster

import (
	"time"

	"golang.org/x/sys/unix"
)

// pollInterval is the small polling interval §4.6 step 7 falls back to
// when nothing more urgent (a shutdown deadline or a scheduled respawn) is
// pending. Kept short so a shutdown_timeout_ms in the low hundreds (as in
// the shutdown-timeout scenario in §8) is honored within a small margin.
const pollInterval = 50 * time.Millisecond

// Supervisor drives the loop described in §4.6. It owns the registry and
// all of the bookkeeping a rolling restart needs; everything here runs on
// the single goroutine WaitWorkers calls run() from, so no field needs
// synchronization beyond reg.mu — which exists to let GetStats take a
// consistent snapshot concurrently with the loop, not to protect against
// a second mutator (there isn't one).
type Supervisor struct {
	cfg        Config
	reg        *registry
	dispatcher *signalDispatcher

	shuttingDown     bool
	shutdownDeadline time.Time

	restartActive bool
	restartCursor WorkerID
	totalRestarts uint64
}

func newSupervisor(cfg Config) *Supervisor {
	return &Supervisor{
		cfg:        cfg,
		reg:        newRegistry(cfg.CPUs, cfg.RespawnMaxCrashes),
		dispatcher: newSignalDispatcher(),
	}
}

// spawnInitial brings up every configured slot, pacing spawns by
// worker_startup_delay_ms to avoid a thundering herd at boot (§4.7). A
// slot whose initial spawn fails becomes Crashed and is fed straight into
// the crash-rate limiter, exactly like any other exit (§4.4 "a worker
// whose initial spawn fails transitions directly to CRASHED").
func (s *Supervisor) spawnInitial() {
	for _, rec := range s.reg.records {
		now := monotonicNow()
		pid, err := spawnChild(rec.id, s.cfg.Port)
		if err != nil {
			Logger.WithField("worker_id", rec.id).WithError(err).Warn("initial spawn failed")
			s.reg.mu.Lock()
			markReaped(rec, reapResult{exitStatus: -1}, now)
			s.afterExitLocked(rec, now)
			s.reg.mu.Unlock()
		} else {
			s.reg.mu.Lock()
			startIncarnation(rec, pid, s.cfg.Port, now)
			s.reg.mu.Unlock()
			Logger.WithFields(map[string]interface{}{
				"worker_id": rec.id, "pid": pid,
			}).Info("spawned worker")
		}
		sleepFor(s.cfg.WorkerStartupDelay)
	}
}

// run is C6: the supervisor loop. It returns once every slot is terminal.
func (s *Supervisor) run() error {
	s.dispatcher.install()
	defer s.dispatcher.uninstall()

	for {
		now := monotonicNow()

		s.transitionStartups(now)
		s.drainReap(now)
		s.driveShutdown(now)
		s.advanceRestart(now)
		s.runDueRespawns(now)

		s.reg.mu.Lock()
		done := s.reg.allTerminal()
		s.reg.mu.Unlock()
		if done {
			return nil
		}

		time.Sleep(s.nextSleep(monotonicNow()))
	}
}

// nextSleep computes how long step 7 may sleep before the loop must look
// again: the smaller of the small poll interval, the remaining time to the
// shutdown deadline, and the remaining time to the nearest pending
// transition (a Starting slot's startup delay, or a Respawning slot's
// scheduled spawn). The sleep is a plain time.Sleep: an incoming signal
// only sets a dispatcher flag and does not cut the sleep short, so the
// loop notices it at the next iteration, at most pollInterval later.
func (s *Supervisor) nextSleep(now time.Time) time.Duration {
	wait := pollInterval

	s.reg.mu.Lock()
	defer s.reg.mu.Unlock()

	if s.shuttingDown {
		if d := s.shutdownDeadline.Sub(now); d < wait {
			wait = d
		}
	}
	for _, rec := range s.reg.records {
		switch rec.status {
		case Starting:
			remaining := s.cfg.WorkerStartupDelay - now.Sub(rec.startTime)
			if remaining < wait {
				wait = remaining
			}
		case Respawning:
			if !rec.respawnAt.IsZero() {
				if remaining := rec.respawnAt.Sub(now); remaining < wait {
					wait = remaining
				}
			}
		}
	}
	if wait < time.Millisecond {
		wait = time.Millisecond
	}
	return wait
}

// transitionStartups performs the Starting -> Active edge (§4.4 row 2)
// and fires on_start. It runs every iteration so a rolling restart waiting
// on "replacement reached Active" notices as soon as possible.
func (s *Supervisor) transitionStartups(now time.Time) {
	var fire []WorkerID
	var incarnations []string

	s.reg.mu.Lock()
	for _, rec := range s.reg.records {
		if readyForActive(rec, now, s.cfg.WorkerStartupDelay) {
			markActive(rec)
			fire = append(fire, rec.id)
			incarnations = append(incarnations, rec.incarnation)
		}
	}
	s.reg.mu.Unlock()

	if s.cfg.OnStart == nil {
		return
	}
	for i, id := range fire {
		s.cfg.OnStart(id, incarnations[i])
	}
}

// drainReap is §4.6 step 1: repeatedly reap nonblocking until there is
// nothing left, dispatching each reaped pid to its slot.
func (s *Supervisor) drainReap(now time.Time) {
	if !s.dispatcher.reapPending.CompareAndSwap(true, false) {
		return
	}

	for {
		res, ok, err := reapOnce()
		if err != nil {
			Logger.WithError(err).Warn("reap error")
			continue
		}
		if !ok {
			return
		}

		s.reg.mu.Lock()
		rec := s.reg.lookupByPID(res.pid)
		if rec == nil {
			s.reg.mu.Unlock()
			Logger.WithField("pid", res.pid).Warn("reaped unknown pid")
			continue
		}

		prevStatus := rec.status
		crash := isCrash(prevStatus, res)
		id, incarnation := rec.id, rec.incarnation
		exitStatus := res.exitStatus
		markReaped(rec, res, now)

		onExit := s.cfg.OnExit
		s.afterExitLocked(rec, now)
		s.reg.mu.Unlock()

		if onExit != nil {
			onExit(id, incarnation, exitStatus, crash)
		}
		entry := Logger.WithFields(map[string]interface{}{
			"worker_id": id, "pid": res.pid, "exit_status": exitStatus, "is_crash": crash,
		})
		if crash {
			entry.WithError(errWorkerCrash).Warn("worker exited")
		} else {
			entry.Info("worker exited")
		}
	}
}

// afterExitLocked decides what happens to a just-reaped slot: nothing (the
// cluster is shutting down), an immediate replacement spawn (this slot is
// the rolling-restart cursor's target — not limiter-governed, because it
// isn't a crash), or the ordinary crash-rate-limited respawn decision
// (§4.3, §4.4). Caller must hold reg.mu.
func (s *Supervisor) afterExitLocked(rec *record, now time.Time) {
	if s.shuttingDown {
		markEmpty(rec)
		return
	}

	if s.restartActive && rec.id == s.restartCursor {
		pid, err := spawnChild(rec.id, s.cfg.Port)
		if err != nil {
			Logger.WithField("worker_id", rec.id).WithError(err).Warn("restart replacement spawn failed, retrying as ordinary respawn")
		} else {
			startIncarnation(rec, pid, s.cfg.Port, now)
			return
		}
	}

	if !s.cfg.Respawn {
		return
	}

	decision := recordCrash(rec, now, s.cfg.RespawnWindow, s.cfg.RespawnMaxCrashes)
	if decision == disableRespawn {
		markDisabled(rec)
		Logger.WithField("worker_id", rec.id).WithError(errRespawnDisabled).Warn("worker disabled")
		return
	}
	markRespawning(rec, now.Add(s.cfg.WorkerRespawnDelay))
}

// driveShutdown is §4.6 steps 2 and 3.
func (s *Supervisor) driveShutdown(now time.Time) {
	if s.dispatcher.shutdownRequested.Load() && !s.shuttingDown {
		s.reg.mu.Lock()
		s.shuttingDown = true
		s.shutdownDeadline = now.Add(s.cfg.ShutdownTimeout)
		if s.restartActive {
			// Shutdown wins over an in-progress rolling restart (§4.6).
			s.restartActive = false
			s.restartCursor = 0
			s.dispatcher.restartRequested.Store(false)
		}
		s.reg.iterLive(func(rec *record) {
			if rec.status == Stopping {
				return
			}
			if rec.pid == 0 {
				// Respawning: no live process to signal. Cancel the
				// pending respawn and reclaim the slot directly, or
				// allTerminal never sees it settle.
				markEmpty(rec)
				return
			}
			markStopping(rec)
			_ = signalPID(rec.pid, unix.SIGTERM)
		})
		s.reg.mu.Unlock()
		Logger.Info("shutdown requested: sent SIGTERM to all live workers")
		return
	}

	if s.shuttingDown && now.After(s.shutdownDeadline) {
		s.reg.mu.Lock()
		s.reg.iterLive(func(rec *record) {
			if rec.pid != 0 {
				Logger.WithField("worker_id", rec.id).WithError(errShutdownTimeout).Warn("sending SIGKILL")
				_ = signalPID(rec.pid, unix.SIGKILL)
			}
		})
		s.reg.mu.Unlock()
	}
}

// advanceRestart is §4.6 step 4 / the rolling-restart protocol of §4.6.
func (s *Supervisor) advanceRestart(now time.Time) {
	if s.shuttingDown {
		return
	}
	if !s.dispatcher.restartRequested.Load() && !s.restartActive {
		return
	}

	s.reg.mu.Lock()
	defer s.reg.mu.Unlock()

	if !s.restartActive {
		s.restartActive = true
		s.restartCursor = 0
	}

	if s.restartCursor != 0 {
		rec := s.reg.lookup(s.restartCursor)
		if rec.status != Active {
			return // still waiting for this slot's replacement to come up
		}
	}

	next := s.nextRestartTargetLocked(s.restartCursor)
	if next == 0 {
		s.restartActive = false
		s.restartCursor = 0
		s.dispatcher.restartRequested.Store(false)
		s.totalRestarts++
		Logger.WithField("total_restarts", s.totalRestarts).Info("rolling restart complete")
		return
	}

	s.restartCursor = next
	rec := s.reg.lookup(next)
	markStopping(rec)
	_ = signalPID(rec.pid, unix.SIGTERM)
	Logger.WithField("worker_id", next).Info("rolling restart: stopping worker")
}

// nextRestartTargetLocked finds the next Active slot after 'after' in id
// order. Slots that are Disabled or otherwise not Active are skipped —
// there is nothing to roll there. Caller must hold reg.mu.
func (s *Supervisor) nextRestartTargetLocked(after WorkerID) WorkerID {
	for id := after + 1; int(id) <= len(s.reg.records); id++ {
		if rec := s.reg.lookup(id); rec.status == Active {
			return id
		}
	}
	return 0
}

// runDueRespawns is §4.6 step 5.
func (s *Supervisor) runDueRespawns(now time.Time) {
	s.reg.mu.Lock()
	defer s.reg.mu.Unlock()

	for _, rec := range s.reg.records {
		if rec.status != Respawning || rec.respawnAt.IsZero() || now.Before(rec.respawnAt) {
			continue
		}
		pid, err := spawnChild(rec.id, s.cfg.Port)
		if err != nil {
			Logger.WithField("worker_id", rec.id).WithError(err).Warn("respawn failed")
			markReaped(rec, reapResult{exitStatus: -1}, now)
			s.afterExitLocked(rec, now)
			continue
		}
		startIncarnation(rec, pid, s.cfg.Port, now)
		Logger.WithFields(map[string]interface{}{
			"worker_id": rec.id, "pid": pid,
		}).Info("respawned worker")
	}
}

// signalAllLive is the SignalWorkers primitive (§6): master-only, sends
// sig to every live worker.
func (s *Supervisor) signalAllLive(sig int) error {
	s.reg.mu.Lock()
	defer s.reg.mu.Unlock()

	var firstErr error
	s.reg.iterLive(func(rec *record) {
		if err := signalPID(rec.pid, unix.Signal(sig)); err != nil && firstErr == nil {
			firstErr = err
		}
	})
	return firstErr
}
