package cluster

import (
	"time"

	"golang.org/x/sys/unix"
)

// This file holds the pure state-transition functions of C4 (§4.4). They
// never call out to callbacks, the limiter, or the OS — callers (the
// supervisor loop) own sequencing all of that around these transitions so
// that "callbacks for a given worker are delivered in lifecycle order ...
// the supervisor never overlaps callbacks for the same slot" (§4.6) is
// trivially true: there is exactly one goroutine driving every transition.

// startIncarnation moves a slot into Starting for a freshly spawned pid.
// Event: spawn (§4.4 row 1).
func startIncarnation(rec *record, pid int, port int, now time.Time) {
	rec.pid = pid
	rec.port = port
	rec.status = Starting
	rec.startTime = now
	rec.incarnation = newIncarnationID()
	rec.respawnAt = time.Time{}
}

// readyForActive reports whether a Starting slot has survived its startup
// delay and should transition to Active (§4.4 row 2).
func readyForActive(rec *record, now time.Time, startupDelay time.Duration) bool {
	return rec.status == Starting && now.Sub(rec.startTime) >= startupDelay
}

// markActive performs the Starting -> Active transition. The caller is
// responsible for invoking on_start exactly once, after this call.
func markActive(rec *record) {
	rec.status = Active
}

// markStopping performs the Active -> Stopping transition (shutdown or
// this slot's turn in a rolling restart). The caller sends SIGTERM.
func markStopping(rec *record) {
	rec.status = Stopping
}

// isCrash computes is_crash for a reaped exit per the clarification in
// §4.4. While the slot was Stopping, an exit with status 0 or death by
// SIGTERM is graceful; a nonzero exit or any other signal is a crash.
// Outside Stopping, any death by signal or nonzero exit status is a crash,
// and an exit with status 0 is not.
func isCrash(prevStatus Status, res reapResult) bool {
	if prevStatus == Stopping {
		if !res.bySignal && res.exitStatus == 0 {
			return false
		}
		if res.bySignal && res.signal == unix.SIGTERM {
			return false
		}
		return true
	}
	if res.bySignal {
		return true
	}
	return res.exitStatus != 0
}

// markReaped performs the "child exit" transition into the transient
// Crashed state and records exit bookkeeping. The caller still owns
// deciding respawn/disable/empty immediately afterward; the slot stays in
// Crashed only when that decision leaves it empty (shutdown in progress,
// or Respawn turned off).
func markReaped(rec *record, res reapResult, now time.Time) {
	rec.pid = 0
	rec.status = Crashed
	rec.exitStatus = res.exitStatus
}

// markRespawning schedules a deferred respawn (§4.4 row "RESPAWNING").
func markRespawning(rec *record, respawnAt time.Time) {
	rec.status = Respawning
	rec.respawnAt = respawnAt
}

// markDisabled performs the terminal Crashed -> Disabled transition.
func markDisabled(rec *record) {
	rec.status = Disabled
	rec.respawnDisabled = true
	rec.respawnAt = time.Time{}
}

// markEmpty clears a slot to its post-shutdown empty form: no live
// process, nothing scheduled, and not Disabled (used when shutdown
// reclaims a slot that exited gracefully rather than crashing out).
func markEmpty(rec *record) {
	rec.status = Crashed
	rec.pid = 0
	rec.respawnAt = time.Time{}
}
