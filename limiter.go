package cluster

import "time"

// crashDecision is the result of recordCrash (§4.3).
type crashDecision int

const (
	allowRespawn crashDecision = iota
	disableRespawn
)

// recordCrash appends now to rec's crash ring buffer (overwriting the
// oldest entry once full) and decides whether the slot may still respawn.
//
// Algorithm (§4.3): once the buffer is full AND the spread between the
// newest and oldest recorded crash is within the configured window, the
// slot has crashed respawnMaxCrashes times too quickly and is disabled.
// The buffer's capacity — not a separately tracked count — is what
// enforces "len(crash_timestamps) <= respawn_max_crashes" (§8).
func recordCrash(rec *record, now time.Time, window time.Duration, maxCrashes int) crashDecision {
	rec.crashCount++

	if cap(rec.crashWindow) != maxCrashes {
		// Config changed shape under us (shouldn't happen post-Init, but
		// keep the invariant rather than panic on an index).
		rec.crashWindow = make([]time.Time, 0, maxCrashes)
		rec.crashNext = 0
	}

	if len(rec.crashWindow) < maxCrashes {
		rec.crashWindow = append(rec.crashWindow, now)
	} else {
		rec.crashWindow[rec.crashNext] = now
		rec.crashNext = (rec.crashNext + 1) % maxCrashes
	}

	if len(rec.crashWindow) < maxCrashes {
		return allowRespawn
	}

	oldest, newest := rec.crashWindow[0], rec.crashWindow[0]
	for _, t := range rec.crashWindow {
		if t.Before(oldest) {
			oldest = t
		}
		if t.After(newest) {
			newest = t
		}
	}

	if newest.Sub(oldest) <= window {
		rec.respawnDisabled = true
		return disableRespawn
	}
	return allowRespawn
}
