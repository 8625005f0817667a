package cluster

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestRecordCrashAllowsBelowThreshold(t *testing.T) {
	rec := &record{crashWindow: make([]time.Time, 0, 3)}
	now := time.Now()

	require.Equal(t, allowRespawn, recordCrash(rec, now, time.Second, 3))
	require.Equal(t, allowRespawn, recordCrash(rec, now.Add(10*time.Millisecond), time.Second, 3))
	require.False(t, rec.respawnDisabled)
}

func TestRecordCrashDisablesWithinWindow(t *testing.T) {
	rec := &record{crashWindow: make([]time.Time, 0, 3)}
	now := time.Now()

	recordCrash(rec, now, time.Second, 3)
	recordCrash(rec, now.Add(10*time.Millisecond), time.Second, 3)
	decision := recordCrash(rec, now.Add(20*time.Millisecond), time.Second, 3)

	require.Equal(t, disableRespawn, decision)
	require.True(t, rec.respawnDisabled)
}

func TestRecordCrashSlidesWindowForward(t *testing.T) {
	rec := &record{crashWindow: make([]time.Time, 0, 2)}
	now := time.Now()

	recordCrash(rec, now, time.Second, 2)
	recordCrash(rec, now.Add(2*time.Second), time.Second, 2) // outside window of the first

	// The buffer is full but the two recorded crashes are > window apart,
	// so the slot must stay enabled.
	require.False(t, rec.respawnDisabled)

	decision := recordCrash(rec, now.Add(2100*time.Millisecond), time.Second, 2)
	require.Equal(t, disableRespawn, decision)
}

func TestRecordCrashHandlesShrunkMaxCrashes(t *testing.T) {
	rec := &record{crashWindow: make([]time.Time, 0, 5)}
	now := time.Now()

	recordCrash(rec, now, time.Second, 5)

	// maxCrashes changed shape (e.g. a test reusing a record across cases);
	// recordCrash must not index out of range.
	decision := recordCrash(rec, now.Add(time.Millisecond), time.Second, 1)
	require.Equal(t, disableRespawn, decision)
}
