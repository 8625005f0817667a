package cluster

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"golang.org/x/sys/unix"
)

func TestStartIncarnationSetsStarting(t *testing.T) {
	rec := &record{}
	now := time.Now()
	startIncarnation(rec, 1234, 9090, now)

	require.Equal(t, 1234, rec.pid)
	require.Equal(t, 9090, rec.port)
	require.Equal(t, Starting, rec.status)
	require.Equal(t, now, rec.startTime)
	require.NotEmpty(t, rec.incarnation)
	require.True(t, rec.respawnAt.IsZero())
}

func TestReadyForActive(t *testing.T) {
	now := time.Now()
	rec := &record{status: Starting, startTime: now.Add(-200 * time.Millisecond)}

	require.True(t, readyForActive(rec, now, 100*time.Millisecond))
	require.False(t, readyForActive(rec, now, time.Second))

	rec.status = Active
	require.False(t, readyForActive(rec, now, 100*time.Millisecond))
}

func TestIsCrashDuringStoppingGracefulExit(t *testing.T) {
	require.False(t, isCrash(Stopping, reapResult{exitStatus: 0}))
}

func TestIsCrashDuringStoppingBySIGTERM(t *testing.T) {
	require.False(t, isCrash(Stopping, reapResult{bySignal: true, signal: unix.SIGTERM}))
}

func TestIsCrashDuringStoppingOtherSignalIsCrash(t *testing.T) {
	require.True(t, isCrash(Stopping, reapResult{bySignal: true, signal: unix.SIGSEGV}))
}

func TestIsCrashDuringStoppingNonzeroExitIsCrash(t *testing.T) {
	require.True(t, isCrash(Stopping, reapResult{exitStatus: 1}))
}

func TestIsCrashOutsideStopping(t *testing.T) {
	require.True(t, isCrash(Active, reapResult{bySignal: true, signal: unix.SIGSEGV}))
	require.True(t, isCrash(Active, reapResult{exitStatus: 1}))
	require.False(t, isCrash(Active, reapResult{exitStatus: 0}))
	require.True(t, isCrash(Starting, reapResult{exitStatus: 2}))
}

func TestMarkDisabledClearsRespawn(t *testing.T) {
	rec := &record{status: Crashed, respawnAt: time.Now()}
	markDisabled(rec)

	require.Equal(t, Disabled, rec.status)
	require.True(t, rec.respawnDisabled)
	require.True(t, rec.respawnAt.IsZero())
}

func TestMarkEmptyLeavesSlotReclaimable(t *testing.T) {
	rec := &record{status: Crashed, pid: 42, respawnAt: time.Now()}
	markEmpty(rec)

	require.Equal(t, Crashed, rec.status)
	require.Zero(t, rec.pid)
	require.True(t, rec.respawnAt.IsZero())
	require.False(t, rec.status.live())
}
