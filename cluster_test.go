package cluster

import (
	"os"
	"os/signal"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"golang.org/x/sys/unix"
)

// TestMain intercepts re-exec'd worker processes before the test runner's
// own flag parsing ever sees os.Args[1:] (which, for a worker spawned
// during `go test`, is a copy of the test binary's own flags) — the same
// trick net/http and os/exec's own test suites use via a
// GO_WANT_HELPER_PROCESS-style environment sentinel, adapted here to the
// CLUSTER_WORKER_ID marker Init already recognizes.
func TestMain(m *testing.M) {
	if os.Getenv(envWorkerID) != "" {
		os.Exit(testWorkerMain())
	}
	os.Exit(m.Run())
}

// testWorkerMain is what a re-exec'd worker process runs in place of the
// normal test suite. CLUSTER_TEST_BEHAVIOR selects its scripted behavior.
func testWorkerMain() int {
	if _, err := Init(Config{}); err != nil {
		return 9
	}

	switch os.Getenv("CLUSTER_TEST_BEHAVIOR") {
	case "crash":
		return 1
	default: // "sleep-graceful"
		term := make(chan os.Signal, 1)
		signal.Notify(term, unix.SIGTERM)
		<-term
		return 0
	}
}

func pollUntil(t *testing.T, timeout time.Duration, fn func() bool) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if fn() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	require.FailNow(t, "condition not met within timeout")
}

// TestIntegrationLifecycle drives one real cluster through boot, active,
// a rolling restart, and graceful shutdown. cluster.Init's master/worker
// state is process-global, so this is the only test in the package
// allowed to call it — every other scenario (crash-rate limiting, exit
// classification, config validation) is exercised at the unit level
// instead, against the same decision functions this loop calls.
func TestIntegrationLifecycle(t *testing.T) {
	if testing.Short() {
		t.Skip("spawns real subprocesses")
	}

	os.Setenv("CLUSTER_TEST_BEHAVIOR", "sleep-graceful")
	defer os.Unsetenv("CLUSTER_TEST_BEHAVIOR")

	cfg := Config{
		CPUs:               2,
		Port:               19999,
		Respawn:            true,
		WorkerStartupDelay: 20 * time.Millisecond,
		WorkerRespawnDelay: 20 * time.Millisecond,
		ShutdownTimeout:    2 * time.Second,
	}

	isMaster, err := Init(cfg)
	require.NoError(t, err)
	require.True(t, isMaster)
	require.True(t, IsMaster())
	require.Equal(t, 2, WorkerCount())

	done := make(chan error, 1)
	go func() { done <- WaitWorkers() }()

	pollUntil(t, 2*time.Second, func() bool {
		workers, err := GetAllWorkers()
		if err != nil {
			return false
		}
		for _, w := range workers {
			if w.Status != Active {
				return false
			}
		}
		return true
	})

	require.NoError(t, GracefulRestart())
	pollUntil(t, 3*time.Second, func() bool {
		st, err := GetStats()
		return err == nil && st.TotalRestarts >= 1
	})

	stats, err := GetStats()
	require.NoError(t, err)
	require.Equal(t, 2, stats.Active)

	require.NoError(t, unix.Kill(os.Getpid(), unix.SIGTERM))

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		require.FailNow(t, "WaitWorkers did not return after shutdown")
	}
}
