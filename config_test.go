package cluster

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestConfigWithDefaults(t *testing.T) {
	c := Config{Port: 8080}.withDefaults()

	require.Equal(t, defaultShutdownTimeout, c.ShutdownTimeout)
	require.Equal(t, defaultWorkerStartupDelay, c.WorkerStartupDelay)
	require.Equal(t, defaultWorkerRespawnDelay, c.WorkerRespawnDelay)
	require.Equal(t, defaultRespawnWindow, c.RespawnWindow)
	require.Equal(t, defaultRespawnMaxCrashes, c.RespawnMaxCrashes)
}

func TestConfigWithDefaultsPreservesExplicitValues(t *testing.T) {
	c := Config{
		Port:              8080,
		ShutdownTimeout:   3 * time.Second,
		RespawnMaxCrashes: 7,
	}.withDefaults()

	require.Equal(t, 3*time.Second, c.ShutdownTimeout)
	require.Equal(t, 7, c.RespawnMaxCrashes)
}

func TestConfigValidateRejectsBadPort(t *testing.T) {
	c := Config{Port: 0, CPUs: 2, RespawnMaxCrashes: 3}
	err := c.validate()
	require.ErrorIs(t, err, ErrConfig)
}

func TestConfigValidateRejectsBadCPUs(t *testing.T) {
	c := Config{Port: 8080, CPUs: 0, RespawnMaxCrashes: 3}
	err := c.validate()
	require.ErrorIs(t, err, ErrConfig)

	c.CPUs = MaxWorkers + 1
	require.ErrorIs(t, c.validate(), ErrConfig)
}

func TestConfigValidateAccepts(t *testing.T) {
	c := Config{Port: 8080, CPUs: 4, RespawnMaxCrashes: 3}
	require.NoError(t, c.validate())
}

func TestLoadConfigFromTOML(t *testing.T) {
	dir := t.TempDir()
	path := dir + "/cluster.toml"
	require.NoError(t, os.WriteFile(path, []byte(`
cpus = 4
port = 9090
respawn = true
respawn_max_crashes = 5
`), 0o644))

	c, err := LoadConfig(path)
	require.NoError(t, err)
	require.Equal(t, 4, c.CPUs)
	require.Equal(t, 9090, c.Port)
	require.True(t, c.Respawn)
	require.Equal(t, 5, c.RespawnMaxCrashes)
}
