package cluster

import (
	"fmt"
	"time"

	"github.com/BurntSushi/toml"
)

// Config is ClusterConfig from §3. It is frozen (copied) by Init; mutating
// a Config after passing it to Init has no effect.
type Config struct {
	// CPUs is the worker count: 1..=MaxWorkers, or 0 to auto-detect logical
	// CPUs (capped at MaxWorkers).
	CPUs int `toml:"cpus"`

	// Port is the port every worker inherits and is expected to bind with
	// SO_REUSEPORT-style sharing (see package reuseport). Must be nonzero.
	Port int `toml:"port"`

	// Respawn enables automatic respawn of crashed workers.
	Respawn bool `toml:"respawn"`

	// ShutdownTimeout bounds how long workers are given to exit after a
	// shutdown begins before SIGKILL. A worker stopped by a rolling restart
	// has no such deadline. Defaults to 15s.
	ShutdownTimeout time.Duration `toml:"shutdown_timeout"`

	// WorkerStartupDelay is how long a freshly spawned worker must survive
	// before it is considered Active, and the pacing delay between initial
	// spawns at boot. Defaults to 100ms.
	WorkerStartupDelay time.Duration `toml:"worker_startup_delay"`

	// WorkerRespawnDelay is the pause before respawning a crashed worker.
	// Defaults to 100ms.
	WorkerRespawnDelay time.Duration `toml:"worker_respawn_delay"`

	// RespawnWindow is the sliding window the crash-rate limiter measures
	// against. Defaults to 5s.
	RespawnWindow time.Duration `toml:"respawn_window"`

	// RespawnMaxCrashes is the ring buffer size / crash threshold: this
	// many crashes inside RespawnWindow disables the slot. Defaults to 3.
	RespawnMaxCrashes int `toml:"respawn_max_crashes"`

	// OnStart, if set, is invoked from the supervisor loop (never from
	// signal context) after a worker reaches Active.
	OnStart func(id WorkerID, incarnation string) `toml:"-"`

	// OnExit, if set, is invoked from the supervisor loop after a worker's
	// incarnation has been reaped.
	OnExit func(id WorkerID, incarnation string, exitStatus int, isCrash bool) `toml:"-"`
}

const (
	defaultShutdownTimeout    = 15 * time.Second
	defaultWorkerStartupDelay = 100 * time.Millisecond
	defaultWorkerRespawnDelay = 100 * time.Millisecond
	defaultRespawnWindow      = 5 * time.Second
	defaultRespawnMaxCrashes  = 3
)

// withDefaults returns a copy of c with zero-valued optional fields filled
// in from the documented defaults (§3).
func (c Config) withDefaults() Config {
	if c.ShutdownTimeout == 0 {
		c.ShutdownTimeout = defaultShutdownTimeout
	}
	if c.WorkerStartupDelay == 0 {
		c.WorkerStartupDelay = defaultWorkerStartupDelay
	}
	if c.WorkerRespawnDelay == 0 {
		c.WorkerRespawnDelay = defaultWorkerRespawnDelay
	}
	if c.RespawnWindow == 0 {
		c.RespawnWindow = defaultRespawnWindow
	}
	if c.RespawnMaxCrashes == 0 {
		c.RespawnMaxCrashes = defaultRespawnMaxCrashes
	}
	return c
}

// validate enforces the ConfigError rules in §7: invalid port, invalid cpu
// count. It must not be called with the zero-CPUs auto-detect value still
// unresolved — callers resolve CPUs before validating.
func (c Config) validate() error {
	if c.Port <= 0 || c.Port > 65535 {
		return &ConfigError{Reason: fmt.Sprintf("port %d out of range", c.Port)}
	}
	if c.CPUs < 1 || c.CPUs > MaxWorkers {
		return &ConfigError{Reason: fmt.Sprintf("cpus %d out of range [1,%d]", c.CPUs, MaxWorkers)}
	}
	if c.RespawnMaxCrashes < 1 {
		return &ConfigError{Reason: "respawn_max_crashes must be >= 1"}
	}
	return nil
}

// LoadConfig reads a TOML configuration file into a Config. Callbacks
// (OnStart/OnExit) are not representable in TOML and must be set on the
// returned value by the caller before passing it to Init.
func LoadConfig(path string) (Config, error) {
	var c Config
	if _, err := toml.DecodeFile(path, &c); err != nil {
		return Config{}, fmt.Errorf("cluster: load config %s: %w", path, err)
	}
	return c, nil
}
