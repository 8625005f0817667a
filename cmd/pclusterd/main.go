// Command pclusterd is a small demo supervisor daemon built on top of
// package cluster: it loads a TOML config, spawns a pool of workers that
// all Listen on the same port via package reuseport, and reports status
// on the master's stderr as workers start, crash, and get respawned.
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
