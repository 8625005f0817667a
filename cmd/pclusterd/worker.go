package main

import (
	"fmt"
	"net/http"
	"os"

	"github.com/ecewo/ecewo-cluster"
	"github.com/ecewo/ecewo-cluster/reuseport"
)

// runWorker is what every re-exec'd worker process runs: it binds the
// inherited port via SO_REUSEPORT and serves a trivial HTTP handler that
// reports its own worker id, so a rolling restart or a crash-respawn is
// visible to a client polling the cluster from outside.
func runWorker() error {
	id := cluster.ThisWorkerID()
	port := cluster.GetPort()

	ln, err := reuseport.Listen("tcp", fmt.Sprintf(":%d", port))
	if err != nil {
		return fmt.Errorf("worker %d: listen: %w", id, err)
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintf(w, "served by worker %d (pid %d)\n", id, os.Getpid())
	})

	return http.Serve(ln, mux)
}
