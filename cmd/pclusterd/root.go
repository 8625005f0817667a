package main

import (
	"fmt"
	"net/http"
	"os"

	"github.com/fatih/color"
	"github.com/fsnotify/fsnotify"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/ecewo/ecewo-cluster"
)

const banner = `
 ____   ____ _           _            ____
|  _ \ / ___| |_   _ ___| |_ ___ _ __|  _ \
| |_) | |   | | | | / __| __/ _ \ '__| | | |
|  __/| |___| | |_| \__ \ ||  __/ |  | |_| |
|_|    \____|_|\__,_|___/\__\___|_|  |____/
`

var (
	configPath string
	cpuFlag    int
	portFlag   int
	respawn    bool
	metricsAdr string
)

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "pclusterd",
		Short:         "demo multi-process supervisor built on package cluster",
		SilenceErrors: true,
		SilenceUsage:  true,
	}
	root.AddCommand(newRunCmd())
	root.AddCommand(newStatsCmd())
	return root
}

func newRunCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "start the cluster and block until every worker exits",
		RunE:  runRun,
	}
	cmd.Flags().StringVar(&configPath, "config", "", "path to a TOML config file")
	cmd.Flags().IntVar(&cpuFlag, "cpus", 0, "worker count override (0 = auto-detect)")
	cmd.Flags().IntVar(&portFlag, "port", 0, "listening port override")
	cmd.Flags().BoolVar(&respawn, "respawn", true, "respawn crashed workers")
	cmd.Flags().StringVar(&metricsAdr, "metrics-addr", "", "address to serve /metrics on (master only, empty disables)")
	return cmd
}

func newStatsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "print current cluster status (only useful when run against a live master via IPC, not implemented in this demo)",
		RunE: func(cmd *cobra.Command, args []string) error {
			fmt.Println("stats: this demo binary only reports stats from within the master process itself; see `run`'s log output")
			return nil
		},
	}
}

func runRun(cmd *cobra.Command, args []string) error {
	cfg := cluster.Config{Respawn: respawn}
	if configPath != "" {
		loaded, err := cluster.LoadConfig(configPath)
		if err != nil {
			return err
		}
		cfg = loaded
	}
	if cpuFlag != 0 {
		cfg.CPUs = cpuFlag
	}
	if portFlag != 0 {
		cfg.Port = portFlag
	}
	cfg.Respawn = respawn

	cfg.OnStart = func(id cluster.WorkerID, incarnation string) {
		color.New(color.FgGreen).Fprintf(os.Stderr, "[pclusterd] worker %d active (incarnation %s)\n", id, incarnation)
	}
	cfg.OnExit = func(id cluster.WorkerID, incarnation string, exitStatus int, isCrash bool) {
		if isCrash {
			color.New(color.FgRed).Fprintf(os.Stderr, "[pclusterd] worker %d crashed (exit %d)\n", id, exitStatus)
		} else {
			color.New(color.FgYellow).Fprintf(os.Stderr, "[pclusterd] worker %d exited (exit %d)\n", id, exitStatus)
		}
	}

	isMaster, err := cluster.Init(cfg)
	if err != nil {
		return err
	}

	if !isMaster {
		return runWorker()
	}

	color.New(color.FgCyan, color.Bold).Fprintln(os.Stderr, banner)
	fmt.Fprintf(os.Stderr, "pclusterd master pid=%d workers=%d port=%d\n", os.Getpid(), cluster.WorkerCount(), cfg.Port)

	if metricsAdr != "" {
		if err := cluster.RegisterMetrics(prometheus.DefaultRegisterer); err != nil {
			return fmt.Errorf("register metrics: %w", err)
		}
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.Handler())
		go func() {
			if err := http.ListenAndServe(metricsAdr, mux); err != nil {
				fmt.Fprintf(os.Stderr, "[pclusterd] metrics server: %v\n", err)
			}
		}()
	}

	if configPath != "" {
		go watchConfig(configPath)
	}

	return cluster.WaitWorkers()
}

// watchConfig triggers a rolling restart whenever the config file on disk
// changes, so operators can roll out a new worker binary or config value
// without taking the whole cluster down.
func watchConfig(path string) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return
	}
	defer w.Close()
	if err := w.Add(path); err != nil {
		return
	}
	for {
		select {
		case ev, ok := <-w.Events:
			if !ok {
				return
			}
			if ev.Op&(fsnotify.Write|fsnotify.Create) != 0 {
				fmt.Fprintln(os.Stderr, "[pclusterd] config changed, requesting rolling restart")
				_ = cluster.GracefulRestart()
			}
		case _, ok := <-w.Errors:
			if !ok {
				return
			}
		}
	}
}
