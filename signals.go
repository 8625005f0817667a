package cluster

import (
	"os"
	"os/signal"
	"sync/atomic"

	"golang.org/x/sys/unix"
)

// signalDispatcher is C5: Go's runtime already captures signals onto a
// channel in an async-signal-safe way (that's what os/signal.Notify hands
// you), so the "handler" on our side only ever does the one thing §4.5
// calls for — set an atomic flag — from the goroutine draining that
// channel. The supervisor loop is the only thing that ever reads or clears
// the flags.
type signalDispatcher struct {
	ch chan os.Signal

	shutdownRequested atomic.Bool
	restartRequested  atomic.Bool
	reapPending       atomic.Bool

	stop chan struct{}
}

func newSignalDispatcher() *signalDispatcher {
	return &signalDispatcher{
		ch:   make(chan os.Signal, 16),
		stop: make(chan struct{}),
	}
}

// install starts delivering SIGTERM/SIGINT (shutdown), SIGUSR2 (graceful
// restart) and SIGCHLD (reap) to atomic flags. All other signals are left
// at default disposition (§4.5).
func (d *signalDispatcher) install() {
	signal.Notify(d.ch, unix.SIGTERM, unix.SIGINT, unix.SIGUSR2, unix.SIGCHLD)
	go d.loop()
}

// uninstall stops receiving the signals this dispatcher registered and
// restores their default disposition. Called once, at the end of
// WaitWorkers, so the master's process-wide state is fully torn down
// (§5, "process-wide state lifecycle").
func (d *signalDispatcher) uninstall() {
	signal.Stop(d.ch)
	close(d.stop)
}

func (d *signalDispatcher) loop() {
	for {
		select {
		case sig := <-d.ch:
			switch sig {
			case unix.SIGTERM, unix.SIGINT:
				// Coalesced by design: setting true twice is a no-op, so N
				// deliveries never behave differently from one (§5, §8).
				d.shutdownRequested.Store(true)
			case unix.SIGUSR2:
				d.restartRequested.Store(true)
			case unix.SIGCHLD:
				d.reapPending.Store(true)
			}
		case <-d.stop:
			return
		}
	}
}
