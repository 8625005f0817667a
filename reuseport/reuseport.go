// Package reuseport listens on a TCP port with SO_REUSEPORT set, so that
// every worker process in a cluster can bind the same port independently
// and let the kernel load-balance accepted connections across them (§3
// "workers share one listening port").
package reuseport

import (
	"context"
	"net"
	"syscall"

	"golang.org/x/sys/unix"
)

// Listen opens a TCP listener on addr with SO_REUSEPORT enabled before
// bind. Every worker process calling Listen on the same addr gets its own
// kernel-level accept queue; the kernel distributes incoming connections
// across all of them.
func Listen(network, addr string) (net.Listener, error) {
	lc := net.ListenConfig{
		Control: func(_, _ string, c syscall.RawConn) error {
			var sockErr error
			err := c.Control(func(fd uintptr) {
				sockErr = unix.SetsockoptInt(int(fd), unix.SOL_SOCKET, unix.SO_REUSEPORT, 1)
			})
			if err != nil {
				return err
			}
			return sockErr
		},
	}
	return lc.Listen(context.Background(), network, addr)
}
