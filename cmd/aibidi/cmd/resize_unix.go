//go:build !windows

package cmd

import (
	"os"
	"os/signal"

	"golang.org/x/sys/unix"
)

// watchResize calls fn whenever the controlling terminal changes size.
func watchResize(fn func()) (stop func()) {
	sigCh := make(chan os.Signal, 4)
	signal.Notify(sigCh, unix.SIGWINCH)
	go func() {
		for range sigCh {
			fn()
		}
	}()
	return func() {
		signal.Stop(sigCh)
		close(sigCh)
	}
}
