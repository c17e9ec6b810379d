//go:build !windows

package terminal

import (
	"os"
	"time"

	"golang.org/x/sys/unix"
)

const killGrace = 2 * time.Second

// terminate hangs up the shell's process group, the same signal a closing
// terminal delivers, and escalates to SIGKILL if the group outlives killGrace.
// pty.Start makes the shell a session leader, so its pid is also the pgid.
func terminate(proc *os.Process, done <-chan struct{}) {
	pgid := proc.Pid
	if err := unix.Kill(-pgid, unix.SIGHUP); err != nil {
		_ = proc.Signal(unix.SIGHUP)
	}
	go func() {
		select {
		case <-done:
		case <-time.After(killGrace):
			_ = unix.Kill(-pgid, unix.SIGKILL)
			_ = proc.Kill()
		}
	}()
}
