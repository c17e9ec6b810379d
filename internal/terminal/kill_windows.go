//go:build windows

package terminal

import "os"

func terminate(proc *os.Process, _ <-chan struct{}) {
	_ = proc.Kill()
}
