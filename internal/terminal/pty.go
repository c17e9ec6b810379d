// Package terminal owns the shell processes behind terminal sessions. Each
// Process is one shell attached to its own pseudo-terminal.
package terminal

import (
	"errors"
	"fmt"
	"math"
	"os"
	"os/exec"
	"sync"
	"sync/atomic"

	ptylib "github.com/creack/pty"
)

const (
	DefaultCols = 80
	DefaultRows = 30

	readBufSize   = 4096
	outputBacklog = 64
)

// Options describes how to start a shell.
type Options struct {
	Shell string
	Args  []string
	Cols  int
	Rows  int
	Dir   string   // working directory, default home
	Env   []string // default os.Environ()
	Term  string   // TERM when the environment has none
}

// SpawnError is returned when the shell could not be started.
type SpawnError struct {
	Shell string
	Err   error
}

func (e *SpawnError) Error() string {
	return fmt.Sprintf("spawn %s: %v", e.Shell, e.Err)
}

func (e *SpawnError) Unwrap() error { return e.Err }

// Process is a shell running on a pseudo-terminal.
type Process struct {
	ID    string
	Shell string

	cmd  *exec.Cmd
	ptmx *os.File // master side of the pseudo-terminal (read + write)
	out  chan []byte
	done chan struct{}
	stop chan struct{} // closed by Kill

	mu   sync.Mutex
	cols int
	rows int

	exited   atomic.Bool
	killed   atomic.Bool
	killOnce sync.Once
}

// Spawn starts a shell on a new pseudo-terminal sized cols x rows.
func Spawn(opts Options) (*Process, error) {
	opts = withDefaults(opts)
	if err := checkSize(opts.Cols, opts.Rows); err != nil {
		return nil, err
	}

	cmd := exec.Command(opts.Shell, opts.Args...)
	cmd.Dir = opts.Dir
	cmd.Env = opts.Env

	ptmx, err := ptylib.StartWithSize(cmd, &ptylib.Winsize{
		Cols: uint16(opts.Cols),
		Rows: uint16(opts.Rows),
	})
	if err != nil {
		return nil, &SpawnError{Shell: opts.Shell, Err: err}
	}

	p := &Process{
		Shell: opts.Shell,
		cmd:   cmd,
		ptmx:  ptmx,
		out:   make(chan []byte, outputBacklog),
		done:  make(chan struct{}),
		stop:  make(chan struct{}),
		cols:  opts.Cols,
		rows:  opts.Rows,
	}

	go p.readLoop()
	go func() {
		_ = cmd.Wait()
		p.exited.Store(true)
		close(p.done)
	}()

	return p, nil
}

func (p *Process) readLoop() {
	defer close(p.out)
	for {
		buf := make([]byte, readBufSize)
		n, err := p.ptmx.Read(buf)
		if n > 0 {
			select {
			case p.out <- buf[:n]:
			case <-p.stop:
				return
			}
		}
		if err != nil {
			return
		}
	}
}

// Output delivers PTY output chunks in the order the shell produced them.
// The channel is closed once the PTY reaches end of file. Chunk boundaries
// are arbitrary.
func (p *Process) Output() <-chan []byte { return p.out }

// Done is closed when the shell has exited.
func (p *Process) Done() <-chan struct{} { return p.done }

// Pid returns the shell's process id.
func (p *Process) Pid() int {
	if p.cmd.Process == nil {
		return 0
	}
	return p.cmd.Process.Pid
}

// Write sends b to the shell's input. Writing to a shell that has exited or
// been killed is a no-op.
func (p *Process) Write(b []byte) error {
	if p.killed.Load() || p.exited.Load() {
		return nil
	}
	if _, err := p.ptmx.Write(b); err != nil {
		if p.killed.Load() || p.exited.Load() || errors.Is(err, os.ErrClosed) {
			return nil
		}
		return fmt.Errorf("write pty: %w", err)
	}
	return nil
}

// Resize applies a new terminal geometry. Repeating the current size is
// harmless.
func (p *Process) Resize(cols, rows int) error {
	if err := checkSize(cols, rows); err != nil {
		return err
	}
	if p.killed.Load() {
		return nil
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if err := ptylib.Setsize(p.ptmx, &ptylib.Winsize{
		Cols: uint16(cols),
		Rows: uint16(rows),
	}); err != nil {
		if p.killed.Load() || errors.Is(err, os.ErrClosed) {
			return nil
		}
		return fmt.Errorf("resize pty: %w", err)
	}
	p.cols, p.rows = cols, rows
	return nil
}

// checkSize rejects geometries the kernel's 16-bit winsize fields cannot hold.
func checkSize(cols, rows int) error {
	if cols <= 0 || rows <= 0 || cols > math.MaxUint16 || rows > math.MaxUint16 {
		return fmt.Errorf("invalid terminal size %dx%d", cols, rows)
	}
	return nil
}

// Size returns the last geometry applied to the PTY.
func (p *Process) Size() (cols, rows int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.cols, p.rows
}

// Kill terminates the shell and releases the PTY. Safe to call any number of
// times, including after the shell exited on its own.
func (p *Process) Kill() error {
	p.killOnce.Do(func() {
		p.killed.Store(true)
		close(p.stop)
		if p.cmd.Process != nil && !p.exited.Load() {
			terminate(p.cmd.Process, p.done)
		}
		p.ptmx.Close()
	})
	return nil
}
