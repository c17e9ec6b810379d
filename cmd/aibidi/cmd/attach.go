package cmd

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/aibidi/aibidi/pkg/bidi"
	"github.com/aibidi/aibidi/pkg/client"
	"github.com/spf13/cobra"
	"golang.org/x/term"
)

// toggleKey is the escape sequence xterm-compatible terminals send for F9.
var toggleKey = []byte("\x1b[20~")

var attachRTL bool

var attachCmd = &cobra.Command{
	Use:   "attach",
	Short: "Open a terminal session from this console",
	Long: `Attach connects the local console to a new shell on the server. Press F9
to flip the left and right arrow keys for right-to-left text.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGTERM)
		defer stop()

		dir := bidi.LTR
		if attachRTL {
			dir = bidi.RTL
		}
		cols, rows := termSize()

		c := client.NewClient(baseURL, accessKey)
		t, err := c.Attach(ctx, client.AttachOptions{Direction: dir, Cols: cols, Rows: rows})
		if err != nil {
			return err
		}
		defer t.Close()

		restore, err := makeStdinRaw()
		if err != nil {
			return fmt.Errorf("raw mode: %w", err)
		}
		defer restore()

		stopResize := watchResize(func() {
			cols, rows := termSize()
			t.Resize(cols, rows)
		})
		defer stopResize()

		inputErr := make(chan error, 1)
		go func() {
			inputErr <- pumpInput(os.Stdin, t, os.Stderr)
		}()

		for {
			select {
			case data, ok := <-t.Output():
				if !ok {
					return t.Err()
				}
				os.Stdout.Write(data)
			case err := <-inputErr:
				return err
			case <-ctx.Done():
				return nil
			}
		}
	},
}

func init() {
	addClientFlags(attachCmd)
	attachCmd.Flags().BoolVar(&attachRTL, "rtl", false, "start with right-to-left arrow keys")
	rootCmd.AddCommand(attachCmd)
}

// inputSink is the part of a terminal session the input pump needs.
type inputSink interface {
	SendInput(p []byte) error
	ToggleDirection() bidi.Direction
}

// toggleFlushDelay is how long a partial toggle sequence is held back before
// it is sent as ordinary input, so a lone ESC still reaches the shell.
var toggleFlushDelay = 50 * time.Millisecond

// pumpInput forwards r to the session until EOF. F9 is consumed and toggles
// the arrow-key direction; the new direction is reported on status. A read
// that ends partway through F9 is completed by the next read.
func pumpInput(r io.Reader, sink inputSink, status io.Writer) error {
	chunks := make(chan []byte)
	readErr := make(chan error, 1)
	done := make(chan struct{})
	defer close(done)

	go func() {
		for {
			buf := make([]byte, 4096)
			n, err := r.Read(buf)
			if n > 0 {
				select {
				case chunks <- buf[:n]:
				case <-done:
					return
				}
			}
			if err != nil {
				readErr <- err
				return
			}
		}
	}()

	var pending []byte
	var flush <-chan time.Time
	for {
		select {
		case chunk := <-chunks:
			var err error
			if pending, err = feedInput(append(pending, chunk...), sink, status); err != nil {
				return err
			}
			flush = nil
			if len(pending) > 0 {
				flush = time.After(toggleFlushDelay)
			}
		case <-flush:
			flush = nil
			if err := sink.SendInput(pending); err != nil {
				return err
			}
			pending = nil
		case err := <-readErr:
			// chunks is unbuffered, so every chunk read before err is already fed.
			if len(pending) > 0 {
				if serr := sink.SendInput(pending); serr != nil {
					return serr
				}
			}
			if err == io.EOF {
				return nil
			}
			return err
		}
	}
}

// feedInput sends data to the session, handling complete toggle sequences,
// and returns a trailing prefix of toggleKey that it held back.
func feedInput(data []byte, sink inputSink, status io.Writer) ([]byte, error) {
	for {
		i := bytes.Index(data, toggleKey)
		if i < 0 {
			break
		}
		if i > 0 {
			if err := sink.SendInput(data[:i]); err != nil {
				return nil, err
			}
		}
		d := sink.ToggleDirection()
		fmt.Fprintf(status, "\r\n[aibidi] arrow keys: %s\r\n", d)
		data = data[i+len(toggleKey):]
	}

	keep := partialToggle(data)
	if send := data[:len(data)-keep]; len(send) > 0 {
		if err := sink.SendInput(send); err != nil {
			return nil, err
		}
	}
	if keep == 0 {
		return nil, nil
	}
	return bytes.Clone(data[len(data)-keep:]), nil
}

// partialToggle returns the length of the longest suffix of b that is a
// proper prefix of toggleKey.
func partialToggle(b []byte) int {
	k := len(toggleKey) - 1
	if len(b) < k {
		k = len(b)
	}
	for ; k > 0; k-- {
		if bytes.Equal(b[len(b)-k:], toggleKey[:k]) {
			return k
		}
	}
	return 0
}

func makeStdinRaw() (func(), error) {
	fd := int(os.Stdin.Fd())
	if !term.IsTerminal(fd) {
		return func() {}, nil
	}
	oldState, err := term.MakeRaw(fd)
	if err != nil {
		return nil, err
	}
	return func() { _ = term.Restore(fd, oldState) }, nil
}

func termSize() (cols, rows int) {
	fd := int(os.Stdout.Fd())
	if !term.IsTerminal(fd) {
		return 0, 0
	}
	c, r, err := term.GetSize(fd)
	if err != nil || c <= 0 || r <= 0 {
		return 0, 0
	}
	return c, r
}

