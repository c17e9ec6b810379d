//go:build !windows

package terminal

import (
	"errors"
	"os/exec"
	"strings"
	"testing"
	"time"
)

func spawnSh(t *testing.T) *Process {
	t.Helper()
	proc, err := Spawn(Options{Shell: "/bin/sh", Dir: t.TempDir(), Term: "xterm-256color"})
	if err != nil {
		t.Fatalf("Spawn() error: %v", err)
	}
	t.Cleanup(func() { proc.Kill() })
	return proc
}

// readUntil collects output until it contains want or the timeout expires.
func readUntil(t *testing.T, proc *Process, want string, timeout time.Duration) string {
	t.Helper()
	var sb strings.Builder
	deadline := time.After(timeout)
	for {
		select {
		case chunk, ok := <-proc.Output():
			if !ok {
				t.Fatalf("output closed before %q; got %q", want, sb.String())
			}
			sb.Write(chunk)
			if strings.Contains(sb.String(), want) {
				return sb.String()
			}
		case <-deadline:
			t.Fatalf("timed out waiting for %q; got %q", want, sb.String())
		}
	}
}

func TestSpawnEchoesInput(t *testing.T) {
	proc := spawnSh(t)

	if err := proc.Write([]byte("echo relay-$((20+22))\n")); err != nil {
		t.Fatalf("Write() error: %v", err)
	}
	readUntil(t, proc, "relay-42", 5*time.Second)
}

func TestSpawnMissingShell(t *testing.T) {
	_, err := Spawn(Options{Shell: "/nonexistent/shell"})
	if err == nil {
		t.Fatal("expected error for missing shell")
	}
	var spawnErr *SpawnError
	if !errors.As(err, &spawnErr) {
		t.Fatalf("expected *SpawnError, got %T", err)
	}
	if spawnErr.Shell != "/nonexistent/shell" {
		t.Errorf("expected shell in error, got %q", spawnErr.Shell)
	}
}

func TestResize(t *testing.T) {
	if _, err := exec.LookPath("stty"); err != nil {
		t.Skip("stty not available")
	}
	proc := spawnSh(t)

	if err := proc.Resize(120, 40); err != nil {
		t.Fatalf("Resize() error: %v", err)
	}
	if err := proc.Resize(120, 40); err != nil {
		t.Fatalf("second Resize() error: %v", err)
	}
	cols, rows := proc.Size()
	if cols != 120 || rows != 40 {
		t.Errorf("expected 120x40, got %dx%d", cols, rows)
	}

	proc.Write([]byte("stty size\n"))
	readUntil(t, proc, "40 120", 5*time.Second)
}

func TestResizeRejectsInvalid(t *testing.T) {
	proc := spawnSh(t)
	if err := proc.Resize(0, 10); err == nil {
		t.Error("expected error for zero columns")
	}
	if err := proc.Resize(70000, 10); err == nil {
		t.Error("expected error for columns beyond 65535")
	}
	if err := proc.Resize(80, 1<<16+24); err == nil {
		t.Error("expected error for rows that would wrap to 24")
	}
	cols, rows := proc.Size()
	if cols != DefaultCols || rows != DefaultRows {
		t.Errorf("expected default size, got %dx%d", cols, rows)
	}
}

func TestSpawnRejectsOversizedTerminal(t *testing.T) {
	proc, err := Spawn(Options{Shell: "/bin/sh", Dir: t.TempDir(), Cols: 70000, Rows: 24})
	if err == nil {
		proc.Kill()
		t.Fatal("expected error for columns beyond 65535")
	}
	if !strings.Contains(err.Error(), "70000x24") {
		t.Errorf("error = %v", err)
	}
}

func TestKillIdempotent(t *testing.T) {
	proc := spawnSh(t)

	for i := 0; i < 3; i++ {
		if err := proc.Kill(); err != nil {
			t.Fatalf("Kill() #%d error: %v", i, err)
		}
	}

	select {
	case <-proc.Done():
	case <-time.After(5 * time.Second):
		t.Fatal("process did not exit after Kill")
	}

	if err := proc.Write([]byte("echo after\n")); err != nil {
		t.Errorf("Write after kill should be a no-op, got %v", err)
	}
	if err := proc.Resize(100, 20); err != nil {
		t.Errorf("Resize after kill should be a no-op, got %v", err)
	}
}

func TestWriteAfterNaturalExit(t *testing.T) {
	proc := spawnSh(t)
	proc.Write([]byte("exit 0\n"))

	select {
	case <-proc.Done():
	case <-time.After(5 * time.Second):
		t.Fatal("shell did not exit")
	}

	if err := proc.Write([]byte("ignored\n")); err != nil {
		t.Errorf("expected silent no-op, got %v", err)
	}
	if err := proc.Kill(); err != nil {
		t.Errorf("Kill after exit: %v", err)
	}
}

func TestWithDefaults(t *testing.T) {
	opts := withDefaults(Options{Env: []string{"PATH=/bin"}, Term: "xterm-256color"})
	if opts.Cols != DefaultCols || opts.Rows != DefaultRows {
		t.Errorf("expected %dx%d, got %dx%d", DefaultCols, DefaultRows, opts.Cols, opts.Rows)
	}
	if opts.Shell == "" {
		t.Error("expected default shell")
	}
	if !hasEnv(opts.Env, "TERM") {
		t.Error("expected TERM to be added")
	}

	opts = withDefaults(Options{Env: []string{"TERM=dumb"}, Term: "xterm-256color"})
	if len(opts.Env) != 1 {
		t.Errorf("existing TERM should be kept, got %v", opts.Env)
	}
}
