//go:build !windows

package terminal

import (
	"errors"
	"testing"
	"time"
)

func TestManager_Spawn(t *testing.T) {
	m := NewManager(Options{Shell: "/bin/sh", Dir: t.TempDir()})
	defer m.CloseAll()

	proc, err := m.Spawn(80, 30)
	if err != nil {
		t.Fatalf("Spawn() error: %v", err)
	}
	if len(proc.ID) != 8 {
		t.Errorf("expected 8 char ID, got %q", proc.ID)
	}

	if m.Count() != 1 {
		t.Errorf("expected 1 process, got %d", m.Count())
	}
}

func TestManager_Kill(t *testing.T) {
	m := NewManager(Options{Shell: "/bin/sh", Dir: t.TempDir()})
	defer m.CloseAll()

	proc, err := m.Spawn(80, 30)
	if err != nil {
		t.Fatalf("Spawn() error: %v", err)
	}
	if err := m.Kill(proc.ID); err != nil {
		t.Fatalf("Kill() error: %v", err)
	}
	if m.Count() != 0 {
		t.Errorf("expected 0 processes after kill, got %d", m.Count())
	}
	select {
	case <-proc.Done():
	case <-time.After(5 * time.Second):
		t.Fatal("shell still running after Kill")
	}
	if err := m.Kill(proc.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound killing unknown terminal, got %v", err)
	}
}

func TestManager_UnregistersOnExit(t *testing.T) {
	m := NewManager(Options{Shell: "/bin/sh", Dir: t.TempDir()})
	defer m.CloseAll()

	proc, err := m.Spawn(80, 30)
	if err != nil {
		t.Fatalf("Spawn() error: %v", err)
	}
	proc.Write([]byte("exit\n"))

	deadline := time.Now().Add(5 * time.Second)
	for m.Count() != 0 {
		if time.Now().After(deadline) {
			t.Fatal("process still registered after exit")
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestManager_CloseAll(t *testing.T) {
	m := NewManager(Options{Shell: "/bin/sh", Dir: t.TempDir()})

	var procs []*Process
	for i := 0; i < 3; i++ {
		proc, err := m.Spawn(80, 30)
		if err != nil {
			t.Fatalf("Spawn() error: %v", err)
		}
		procs = append(procs, proc)
	}

	m.CloseAll()
	if m.Count() != 0 {
		t.Errorf("expected 0 processes, got %d", m.Count())
	}
	for _, proc := range procs {
		select {
		case <-proc.Done():
		case <-time.After(5 * time.Second):
			t.Fatalf("process %s survived CloseAll", proc.ID)
		}
	}
}
