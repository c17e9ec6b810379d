package portfind

import (
	"net"
	"os"
	"path/filepath"
	"testing"
)

func TestListen_SkipsBusyPort(t *testing.T) {
	busy, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	defer busy.Close()
	base := busy.Addr().(*net.TCPAddr).Port

	ln, port, err := Listen("127.0.0.1", base, 20)
	if err != nil {
		t.Fatalf("Listen() error: %v", err)
	}
	defer ln.Close()

	if port <= base {
		t.Errorf("expected a port above busy %d, got %d", base, port)
	}
	if got := ln.Addr().(*net.TCPAddr).Port; got != port {
		t.Errorf("listener on %d, reported %d", got, port)
	}
}

func TestListen_FailsWhenExhausted(t *testing.T) {
	busy, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	defer busy.Close()
	base := busy.Addr().(*net.TCPAddr).Port

	if _, _, err := Listen("127.0.0.1", base, 1); err == nil {
		t.Fatal("expected error when the only candidate port is busy")
	}
}

func TestWritePortFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tmp", ".port")
	if err := WritePortFile(path, 8201); err != nil {
		t.Fatalf("WritePortFile() error: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile() error: %v", err)
	}
	if string(data) != "8201" {
		t.Errorf("expected 8201, got %q", data)
	}
}
