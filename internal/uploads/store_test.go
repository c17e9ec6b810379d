package uploads

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestStore_SaveNamesAndContent(t *testing.T) {
	dir := t.TempDir()
	s, err := NewStore(dir, time.Minute)
	if err != nil {
		t.Fatalf("NewStore() error: %v", err)
	}
	defer s.Close()
	s.now = func() time.Time { return time.UnixMilli(1700000000123) }

	path, err := s.Save("my report.txt", strings.NewReader("hello"))
	if err != nil {
		t.Fatalf("Save() error: %v", err)
	}

	want := filepath.Join(s.Dir(), "1700000000123-my report.txt")
	if path != want {
		t.Errorf("expected %s, got %s", want, path)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile() error: %v", err)
	}
	if string(data) != "hello" {
		t.Errorf("expected content hello, got %q", data)
	}
	if s.Pending() != 1 {
		t.Errorf("expected 1 pending deletion, got %d", s.Pending())
	}
}

func TestStore_StripsDirectories(t *testing.T) {
	s, err := NewStore(t.TempDir(), time.Minute)
	if err != nil {
		t.Fatalf("NewStore() error: %v", err)
	}
	defer s.Close()

	for _, name := range []string{"../../etc/passwd", `C:\Users\x\evil.txt`} {
		path, err := s.Save(name, strings.NewReader("x"))
		if err != nil {
			t.Fatalf("Save(%q) error: %v", name, err)
		}
		if filepath.Dir(path) != s.Dir() {
			t.Errorf("Save(%q) escaped upload dir: %s", name, path)
		}
	}
}

func TestStore_RejectsEmptyName(t *testing.T) {
	s, err := NewStore(t.TempDir(), time.Minute)
	if err != nil {
		t.Fatalf("NewStore() error: %v", err)
	}
	defer s.Close()

	for _, name := range []string{"", ".", ".."} {
		if _, err := s.Save(name, strings.NewReader("x")); err == nil {
			t.Errorf("expected error for name %q", name)
		}
	}
}

func TestStore_DeletesAfterTTL(t *testing.T) {
	s, err := NewStore(t.TempDir(), 30*time.Millisecond)
	if err != nil {
		t.Fatalf("NewStore() error: %v", err)
	}
	defer s.Close()

	path, err := s.Save("temp.bin", strings.NewReader("data"))
	if err != nil {
		t.Fatalf("Save() error: %v", err)
	}

	deadline := time.Now().Add(2 * time.Second)
	for {
		if _, err := os.Stat(path); os.IsNotExist(err) {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("upload not deleted after TTL")
		}
		time.Sleep(10 * time.Millisecond)
	}
	if s.Pending() != 0 {
		t.Errorf("expected no pending deletions, got %d", s.Pending())
	}
}

func TestStore_CloseCancelsDeletion(t *testing.T) {
	s, err := NewStore(t.TempDir(), 30*time.Millisecond)
	if err != nil {
		t.Fatalf("NewStore() error: %v", err)
	}

	path, err := s.Save("keep.txt", strings.NewReader("data"))
	if err != nil {
		t.Fatalf("Save() error: %v", err)
	}
	s.Close()

	time.Sleep(100 * time.Millisecond)
	if _, err := os.Stat(path); err != nil {
		t.Errorf("expected file kept after Close, got %v", err)
	}
}

func TestPurge(t *testing.T) {
	root := filepath.Join(t.TempDir(), "tmp")
	if err := os.MkdirAll(filepath.Join(root, "uploads"), 0755); err != nil {
		t.Fatal(err)
	}
	os.WriteFile(filepath.Join(root, ".port"), []byte("8200"), 0644)

	if err := Purge(root); err != nil {
		t.Fatalf("Purge() error: %v", err)
	}
	if _, err := os.Stat(root); !os.IsNotExist(err) {
		t.Errorf("expected %s removed", root)
	}
	if err := Purge(root); err != nil {
		t.Errorf("Purge of missing dir: %v", err)
	}
}
