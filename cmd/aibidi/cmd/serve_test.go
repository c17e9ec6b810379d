package cmd

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/cobra"
)

// runStopped runs the server with a context that is already cancelled, so it
// goes through startup and shutdown once.
func runStopped(t *testing.T) {
	t.Helper()
	t.Setenv("AIBIDI_HOST", "127.0.0.1")
	t.Setenv("AIBIDI_PORT", "18200")
	t.Setenv("AIBIDI_AUDIT_DB", "")
	t.Setenv("AIBIDI_ACCESS_KEY", "")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	c := &cobra.Command{}
	c.SetContext(ctx)

	if err := runServer(c, nil); err != nil {
		t.Fatalf("runServer: %v", err)
	}
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
}

func TestServerLeavesWorkingDirTmpAlone(t *testing.T) {
	work := t.TempDir()
	chdir(t, work)
	t.Setenv("XDG_CACHE_HOME", t.TempDir())
	t.Setenv("AIBIDI_TMP_DIR", "")

	userFile := filepath.Join(work, "tmp", "notes", "important.txt")
	writeFile(t, userFile, "keep me")

	runStopped(t)

	if _, err := os.Stat(userFile); err != nil {
		t.Errorf("file under ./tmp was touched: %v", err)
	}
}

func TestServerCleansOnlyItsOwnFiles(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("AIBIDI_TMP_DIR", dir)

	keep := filepath.Join(dir, "notes", "keep.txt")
	stale := filepath.Join(dir, "uploads", "1700000000000-old.txt")
	writeFile(t, keep, "mine")
	writeFile(t, stale, "left over")
	writeFile(t, filepath.Join(dir, ".port"), "1234")

	runStopped(t)

	if _, err := os.Stat(keep); err != nil {
		t.Errorf("unrelated file in the runtime dir was removed: %v", err)
	}
	if _, err := os.Stat(stale); !os.IsNotExist(err) {
		t.Errorf("stale upload survived: %v", err)
	}
	if _, err := os.Stat(filepath.Join(dir, ".port")); !os.IsNotExist(err) {
		t.Errorf("port file survived shutdown: %v", err)
	}
}
