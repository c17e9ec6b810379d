// Package uploads stores files dropped onto the terminal so their paths can
// be typed into the shell. Every file is removed a fixed time after upload.
package uploads

import (
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

// DefaultTTL is how long an uploaded file is kept.
const DefaultTTL = 60 * time.Second

// ErrInvalidName is returned for file names with no usable base name.
var ErrInvalidName = errors.New("invalid file name")

// Store writes uploads into a single directory.
type Store struct {
	dir string
	ttl time.Duration
	now func() time.Time

	mu     sync.Mutex
	timers map[string]*time.Timer
}

// NewStore creates dir if needed. A non-positive ttl means DefaultTTL.
func NewStore(dir string, ttl time.Duration) (*Store, error) {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("resolve upload dir: %w", err)
	}
	if err := os.MkdirAll(abs, 0755); err != nil {
		return nil, fmt.Errorf("create upload dir: %w", err)
	}
	return &Store{
		dir:    abs,
		ttl:    ttl,
		now:    time.Now,
		timers: make(map[string]*time.Timer),
	}, nil
}

// Dir returns the absolute upload directory.
func (s *Store) Dir() string { return s.dir }

// Save copies r to <dir>/<unix-millis>-<base name> and schedules its
// deletion. It returns the absolute path of the stored file.
func (s *Store) Save(name string, r io.Reader) (string, error) {
	base, err := cleanName(name)
	if err != nil {
		return "", err
	}

	path := filepath.Join(s.dir, fmt.Sprintf("%d-%s", s.now().UnixMilli(), base))
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0644)
	if err != nil {
		return "", fmt.Errorf("create upload: %w", err)
	}
	if _, err := io.Copy(f, r); err != nil {
		f.Close()
		os.Remove(path)
		return "", fmt.Errorf("write upload: %w", err)
	}
	if err := f.Close(); err != nil {
		os.Remove(path)
		return "", fmt.Errorf("close upload: %w", err)
	}

	s.mu.Lock()
	s.timers[path] = time.AfterFunc(s.ttl, func() { s.expire(path) })
	s.mu.Unlock()

	return path, nil
}

func (s *Store) expire(path string) {
	s.mu.Lock()
	delete(s.timers, path)
	s.mu.Unlock()

	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		log.Printf("uploads: failed to remove %s: %v", path, err)
	}
}

// Pending returns the number of files waiting for deletion.
func (s *Store) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.timers)
}

// Close cancels all pending deletions. Files stay on disk; Purge removes
// them.
func (s *Store) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for path, t := range s.timers {
		t.Stop()
		delete(s.timers, path)
	}
}

// Purge removes dir and everything below it. A missing dir is not an error.
func Purge(dir string) error {
	if err := os.RemoveAll(dir); err != nil {
		return fmt.Errorf("purge %s: %w", dir, err)
	}
	return nil
}

func cleanName(name string) (string, error) {
	base := filepath.Base(strings.ReplaceAll(name, "\\", "/"))
	if base == "." || base == "/" || base == ".." || base == "" {
		return "", fmt.Errorf("%w %q", ErrInvalidName, name)
	}
	return base, nil
}
