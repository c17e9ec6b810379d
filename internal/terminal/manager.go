package terminal

import (
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"
)

// ErrNotFound is returned for IDs with no live process.
var ErrNotFound = errors.New("terminal not found")

// Manager tracks the live shell processes of all terminal sessions.
type Manager struct {
	defaults Options

	mu    sync.RWMutex
	procs map[string]*Process
}

// NewManager creates a manager that starts shells with the given defaults.
func NewManager(defaults Options) *Manager {
	return &Manager{
		defaults: defaults,
		procs:    make(map[string]*Process),
	}
}

// Spawn starts a shell sized cols x rows and registers it under a fresh ID.
// The process is unregistered automatically once it exits.
func (m *Manager) Spawn(cols, rows int) (*Process, error) {
	opts := m.defaults
	opts.Cols = cols
	opts.Rows = rows

	proc, err := Spawn(opts)
	if err != nil {
		return nil, err
	}
	proc.ID = uuid.New().String()[:8]

	m.mu.Lock()
	m.procs[proc.ID] = proc
	m.mu.Unlock()

	go func() {
		<-proc.Done()
		m.mu.Lock()
		if m.procs[proc.ID] == proc {
			delete(m.procs, proc.ID)
		}
		m.mu.Unlock()
	}()

	return proc, nil
}

// Kill terminates and unregisters a process.
func (m *Manager) Kill(id string) error {
	m.mu.Lock()
	proc, ok := m.procs[id]
	if ok {
		delete(m.procs, id)
	}
	m.mu.Unlock()

	if !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return proc.Kill()
}

// Count returns the number of live processes.
func (m *Manager) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.procs)
}

// CloseAll terminates every process.
func (m *Manager) CloseAll() {
	m.mu.Lock()
	procs := m.procs
	m.procs = make(map[string]*Process)
	m.mu.Unlock()

	for _, proc := range procs {
		_ = proc.Kill()
	}
}
