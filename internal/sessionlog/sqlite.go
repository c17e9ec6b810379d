// Package sessionlog keeps a SQLite audit trail of terminal sessions.
package sessionlog

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	_ "github.com/mattn/go-sqlite3"

	"github.com/aibidi/aibidi/pkg/types"
)

const schema = `
CREATE TABLE IF NOT EXISTS sessions (
    id TEXT PRIMARY KEY,
    pid INTEGER,
    shell TEXT,
    cols INTEGER,
    rows INTEGER,
    started_at TEXT NOT NULL DEFAULT (datetime('now')),
    ended_at TEXT,
    bytes_in INTEGER DEFAULT 0,
    bytes_out INTEGER DEFAULT 0,
    reason TEXT
);

CREATE TABLE IF NOT EXISTS events (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    session_id TEXT,
    type TEXT NOT NULL,
    payload TEXT,
    created_at TEXT NOT NULL DEFAULT (datetime('now'))
);

CREATE INDEX IF NOT EXISTS idx_events_session ON events(session_id);
`

// Store is the audit database.
type Store struct {
	db *sql.DB
}

// Open opens (or creates) the audit database at path.
func Open(path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create audit dir: %w", err)
	}

	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite: %w", err)
	}

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply sqlite schema: %w", err)
	}

	return &Store{db: db}, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// LogStart records a session start.
func (s *Store) LogStart(sessionID string, pid int, shell string, cols, rows int) error {
	_, err := s.db.Exec(
		`INSERT INTO sessions (id, pid, shell, cols, rows) VALUES (?, ?, ?, ?, ?)`,
		sessionID, pid, shell, cols, rows)
	if err != nil {
		return fmt.Errorf("failed to log session start: %w", err)
	}
	return s.logEvent(sessionID, "start", map[string]interface{}{"pid": pid, "shell": shell})
}

// LogResize records a geometry change.
func (s *Store) LogResize(sessionID string, cols, rows int) error {
	_, err := s.db.Exec(`UPDATE sessions SET cols = ?, rows = ? WHERE id = ?`, cols, rows, sessionID)
	if err != nil {
		return fmt.Errorf("failed to log resize: %w", err)
	}
	return s.logEvent(sessionID, "resize", map[string]int{"cols": cols, "rows": rows})
}

// LogSpawnError records a shell that could not be started.
func (s *Store) LogSpawnError(shell string, cause error) error {
	return s.logEvent("", "spawn_error", map[string]string{"shell": shell, "error": cause.Error()})
}

// LogEnd records a session end.
func (s *Store) LogEnd(sessionID string, bytesIn, bytesOut int64, reason string) error {
	_, err := s.db.Exec(
		`UPDATE sessions SET ended_at = datetime('now'), bytes_in = ?, bytes_out = ?, reason = ? WHERE id = ?`,
		bytesIn, bytesOut, reason, sessionID)
	if err != nil {
		return fmt.Errorf("failed to log session end: %w", err)
	}
	return s.logEvent(sessionID, "end", map[string]interface{}{
		"bytes_in":  bytesIn,
		"bytes_out": bytesOut,
		"reason":    reason,
	})
}

func (s *Store) logEvent(sessionID, eventType string, payload interface{}) error {
	data, _ := json.Marshal(payload)
	_, err := s.db.Exec(`INSERT INTO events (session_id, type, payload) VALUES (?, ?, ?)`,
		sessionID, eventType, string(data))
	return err
}

// Recent returns the newest sessions first.
func (s *Store) Recent(limit int) ([]types.SessionRecord, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.Query(`
		SELECT id, pid, shell, cols, rows, started_at, COALESCE(ended_at, ''),
		       bytes_in, bytes_out, COALESCE(reason, '')
		FROM sessions ORDER BY started_at DESC, rowid DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	records := []types.SessionRecord{}
	for rows.Next() {
		var r types.SessionRecord
		if err := rows.Scan(&r.ID, &r.PID, &r.Shell, &r.Cols, &r.Rows, &r.StartedAt, &r.EndedAt,
			&r.BytesIn, &r.BytesOut, &r.Reason); err != nil {
			return nil, err
		}
		records = append(records, r)
	}
	return records, rows.Err()
}

// EventCount returns how many events of the given type were recorded.
func (s *Store) EventCount(eventType string) (int, error) {
	var n int
	err := s.db.QueryRow(`SELECT COUNT(*) FROM events WHERE type = ?`, eventType).Scan(&n)
	return n, err
}
