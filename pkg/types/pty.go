package types

// MessageType discriminates terminal WebSocket frames.
type MessageType string

const (
	MessageInput  MessageType = "input"  // client -> PTY bytes
	MessageOutput MessageType = "output" // PTY -> client bytes
	MessageResize MessageType = "resize" // client terminal geometry
)

// Message is a single JSON text frame on the terminal WebSocket.
// Data is used by input/output frames, Cols/Rows by resize frames.
type Message struct {
	Type MessageType `json:"type"`
	Data string      `json:"data,omitempty"`
	Cols int         `json:"cols,omitempty"`
	Rows int         `json:"rows,omitempty"`
}

// SessionRecord is an audit log row for one terminal session.
type SessionRecord struct {
	ID        string `json:"id"`
	PID       int    `json:"pid"`
	Shell     string `json:"shell"`
	Cols      int    `json:"cols"`
	Rows      int    `json:"rows"`
	StartedAt string `json:"startedAt"`
	EndedAt   string `json:"endedAt,omitempty"`
	BytesIn   int64  `json:"bytesIn"`
	BytesOut  int64  `json:"bytesOut"`
	Reason    string `json:"reason,omitempty"`
}

// SessionList is the response body of GET /sessions.
type SessionList struct {
	Active   int             `json:"active"`
	Sessions []SessionRecord `json:"sessions"`
}
