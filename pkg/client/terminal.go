package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"github.com/aibidi/aibidi/pkg/bidi"
	"github.com/aibidi/aibidi/pkg/types"
)

// AttachOptions configures a terminal connection.
type AttachOptions struct {
	// Direction is the initial cursor-key direction applied to input.
	Direction bidi.Direction
	// Cols and Rows, when positive, are sent as a resize right after connecting.
	Cols int
	Rows int
}

// Terminal is a live shell session on the server.
type Terminal struct {
	conn      *websocket.Conn
	direction atomic.Int32

	writeMu sync.Mutex
	out     chan []byte
	err     error // set before out is closed

	closeOnce sync.Once
}

// Attach opens a new shell session.
func (c *Client) Attach(ctx context.Context, opts AttachOptions) (*Terminal, error) {
	u, err := c.websocketURL("/ws")
	if err != nil {
		return nil, err
	}

	header := http.Header{}
	if c.accessKey != "" {
		header.Set(AccessKeyHeader, c.accessKey)
	}

	conn, resp, err := websocket.DefaultDialer.DialContext(ctx, u, header)
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("attach: %w (status %d)", err, resp.StatusCode)
		}
		return nil, fmt.Errorf("attach: %w", err)
	}

	t := &Terminal{
		conn: conn,
		out:  make(chan []byte, 64),
	}
	t.direction.Store(int32(opts.Direction))
	go t.readLoop()

	if opts.Cols > 0 && opts.Rows > 0 {
		if err := t.Resize(opts.Cols, opts.Rows); err != nil {
			t.Close()
			return nil, err
		}
	}
	return t, nil
}

func (t *Terminal) readLoop() {
	defer close(t.out)
	for {
		_, data, err := t.conn.ReadMessage()
		if err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				t.err = err
			}
			return
		}

		var msg types.Message
		if err := json.Unmarshal(data, &msg); err != nil || msg.Type != types.MessageOutput {
			continue
		}
		t.out <- []byte(msg.Data)
	}
}

// Output delivers shell output in order. It is closed when the session ends.
func (t *Terminal) Output() <-chan []byte { return t.out }

// Err returns why the session ended once Output is closed. A normal close,
// such as the shell exiting, yields nil.
func (t *Terminal) Err() error { return t.err }

// Direction returns the current input direction.
func (t *Terminal) Direction() bidi.Direction {
	return bidi.Direction(t.direction.Load())
}

// SetDirection changes the direction applied to subsequent input.
func (t *Terminal) SetDirection(d bidi.Direction) {
	t.direction.Store(int32(d))
}

// ToggleDirection flips the direction and returns the new one.
func (t *Terminal) ToggleDirection() bidi.Direction {
	for {
		old := t.direction.Load()
		next := bidi.Direction(old).Toggle()
		if t.direction.CompareAndSwap(old, int32(next)) {
			return next
		}
	}
}

// SendInput writes keystrokes to the shell, swapping horizontal cursor keys
// when the direction is RTL.
func (t *Terminal) SendInput(p []byte) error {
	data := bidi.Transform(p, t.Direction())
	return t.send(types.Message{Type: types.MessageInput, Data: string(data)})
}

// Resize reports the local terminal geometry.
func (t *Terminal) Resize(cols, rows int) error {
	if cols <= 0 || rows <= 0 {
		return fmt.Errorf("invalid terminal size %dx%d", cols, rows)
	}
	return t.send(types.Message{Type: types.MessageResize, Cols: cols, Rows: rows})
}

func (t *Terminal) send(msg types.Message) error {
	t.writeMu.Lock()
	defer t.writeMu.Unlock()
	if err := t.conn.WriteJSON(msg); err != nil {
		return fmt.Errorf("send %s: %w", msg.Type, err)
	}
	return nil
}

// ErrClosed is returned by Close when the terminal was already closed.
var ErrClosed = errors.New("terminal closed")

// Close ends the session. The server kills the shell.
func (t *Terminal) Close() error {
	err := ErrClosed
	t.closeOnce.Do(func() {
		t.writeMu.Lock()
		t.conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(time.Second))
		t.writeMu.Unlock()
		err = t.conn.Close()
	})
	return err
}
