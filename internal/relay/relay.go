// Package relay pumps bytes between one terminal process and one WebSocket
// connection for the lifetime of a session.
package relay

import (
	"context"
	"errors"
	"io"
	"log"
	"math"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"github.com/aibidi/aibidi/internal/metrics"
	"github.com/aibidi/aibidi/pkg/bidi"
	"github.com/aibidi/aibidi/pkg/types"
)

// PTY is the terminal side of a session. *terminal.Process implements it.
type PTY interface {
	Write(p []byte) error
	Resize(cols, rows int) error
	Output() <-chan []byte
	Done() <-chan struct{}
	Kill() error
}

// Conn is the client side of a session. *websocket.Conn implements it.
type Conn interface {
	ReadMessage() (messageType int, p []byte, err error)
	WriteMessage(messageType int, data []byte) error
	WriteControl(messageType int, data []byte, deadline time.Time) error
	Close() error
}

// exitDrainGrace is how long output may keep flowing after the shell exits.
// A background job still holding the terminal keeps Output open; the session
// ends anyway once this elapses.
var exitDrainGrace = 500 * time.Millisecond

// Close reasons reported in Stats.
const (
	ReasonClientClosed = "client_closed"
	ReasonShellExited  = "shell_exited"
	ReasonCanceled     = "canceled"
	ReasonClosed       = "closed"
)

// Options configures a Session.
type Options struct {
	// Direction rewrites input server-side. Browsers transform arrow keys
	// themselves, so this stays LTR unless the client asked for it.
	Direction bidi.Direction
	OnResize  func(cols, rows int)
	OnClose   func(Stats)
}

// Stats summarizes a finished session.
type Stats struct {
	ID        string
	BytesIn   int64
	BytesOut  int64
	Dropped   int64
	StartedAt time.Time
	Duration  time.Duration
	Reason    string
}

// Session relays one PTY to one connection.
type Session struct {
	ID string

	pty       PTY
	conn      Conn
	direction bidi.Direction
	onResize  func(cols, rows int)
	onClose   func(Stats)

	startedAt time.Time
	bytesIn   atomic.Int64
	bytesOut  atomic.Int64
	dropped   atomic.Int64

	closeOnce sync.Once
	reason    string
	closed    chan struct{}
	pumped    chan struct{} // closed when Output is drained
	grace     time.Duration
}

// New creates a session. Run starts relaying.
func New(id string, pty PTY, conn Conn, opts Options) *Session {
	return &Session{
		ID:        id,
		pty:       pty,
		conn:      conn,
		direction: opts.Direction,
		onResize:  opts.OnResize,
		onClose:   opts.OnClose,
		startedAt: time.Now(),
		closed:    make(chan struct{}),
		pumped:    make(chan struct{}),
		grace:     exitDrainGrace,
	}
}

// Run relays until the connection closes, the shell exits or ctx is
// canceled, then tears the session down. It returns the error that ended
// the read loop, or nil for a normal close.
func (s *Session) Run(ctx context.Context) error {
	go s.pumpOutput()

	go func() {
		select {
		case <-ctx.Done():
			s.close(ReasonCanceled)
		case <-s.closed:
		}
	}()
	go s.watchExit()

	var readErr error
	for {
		_, frame, err := s.conn.ReadMessage()
		if err != nil {
			if !isNormalClose(err) {
				readErr = err
			}
			break
		}
		s.handleFrame(frame)
	}

	// A read error after the session was closed from elsewhere is just the
	// connection being torn down.
	if s.close(ReasonClientClosed) != ReasonClientClosed {
		return nil
	}
	return readErr
}

func (s *Session) handleFrame(frame []byte) {
	msg, err := decodeMessage(frame)
	if err != nil {
		s.dropped.Add(1)
		metrics.FramesTotal.WithLabelValues("malformed").Inc()
		return
	}

	switch msg.Type {
	case types.MessageInput:
		metrics.FramesTotal.WithLabelValues("input").Inc()
		data := bidi.Transform([]byte(msg.Data), s.direction)
		s.bytesIn.Add(int64(len(data)))
		metrics.RelayBytesTotal.WithLabelValues("in").Add(float64(len(data)))
		if err := s.pty.Write(data); err != nil {
			log.Printf("relay: session %s: %v", s.ID, err)
		}
	case types.MessageResize:
		metrics.FramesTotal.WithLabelValues("resize").Inc()
		if msg.Cols <= 0 || msg.Rows <= 0 || msg.Cols > math.MaxUint16 || msg.Rows > math.MaxUint16 {
			s.dropped.Add(1)
			return
		}
		if err := s.pty.Resize(msg.Cols, msg.Rows); err != nil {
			log.Printf("relay: session %s: %v", s.ID, err)
			return
		}
		if s.onResize != nil {
			s.onResize(msg.Cols, msg.Rows)
		}
	default:
		metrics.FramesTotal.WithLabelValues("ignored").Inc()
	}
}

// pumpOutput is the only writer of data frames on the connection.
func (s *Session) pumpOutput() {
	var pending []byte
	writable := true
	for chunk := range s.pty.Output() {
		if !writable {
			continue
		}
		if len(pending) > 0 {
			chunk = append(append([]byte(nil), pending...), chunk...)
			pending = nil
		}
		chunk, pending = splitUTF8(chunk)
		if len(chunk) == 0 {
			continue
		}
		if err := s.send(chunk); err != nil {
			writable = false
		}
	}
	if writable && len(pending) > 0 {
		_ = s.send(pending)
	}

	close(s.pumped)
	// Output closed: the shell is gone.
	s.close(ReasonShellExited)
}

// watchExit ends the session when the shell exits, after letting pending
// output drain for up to the grace period.
func (s *Session) watchExit() {
	select {
	case <-s.pty.Done():
	case <-s.closed:
		return
	}
	select {
	case <-s.pumped:
	case <-s.closed:
	case <-time.After(s.grace):
	}
	s.close(ReasonShellExited)
}

func (s *Session) send(chunk []byte) error {
	frame, err := encodeOutput(chunk)
	if err != nil {
		return err
	}
	if err := s.conn.WriteMessage(websocket.TextMessage, frame); err != nil {
		return err
	}
	s.bytesOut.Add(int64(len(chunk)))
	metrics.RelayBytesTotal.WithLabelValues("out").Add(float64(len(chunk)))
	return nil
}

// Close tears the session down. Only the first call has any effect.
func (s *Session) Close() {
	s.close(ReasonClosed)
}

// close runs teardown once and returns the reason recorded by the first call.
func (s *Session) close(reason string) string {
	s.closeOnce.Do(func() {
		s.reason = reason
		_ = s.pty.Kill()
		if reason == ReasonShellExited {
			_ = s.conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, "shell exited"),
				time.Now().Add(time.Second))
		}
		_ = s.conn.Close()
		close(s.closed)

		if s.onClose != nil {
			s.onClose(s.Stats(reason))
		}
	})
	return s.reason
}

// Done is closed once the session has been torn down.
func (s *Session) Done() <-chan struct{} { return s.closed }

// Stats returns the session counters so far.
func (s *Session) Stats(reason string) Stats {
	return Stats{
		ID:        s.ID,
		BytesIn:   s.bytesIn.Load(),
		BytesOut:  s.bytesOut.Load(),
		Dropped:   s.dropped.Load(),
		StartedAt: s.startedAt,
		Duration:  time.Since(s.startedAt),
		Reason:    reason,
	}
}

func isNormalClose(err error) bool {
	return errors.Is(err, io.EOF) ||
		websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway, websocket.CloseNoStatusReceived)
}
