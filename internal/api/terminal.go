package api

import (
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/aibidi/aibidi/internal/metrics"
	"github.com/aibidi/aibidi/internal/relay"
	"github.com/aibidi/aibidi/internal/terminal"
	"github.com/aibidi/aibidi/pkg/bidi"
	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // access is gated by the access key, not the origin
	},
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
}

// terminalWebSocket gives every connection its own shell and relays between them.
func (s *Server) terminalWebSocket(c echo.Context) error {
	direction := bidi.ParseDirection(c.QueryParam("dir"))

	ws, err := upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		// Upgrade has already written the error response.
		log.Printf("terminal: upgrade: %v", err)
		return nil
	}

	release := s.lifecycle.Accept()

	proc, err := s.terminals.Spawn(s.defaultCols, s.defaultRows)
	if err != nil {
		s.rejectSpawn(ws, err)
		release()
		return nil
	}

	if s.audit != nil {
		if err := s.audit.LogStart(proc.ID, proc.Pid(), proc.Shell, s.defaultCols, s.defaultRows); err != nil {
			log.Printf("terminal: audit: %v", err)
		}
	}
	log.Printf("terminal: session %s started (pid %d, %s)", proc.ID, proc.Pid(), proc.Shell)

	sess := relay.New(proc.ID, proc, ws, relay.Options{
		Direction: direction,
		OnResize: func(cols, rows int) {
			if s.audit != nil {
				if err := s.audit.LogResize(proc.ID, cols, rows); err != nil {
					log.Printf("terminal: audit: %v", err)
				}
			}
		},
		OnClose: func(st relay.Stats) {
			release()
			metrics.SessionsTotal.WithLabelValues(st.Reason).Inc()
			metrics.SessionDuration.Observe(st.Duration.Seconds())
			if s.audit != nil {
				if err := s.audit.LogEnd(st.ID, st.BytesIn, st.BytesOut, st.Reason); err != nil {
					log.Printf("terminal: audit: %v", err)
				}
			}
			log.Printf("terminal: session %s closed (%s, in=%d out=%d dropped=%d)",
				st.ID, st.Reason, st.BytesIn, st.BytesOut, st.Dropped)
		},
	})

	if err := sess.Run(s.ctx); err != nil {
		log.Printf("terminal: session %s: connection error: %v", proc.ID, err)
	}
	return nil
}

// rejectSpawn reports a failed shell start to the client and closes the socket.
func (s *Server) rejectSpawn(ws *websocket.Conn, err error) {
	shell := ""
	var spawnErr *terminal.SpawnError
	if errors.As(err, &spawnErr) {
		shell = spawnErr.Shell
	}

	log.Printf("terminal: %v", err)
	metrics.SpawnErrorsTotal.Inc()
	if s.audit != nil {
		if auditErr := s.audit.LogSpawnError(shell, err); auditErr != nil {
			log.Printf("terminal: audit: %v", auditErr)
		}
	}

	_ = ws.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseInternalServerErr, "failed to start shell"),
		time.Now().Add(time.Second))
	_ = ws.Close()
}
