package api

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"path/filepath"

	"github.com/aibidi/aibidi/internal/auth"
	"github.com/aibidi/aibidi/internal/lifecycle"
	"github.com/aibidi/aibidi/internal/metrics"
	"github.com/aibidi/aibidi/internal/sessionlog"
	"github.com/aibidi/aibidi/internal/terminal"
	"github.com/aibidi/aibidi/internal/uploads"
	"github.com/aibidi/aibidi/pkg/types"
	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
)

// ServerOpts holds the dependencies of a Server.
type ServerOpts struct {
	Terminals *terminal.Manager
	Lifecycle *lifecycle.Controller
	Uploads   *uploads.Store
	Audit     *sessionlog.Store // optional

	AccessKey      string
	AccessLog      io.Writer // default stdout
	StaticDir      string
	UploadMaxBytes int64
	DefaultCols    int
	DefaultRows    int
}

// accessLogFormat is echo's default JSON access log with the path in place
// of the full URI, so access keys passed as query parameters are not logged.
const accessLogFormat = `{"time":"${time_rfc3339_nano}","id":"${id}","remote_ip":"${remote_ip}",` +
	`"host":"${host}","method":"${method}","path":"${path}","user_agent":"${user_agent}",` +
	`"status":${status},"error":"${error}","latency":${latency},"latency_human":"${latency_human}"` +
	`,"bytes_in":${bytes_in},"bytes_out":${bytes_out}}` + "\n"

// Server holds the API server dependencies.
type Server struct {
	echo       *echo.Echo
	httpServer *http.Server

	terminals *terminal.Manager
	lifecycle *lifecycle.Controller
	uploads   *uploads.Store
	audit     *sessionlog.Store

	key         auth.AccessKey
	staticDir   string
	defaultCols int
	defaultRows int

	// ctx outlives individual requests; terminal sessions end when it is cancelled.
	ctx    context.Context
	cancel context.CancelFunc
}

// NewServer creates a new API server with all routes configured.
func NewServer(opts ServerOpts) *Server {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	ctx, cancel := context.WithCancel(context.Background())
	s := &Server{
		echo:        e,
		terminals:   opts.Terminals,
		lifecycle:   opts.Lifecycle,
		uploads:     opts.Uploads,
		audit:       opts.Audit,
		key:         auth.AccessKey(opts.AccessKey),
		staticDir:   opts.StaticDir,
		defaultCols: opts.DefaultCols,
		defaultRows: opts.DefaultRows,
		ctx:         ctx,
		cancel:      cancel,
	}
	if s.defaultCols <= 0 {
		s.defaultCols = terminal.DefaultCols
	}
	if s.defaultRows <= 0 {
		s.defaultRows = terminal.DefaultRows
	}

	// Global middleware
	e.Use(middleware.Recover())
	e.Use(middleware.LoggerWithConfig(middleware.LoggerConfig{
		Format: accessLogFormat,
		Output: opts.AccessLog,
	}))
	e.Use(middleware.RequestID())
	e.Use(metrics.EchoMiddleware())

	// Health check and metrics (no auth)
	e.GET("/health", s.health)
	e.GET("/metrics", echo.WrapHandler(metrics.Handler()))

	if s.staticDir != "" {
		if info, err := os.Stat(s.staticDir); err == nil && info.IsDir() {
			e.Static("/", s.staticDir)
		}
	}
	// Registered after Static so it replaces the static "/" route.
	e.GET("/", s.index)

	api := e.Group("")
	api.Use(s.key.Middleware())

	// Terminal
	api.GET("/ws", s.terminalWebSocket)
	api.GET("/sessions", s.listSessions)
	api.DELETE("/sessions/:id", s.killSession)

	// Uploads
	api.POST("/upload", s.upload, middleware.BodyLimit(bodyLimit(opts.UploadMaxBytes)))

	return s
}

// Handler exposes the router, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.echo
}

// Serve accepts connections on ln until Shutdown is called.
func (s *Server) Serve(ln net.Listener) error {
	s.httpServer = &http.Server{Handler: s.echo}
	if err := s.httpServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown ends every terminal session and stops the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.cancel()
	if s.httpServer == nil {
		return nil
	}
	return s.httpServer.Shutdown(ctx)
}

// index serves the terminal socket to upgrade requests and the page otherwise.
func (s *Server) index(c echo.Context) error {
	if websocket.IsWebSocketUpgrade(c.Request()) {
		if err := s.key.Check(c.Request()); err != nil {
			return err
		}
		return s.terminalWebSocket(c)
	}
	if s.staticDir != "" {
		page := filepath.Join(s.staticDir, "index.html")
		if _, err := os.Stat(page); err == nil {
			return c.File(page)
		}
	}
	return c.String(http.StatusOK, "aibidi terminal relay\n")
}

func (s *Server) health(c echo.Context) error {
	return c.JSON(http.StatusOK, types.Health{
		Status:   "ok",
		Sessions: s.lifecycle.Active(),
		Shells:   s.terminals.Count(),
	})
}

// bodyLimit renders a byte count in the size syntax BodyLimit accepts.
func bodyLimit(n int64) string {
	if n <= 0 {
		return "100M"
	}
	kb := n >> 10
	if kb == 0 {
		kb = 1
	}
	return fmt.Sprintf("%dK", kb)
}
