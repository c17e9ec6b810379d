package cmd

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/aibidi/aibidi/internal/api"
	"github.com/aibidi/aibidi/internal/config"
	"github.com/aibidi/aibidi/internal/lifecycle"
	"github.com/aibidi/aibidi/internal/portfind"
	"github.com/aibidi/aibidi/internal/sessionlog"
	"github.com/aibidi/aibidi/internal/terminal"
	"github.com/aibidi/aibidi/internal/uploads"
	"github.com/spf13/cobra"
)

const shutdownTimeout = 5 * time.Second

func runServer(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if autoShutdown {
		cfg.AutoShutdown = true
	}

	// Leftovers from a previous run.
	cleanRuntime(cfg)

	store, err := uploads.NewStore(cfg.UploadDir(), cfg.UploadTTL)
	if err != nil {
		return err
	}

	ln, port, err := portfind.Listen(cfg.Host, cfg.Port, cfg.PortAttempts)
	if err != nil {
		store.Close()
		return err
	}
	if err := portfind.WritePortFile(cfg.PortFile(), port); err != nil {
		log.Printf("aibidi: %v", err)
	}

	var audit *sessionlog.Store
	if cfg.AuditDB != "" {
		audit, err = sessionlog.Open(cfg.AuditDB)
		if err != nil {
			ln.Close()
			store.Close()
			return fmt.Errorf("open audit log: %w", err)
		}
		log.Printf("aibidi: audit log at %s", cfg.AuditDB)
	}

	terminals := terminal.NewManager(terminal.Options{
		Shell: cfg.Shell,
		Term:  cfg.Term,
	})

	idle := make(chan struct{})
	lc := lifecycle.New(lifecycle.Config{
		AutoShutdown: cfg.AutoShutdown,
		Delay:        cfg.ShutdownDelay,
		OnIdle:       func() { close(idle) },
	})

	srv := api.NewServer(api.ServerOpts{
		Terminals:      terminals,
		Lifecycle:      lc,
		Uploads:        store,
		Audit:          audit,
		AccessKey:      cfg.AccessKey,
		StaticDir:      cfg.StaticDir,
		UploadMaxBytes: cfg.UploadMaxBytes,
		DefaultCols:    cfg.DefaultCols,
		DefaultRows:    cfg.DefaultRows,
	})

	serveErr := make(chan error, 1)
	go func() {
		serveErr <- srv.Serve(ln)
	}()

	host := cfg.Host
	if host == "" {
		host = "localhost"
	}
	log.Printf("aibidi: terminal at http://%s:%d", host, port)
	if cfg.AutoShutdown {
		log.Printf("aibidi: auto-shutdown enabled (%s after the last session)", cfg.ShutdownDelay)
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var runErr error
	select {
	case <-ctx.Done():
		log.Println("aibidi: shutting down")
	case <-idle:
		log.Println("aibidi: idle, shutting down")
	case runErr = <-serveErr:
	}

	lc.Stop()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("aibidi: server shutdown: %v", err)
	}
	terminals.CloseAll()
	store.Close()
	if audit != nil {
		audit.Close()
	}
	cleanRuntime(cfg)

	return runErr
}

// cleanRuntime removes what the server writes under TmpDir: the upload
// directory and the port file. Anything else in TmpDir is left alone.
func cleanRuntime(cfg *config.Config) {
	if err := uploads.Purge(cfg.UploadDir()); err != nil {
		log.Printf("aibidi: %v", err)
	}
	if err := os.Remove(cfg.PortFile()); err != nil && !errors.Is(err, fs.ErrNotExist) {
		log.Printf("aibidi: remove port file: %v", err)
	}
}
