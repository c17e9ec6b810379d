package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

// Config holds all configuration for the aibidi server.
type Config struct {
	Host         string // listen host, empty for all interfaces
	Port         int    // first port tried
	PortAttempts int    // how many consecutive ports to try

	// Idle shutdown
	AutoShutdown  bool
	ShutdownDelay time.Duration

	// Terminal
	Shell       string // empty selects the platform default
	DefaultCols int
	DefaultRows int
	Term        string // TERM for shells when the host has none

	// Runtime files
	TmpDir         string // runtime files; only uploads/ and .port are cleaned up
	UploadTTL      time.Duration
	UploadMaxBytes int64

	StaticDir string // browser UI assets
	AccessKey string // optional shared key for terminal/upload endpoints
	AuditDB   string // SQLite audit log path, empty disables
}

// Load reads configuration from environment variables with sensible defaults.
func Load() (*Config, error) {
	cfg := &Config{
		Host:         os.Getenv("AIBIDI_HOST"),
		Port:         8200,
		PortAttempts: envOrDefaultInt("AIBIDI_PORT_ATTEMPTS", 100),

		AutoShutdown:  envBool("AIBIDI_AUTO_SHUTDOWN"),
		ShutdownDelay: envOrDefaultDuration("AIBIDI_SHUTDOWN_DELAY_MS", time.Millisecond, 3*time.Second),

		Shell:       os.Getenv("AIBIDI_SHELL"),
		DefaultCols: envOrDefaultInt("AIBIDI_DEFAULT_COLS", 80),
		DefaultRows: envOrDefaultInt("AIBIDI_DEFAULT_ROWS", 30),
		Term:        envOrDefault("AIBIDI_TERM", "xterm-256color"),

		TmpDir:         envOrDefault("AIBIDI_TMP_DIR", DefaultTmpDir()),
		UploadTTL:      envOrDefaultDuration("AIBIDI_UPLOAD_TTL_SEC", time.Second, 60*time.Second),
		UploadMaxBytes: int64(envOrDefaultInt("AIBIDI_UPLOAD_MAX_MB", 100)) << 20,

		StaticDir: envOrDefault("AIBIDI_STATIC_DIR", "public"),
		AccessKey: os.Getenv("AIBIDI_ACCESS_KEY"),
		AuditDB:   os.Getenv("AIBIDI_AUDIT_DB"),
	}

	if portStr := os.Getenv("AIBIDI_PORT"); portStr != "" {
		port, err := strconv.Atoi(portStr)
		if err != nil || port <= 0 || port > 65535 {
			return nil, fmt.Errorf("invalid AIBIDI_PORT %q", portStr)
		}
		cfg.Port = port
	}

	if abs, err := filepath.Abs(cfg.TmpDir); err == nil {
		cfg.TmpDir = abs
	}

	if cfg.DefaultCols <= 0 || cfg.DefaultRows <= 0 {
		return nil, fmt.Errorf("invalid default terminal size %dx%d", cfg.DefaultCols, cfg.DefaultRows)
	}

	return cfg, nil
}

// DefaultTmpDir is the per-user runtime directory, under the OS cache dir.
func DefaultTmpDir() string {
	base, err := os.UserCacheDir()
	if err != nil {
		base = os.TempDir()
	}
	return filepath.Join(base, "aibidi")
}

// UploadDir is where uploaded files are written.
func (c *Config) UploadDir() string {
	return filepath.Join(c.TmpDir, "uploads")
}

// PortFile is where the bound port is published.
func (c *Config) PortFile() string {
	return filepath.Join(c.TmpDir, ".port")
}

func envOrDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envOrDefaultInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

// envOrDefaultDuration reads an integer count of unit.
func envOrDefaultDuration(key string, unit, fallback time.Duration) time.Duration {
	if n := envOrDefaultInt(key, -1); n > 0 {
		return time.Duration(n) * unit
	}
	return fallback
}

func envBool(key string) bool {
	switch strings.ToLower(os.Getenv(key)) {
	case "1", "true", "yes", "on":
		return true
	}
	return false
}
