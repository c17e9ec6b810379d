package terminal

import (
	"os"
	"os/exec"
	"runtime"
	"strings"
)

// DefaultShell picks the interactive shell for this host: powershell on
// Windows, bash when available, /bin/sh otherwise.
func DefaultShell() string {
	if runtime.GOOS == "windows" {
		return "powershell.exe"
	}
	if path, err := exec.LookPath("bash"); err == nil {
		return path
	}
	return "/bin/sh"
}

// HomeDir returns the invoking user's home directory, or "" when unknown.
func HomeDir() string {
	for _, key := range []string{"HOME", "USERPROFILE"} {
		if v := os.Getenv(key); v != "" {
			return v
		}
	}
	home, _ := os.UserHomeDir()
	return home
}

func withDefaults(opts Options) Options {
	if opts.Shell == "" {
		opts.Shell = DefaultShell()
	}
	if opts.Cols <= 0 {
		opts.Cols = DefaultCols
	}
	if opts.Rows <= 0 {
		opts.Rows = DefaultRows
	}
	if opts.Dir == "" {
		opts.Dir = HomeDir()
	}
	if opts.Env == nil {
		opts.Env = os.Environ()
	}
	if opts.Term != "" && !hasEnv(opts.Env, "TERM") {
		opts.Env = append(opts.Env, "TERM="+opts.Term)
	}
	return opts
}

func hasEnv(env []string, key string) bool {
	prefix := key + "="
	for _, kv := range env {
		if strings.HasPrefix(kv, prefix) {
			return true
		}
	}
	return false
}
