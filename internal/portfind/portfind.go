// Package portfind picks the first free TCP port at or above a base port.
package portfind

import (
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strconv"
)

// DefaultBasePort is the first port tried.
const DefaultBasePort = 8200

// Listen binds host:port for port = base, base+1, ... trying at most
// attempts ports. It returns the bound listener and its port.
func Listen(host string, base, attempts int) (net.Listener, int, error) {
	if base <= 0 {
		base = DefaultBasePort
	}
	if attempts <= 0 {
		attempts = 1
	}

	var lastErr error
	for port := base; port < base+attempts && port <= 65535; port++ {
		ln, err := net.Listen("tcp", net.JoinHostPort(host, strconv.Itoa(port)))
		if err == nil {
			return ln, port, nil
		}
		lastErr = err
	}
	return nil, 0, fmt.Errorf("no available port in %d-%d: %w", base, base+attempts-1, lastErr)
}

// WritePortFile records port in path so helper scripts can find the server.
func WritePortFile(path string, port int) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("create port file dir: %w", err)
	}
	if err := os.WriteFile(path, []byte(strconv.Itoa(port)), 0644); err != nil {
		return fmt.Errorf("write port file: %w", err)
	}
	return nil
}
