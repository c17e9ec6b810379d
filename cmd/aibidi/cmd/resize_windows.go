//go:build windows

package cmd

// watchResize is a no-op on Windows, which has no SIGWINCH.
func watchResize(fn func()) (stop func()) {
	return func() {}
}
