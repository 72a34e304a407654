//go:build !linux && !darwin && !freebsd && !openbsd && !netbsd

package logger

// Color output is only enabled on platforms where a termios probe exists.
func isTerminal(fd uintptr) bool {
	return false
}
