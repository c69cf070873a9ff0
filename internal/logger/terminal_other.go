//go:build !linux && !darwin

package logger

// Colour output is only enabled where terminal detection is supported.
func isTerminal(fd uintptr) bool {
	return false
}
