package util

import (
	"golang.org/x/term"
)

// IsTerminal reports whether the file descriptor is attached to a
// terminal; progress bars are suppressed when output is piped
func IsTerminal(fd uintptr) bool {
	return term.IsTerminal(int(fd))
}
