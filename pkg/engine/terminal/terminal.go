// Package terminal answers questions about the process's standard streams.
package terminal

import (
	"os"

	"golang.org/x/term"
)

// FallbackWidth is used when stdout is not a terminal or reports no size.
const FallbackWidth = 80

// Width returns the column count of the terminal on stdout.
func Width() int {
	w, _, err := term.GetSize(int(os.Stdout.Fd()))
	if err != nil || w <= 0 {
		return FallbackWidth
	}
	return w
}

// IsTerminal reports whether f is attached to a terminal.
func IsTerminal(f *os.File) bool {
	return f != nil && term.IsTerminal(int(f.Fd()))
}
