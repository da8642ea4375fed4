package tui

import (
	"fmt"
	"io"

	"github.com/muesli/termenv"
)

// PrintBanner writes the Arbor ASCII art banner to w.
func PrintBanner(w io.Writer) {
	p := termenv.EnvColorProfile()
	// Green gradient, root to canopy.
	lines := []struct {
		text, color string
	}{
		{"     _         _               ", "#14532d"},
		{"    / \\   _ __| |__   ___  _ __ ", "#166534"},
		{"   / _ \\ | '__| '_ \\ / _ \\| '__|", "#15803d"},
		{"  / ___ \\| |  | |_) | (_) | |   ", "#16a34a"},
		{" /_/   \\_\\_|  |_.__/ \\___/|_|   ", "#22c55e"},
	}

	fmt.Fprintln(w)
	for _, l := range lines {
		fmt.Fprintln(w, termenv.String(l.text).Foreground(p.Color(l.color)))
	}
	fmt.Fprintln(w)
}
