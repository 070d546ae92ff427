package tui

import (
	"fmt"
	"io"

	"github.com/muesli/termenv"
)

// PrintBanner writes the outline banner with the version to w.
func PrintBanner(w io.Writer, version string) {
	p := termenv.ColorProfile()
	lines := []struct {
		text  string
		color string
	}{
		{"   ___        _   _ _            ", "#818cf8"},
		{"  / _ \\ _   _| |_| (_)_ __   ___ ", "#a78bfa"},
		{" | | | | | | | __| | | '_ \\ / _ \\", "#c084fc"},
		{" | |_| | |_| | |_| | | | | |  __/", "#e879f9"},
		{"  \\___/ \\__,_|\\__|_|_|_| |_|\\___|", "#f472b6"},
	}

	fmt.Fprintln(w)
	for _, l := range lines {
		fmt.Fprintln(w, termenv.String(l.text).Foreground(p.Color(l.color)))
	}
	fmt.Fprintln(w, termenv.String("  "+version).Faint())
	fmt.Fprintln(w)
}
