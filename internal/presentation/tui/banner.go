package tui

import (
	"fmt"
	"io"
	"strings"

	"github.com/muesli/termenv"
)

// PrintBanner writes the roster ASCII banner followed by the version.
func PrintBanner(w io.Writer, version string) {
	p := termenv.ColorProfile()
	lines := []struct {
		text  string
		color string
	}{
		{" _ __ ___  ___| |_ ___ _ __ ", "#38bdf8"},
		{"| '__/ _ \\/ __| __/ _ \\ '__|", "#22d3ee"},
		{"| | | (_) \\__ \\ ||  __/ |   ", "#2dd4bf"},
		{"|_|  \\___/|___/\\__\\___|_|   ", "#34d399"},
	}

	fmt.Fprintln(w)
	for _, l := range lines {
		fmt.Fprintln(w, termenv.String(l.text).Foreground(p.Color(l.color)))
	}
	fmt.Fprintln(w, termenv.String("  v"+strings.TrimSpace(version)).Faint())
	fmt.Fprintln(w)
}
