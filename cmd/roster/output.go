package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/aretw0/roster/internal/presentation/tui"
	"golang.org/x/term"
)

func isTerminal(f *os.File) bool {
	return term.IsTerminal(int(f.Fd()))
}

// printMarkdown renders md with glamour when w is a terminal and writes it raw otherwise.
func printMarkdown(w io.Writer, md string) error {
	if f, ok := w.(*os.File); ok && isTerminal(f) {
		out, err := tui.NewRenderer()(md)
		if err == nil {
			md = out
		}
	}
	_, err := fmt.Fprint(w, md)
	return err
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
