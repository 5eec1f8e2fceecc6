package acceptor

import (
	"errors"
	"strings"
	"unicode"
	"unicode/utf8"
)

// ErrInvalidUTF8 rejects protocol lines that are not valid UTF-8.
var ErrInvalidUTF8 = errors.New("line contains invalid UTF-8 sequences")

// SanitizeLine validates a protocol line and strips control characters other
// than tab, so the text is safe to log and to report as a session's command.
func SanitizeLine(line string) (string, error) {
	if !utf8.ValidString(line) {
		return "", ErrInvalidUTF8
	}

	// Fast path: if no control chars, return as is.
	clean := true
	for _, r := range line {
		if unicode.IsControl(r) && r != '\t' {
			clean = false
			break
		}
	}
	if clean {
		return strings.TrimSpace(line), nil
	}

	var b strings.Builder
	b.Grow(len(line))
	for _, r := range line {
		if !unicode.IsControl(r) || r == '\t' {
			b.WriteRune(r)
		}
	}
	return strings.TrimSpace(b.String()), nil
}
