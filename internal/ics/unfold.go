package ics

import "strings"

// UnfoldLines splits raw ICS text into logical content lines, reversing
// RFC 5545 line folding: a line starting with a space or tab continues the
// previous line, with the single leading whitespace character stripped.
//
// Both CRLF and bare LF endings are accepted, and text after the final
// newline is treated as a last line. Malformed folding (a continuation with
// nothing to continue) is concatenated best-effort rather than rejected;
// real-world feeds are not reliably compliant.
func UnfoldLines(raw string) []string {
	if raw == "" {
		return nil
	}

	lines := make([]string, 0, 64)
	var current strings.Builder
	haveCurrent := false

	flush := func() {
		if haveCurrent {
			lines = append(lines, current.String())
			current.Reset()
			haveCurrent = false
		}
	}

	for len(raw) > 0 {
		line := raw
		if i := strings.IndexByte(raw, '\n'); i >= 0 {
			line = raw[:i]
			raw = raw[i+1:]
		} else {
			raw = ""
		}
		line = strings.TrimSuffix(line, "\r")

		if len(line) > 0 && (line[0] == ' ' || line[0] == '\t') {
			// Continuation of the previous line.
			current.WriteString(line[1:])
			haveCurrent = true
			continue
		}

		flush()
		if line == "" {
			continue
		}
		current.WriteString(line)
		haveCurrent = true
	}
	flush()

	return lines
}
