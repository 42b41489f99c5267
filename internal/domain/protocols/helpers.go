package protocols

import "strings"

// truncate caps evidence strings at max runes, appending an ellipsis marker
// when something was cut.
func truncate(s string, max int) string {
	s = strings.TrimSpace(s)
	if max <= 0 {
		return s
	}
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	if max <= 3 {
		return string(runes[:max])
	}
	return string(runes[:max-3]) + "..."
}

// splitLines splits file content preserving 1-based line numbering.
func splitLines(content []byte) []string {
	return strings.Split(string(content), "\n")
}

// isCommentLine reports whether a line is a plain comment. Used to keep
// secret detection away from commented-out examples.
func isCommentLine(line string) bool {
	stripped := strings.TrimSpace(line)
	return strings.HasPrefix(stripped, "#") ||
		strings.HasPrefix(stripped, "//") ||
		strings.HasPrefix(stripped, "*") ||
		strings.HasPrefix(stripped, "--")
}

// indentWidth counts leading spaces, expanding tabs to four columns.
func indentWidth(line string) int {
	w := 0
	for _, r := range line {
		switch r {
		case ' ':
			w++
		case '\t':
			w += 4
		default:
			return w
		}
	}
	return w
}

// round1 keeps scores stable across platforms by rounding to one decimal.
func round1(v float64) float64 {
	if v < 0 {
		return float64(int(v*10-0.5)) / 10
	}
	return float64(int(v*10+0.5)) / 10
}
