package cmd

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// sanitizePath makes a path or test ID safe for line-oriented terminal
// output: control characters (C0, DEL and C1) and invalid UTF-8 become '?'.
func sanitizePath(s string) string {
	if !utf8.ValidString(s) {
		s = strings.ToValidUTF8(s, "?")
	}
	return strings.Map(func(r rune) rune {
		if unicode.IsControl(r) {
			return '?'
		}
		return r
	}, s)
}
