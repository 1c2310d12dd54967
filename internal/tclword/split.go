// Package tclword splits directive argument text into words the way Tcl does.
//
// Only quoting and backslash substitution are supported. Variable and
// command substitution are rejected so that a directive never silently
// means something other than what Tcl would make of it.
package tclword

import (
	"unicode"

	"github.com/eykd/dgrun/internal/dgerr"
)

// Error messages returned (wrapped in a dgerr.Lex error) by Split.
const (
	MsgSubstitution = "Unsupported Tcl substitution."
	MsgEscape       = "Unsupported Tcl escape."
	MsgTrailing     = "Invalid Tcl string."
)

var controlEscapes = map[rune]rune{
	'a': '\a',
	'b': '\b',
	'f': '\f',
	'n': '\n',
	'r': '\r',
	't': '\t',
	'v': '\v',
}

// word accumulates the characters of the word being built. A word exists
// as soon as an opening quote is seen, even if it ends up empty.
type word struct {
	buf     []rune
	started bool
}

func (w *word) add(r rune) {
	w.buf = append(w.buf, r)
	w.started = true
}

func (w *word) start() { w.started = true }

// Split separates s into words. A nil error is returned with an empty (non-nil)
// slice when s contains no words.
func Split(s string) ([]string, error) {
	in := []rune(s)
	words := []string{}
	var cur word
	inQuote := false
	braceDepth := 0

	flush := func() {
		if cur.started {
			words = append(words, string(cur.buf))
		}
		cur = word{}
	}

	for i := 0; i < len(in); {
		c := in[i]
		switch {
		case (c == '$' || c == '[') && braceDepth == 0:
			return nil, dgerr.New(dgerr.Lex, MsgSubstitution)

		case c == '"' && braceDepth == 0:
			inQuote = !inQuote
			cur.start()
			i++

		case c == '{' && !inQuote:
			if braceDepth > 0 {
				cur.add('{')
			}
			cur.start()
			braceDepth++
			i++

		case c == '}' && braceDepth > 0:
			braceDepth--
			if braceDepth > 0 {
				cur.add('}')
			}
			i++

		// Backslash-newline applies inside braces too.
		case c == '\\' && i+1 < len(in) && in[i+1] == '\n':
			i += 2
			for i < len(in) && (in[i] == ' ' || in[i] == '\t') {
				i++
			}
			// Reprocess the continuation as a single space.
			i--
			in[i] = ' '

		case c == '\\' && braceDepth == 0:
			if i+1 >= len(in) {
				return nil, dgerr.New(dgerr.Lex, MsgTrailing)
			}
			next := in[i+1]
			if ctl, ok := controlEscapes[next]; ok {
				next = ctl
			} else if next == 'x' || unicode.IsDigit(next) {
				return nil, dgerr.New(dgerr.Lex, MsgEscape)
			}
			cur.add(next)
			i += 2

		case (c == ' ' || c == '\t') && !inQuote && braceDepth == 0:
			flush()
			for i < len(in) && (in[i] == ' ' || in[i] == '\t') {
				i++
			}

		default:
			cur.add(c)
			i++
		}
	}
	flush()
	return words, nil
}
