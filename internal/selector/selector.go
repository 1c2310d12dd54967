// Package selector evaluates DejaGNU target selectors such as
// "target *-*-linux*" or "xfail arm*-*-* native".
package selector

import (
	"strings"

	"github.com/gobwas/glob"

	"github.com/eykd/dgrun/internal/dgerr"
)

// Verdict is the result of evaluating a selector.
type Verdict int

const (
	// Selected means a "target" selector matched.
	Selected Verdict = iota + 1
	// NotSelected means a "target" selector did not match.
	NotSelected
	// ExpectFail means an "xfail" selector matched.
	ExpectFail
	// ExpectPass means an "xfail" selector did not match.
	ExpectPass
)

// String returns the single-letter code DejaGNU uses for the verdict.
func (v Verdict) String() string {
	switch v {
	case Selected:
		return "S"
	case NotSelected:
		return "N"
	case ExpectFail:
		return "F"
	case ExpectPass:
		return "P"
	default:
		return "?"
	}
}

// Platform identifies the machine tests are built for and the machine they
// are built on.
type Platform struct {
	Target string
	// Build defaults to Target when empty.
	Build string
}

// BuildTriple returns the build triple, falling back to the target triple.
func (p Platform) BuildTriple() string {
	if p.Build == "" {
		return p.Target
	}
	return p.Build
}

// Native reports whether build and target are the same machine.
func (p Platform) Native() bool {
	return p.Target == p.BuildTriple()
}

// matches reports whether a single selector pattern applies to p.
func (p Platform) matches(pattern string) bool {
	if pattern == "native" && p.Native() {
		return true
	}
	g, err := glob.Compile(pattern)
	if err != nil {
		// Malformed globs match only themselves.
		return pattern == p.Target
	}
	return g.Match(p.Target)
}

// Evaluate decides what selector means on platform p.
func Evaluate(sel string, p Platform) (Verdict, error) {
	words := strings.Fields(sel)
	if len(words) == 0 || (words[0] != "target" && words[0] != "xfail") {
		return 0, dgerr.Newf(dgerr.Selector, "Invalid selector %q", strings.TrimSpace(sel))
	}

	matched := false
	for _, pat := range words[1:] {
		if p.matches(pat) {
			matched = true
			break
		}
	}

	if words[0] == "target" {
		if matched {
			return Selected, nil
		}
		return NotSelected, nil
	}
	if matched {
		return ExpectFail, nil
	}
	return ExpectPass, nil
}
