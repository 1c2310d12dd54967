package dg

import (
	"bufio"
	"fmt"
	"io"
	"maps"
	"os"
	"regexp"
	"slices"

	"github.com/eykd/dgrun/internal/dgerr"
	"github.com/eykd/dgrun/internal/selector"
	"github.com/eykd/dgrun/internal/tclword"
)

// directiveRE recognizes a single-line "{ dg-name args }" directive. Text
// after the closing brace is ignored as long as it holds no further brace.
var directiveRE = regexp.MustCompile(`\{[ \t]+dg-([-a-z]+)[ \t]+(.*)[ \t]+\}[^}]*$`)

// maxLineBytes bounds a single source line.
const maxLineBytes = 1 << 20

// Handler applies one directive to the scan state. line is the 1-based line
// the directive appeared on; args are its lexed arguments.
type Handler func(st *ScanState, line int, args []string) error

// ScanState is what a Handler may read and modify.
type ScanState struct {
	Plan     *Plan
	Platform selector.Platform
	Caps     Capabilities
}

// Evaluate evaluates a selector against the scan's platform.
func (st *ScanState) Evaluate(sel string) (selector.Verdict, error) {
	return selector.Evaluate(sel, st.Platform)
}

// Scanner walks test sources and dispatches their directives through a
// name → Handler table fixed at construction.
type Scanner struct {
	handlers map[string]Handler
	platform selector.Platform
	caps     Capabilities
}

// NewScanner returns a Scanner that knows the core directives plus extra.
// Entries in extra override core handlers of the same name.
func NewScanner(p selector.Platform, caps Capabilities, extra map[string]Handler) *Scanner {
	h := maps.Clone(CoreDirectives())
	maps.Copy(h, extra)
	return &Scanner{handlers: h, platform: p, caps: caps}
}

// Directives returns the sorted names the scanner dispatches.
func (s *Scanner) Directives() []string {
	return slices.Sorted(maps.Keys(s.handlers))
}

// ScanFile opens path and scans it into plan.
func (s *Scanner) ScanFile(path string, plan *Plan) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("opening test source: %w", err)
	}
	defer f.Close()
	return s.Scan(f, plan)
}

// Scan reads r line by line and applies every directive found to plan.
// Lexing and directive errors abort the scan and carry the offending line.
func (s *Scanner) Scan(r io.Reader, plan *Plan) error {
	st := &ScanState{Plan: plan, Platform: s.platform, Caps: s.caps}
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), maxLineBytes)

	lineNum := 0
	for sc.Scan() {
		lineNum++
		m := directiveRE.FindStringSubmatch(sc.Text())
		if m == nil {
			continue
		}
		name := "dg-" + m[1]
		h, ok := s.handlers[name]
		if !ok {
			return &dgerr.Error{Class: dgerr.Directive, Line: lineNum, Message: "no such directive: " + name}
		}
		args, err := tclword.Split(m[2])
		if err != nil {
			return dgerr.AtLine(err, lineNum)
		}
		if err := h(st, lineNum, args); err != nil {
			return dgerr.AtLine(err, lineNum)
		}
	}
	if err := sc.Err(); err != nil {
		return fmt.Errorf("reading test source: %w", err)
	}
	return nil
}
