// Package dg implements the DejaGNU "dg" test driver: it scans a test source
// for { dg-... } directives into a Plan, builds and runs the test through a
// Toolchain, and records verdicts on an outcome.Result.
package dg

import (
	"fmt"

	"github.com/eykd/dgrun/internal/outcome"
)

// Kind is what the tool under test is asked to produce.
type Kind string

const (
	Preprocess Kind = "preprocess"
	Compile    Kind = "compile"
	Assemble   Kind = "assemble"
	Link       Kind = "link"
	Run        Kind = "run"
	// Precompile builds a precompiled header. It is never valid in dg-do.
	Precompile Kind = "precompile"
)

// Kinds lists the kinds accepted by dg-do.
var Kinds = []Kind{Preprocess, Compile, Assemble, Link, Run}

// ParseKind returns the Kind named by s if dg-do accepts it.
func ParseKind(s string) (Kind, bool) {
	for _, k := range Kinds {
		if string(k) == s {
			return k, true
		}
	}
	return "", false
}

// DefaultExtensions maps each kind to the extension of its output file.
var DefaultExtensions = map[Kind]string{
	Preprocess: ".i",
	Compile:    ".s",
	Assemble:   ".o",
	Link:       ".exe",
	Run:        ".exe",
	Precompile: ".gch",
}

// Selection is the tri-state "should this test run here" flag.
type Selection int

const (
	SelectUnknown Selection = iota
	SelectYes
	SelectNo
)

// MarshalText encodes the selection as "", "yes" or "no".
func (s Selection) MarshalText() ([]byte, error) {
	switch s {
	case SelectYes:
		return []byte("yes"), nil
	case SelectNo:
		return []byte("no"), nil
	default:
		return []byte(""), nil
	}
}

// UnmarshalText is the inverse of MarshalText.
func (s *Selection) UnmarshalText(b []byte) error {
	switch string(b) {
	case "":
		*s = SelectUnknown
	case "yes":
		*s = SelectYes
	case "no":
		*s = SelectNo
	default:
		return fmt.Errorf("unknown selection %q", b)
	}
	return nil
}

// DiagKind is the kind of an expected diagnostic.
type DiagKind string

const (
	DiagError   DiagKind = "error"
	DiagWarning DiagKind = "warning"
	DiagBogus   DiagKind = "bogus"
	DiagBuild   DiagKind = "build"
)

// Description returns the phrase used in verification messages.
func (k DiagKind) Description() string {
	switch k {
	case DiagError:
		return "errors"
	case DiagWarning:
		return "warnings"
	case DiagBogus:
		return "bogus messages"
	case DiagBuild:
		return "build failure"
	default:
		return string(k)
	}
}

// ExpectedDiagnostic is one dg-error, dg-warning or dg-bogus directive.
type ExpectedDiagnostic struct {
	Line        int                 `json:"line,omitempty"` // 0 matches any line
	Kind        DiagKind            `json:"kind"`
	Pattern     string              `json:"pattern"`
	Comment     string              `json:"comment,omitempty"`
	Expectation outcome.Expectation `json:"expectation"`
}

// FinalCommand is a dg-final command, run after the build.
type FinalCommand struct {
	Name string   `json:"name"`
	Args []string `json:"args"`
	Line int      `json:"line"`
}

// Plan accumulates what the directives of one test file ask for.
type Plan struct {
	Kind        Kind                 `json:"kind"`
	Selected    Selection            `json:"selected"`
	Expectation outcome.Expectation  `json:"expectation"`
	Options     string               `json:"options"`
	Diagnostics []ExpectedDiagnostic `json:"diagnostics"`
	Finals      []FinalCommand       `json:"finals"`
	// AdditionalSources are extra files, relative to the test's directory,
	// compiled together with it.
	AdditionalSources []string `json:"additionalSources,omitempty"`
}

// NewPlan returns an empty plan seeded with the family defaults. An empty
// kind defaults to Compile.
func NewPlan(defaultOptions string, defaultKind Kind) *Plan {
	if defaultKind == "" {
		defaultKind = Compile
	}
	return &Plan{
		Kind:        defaultKind,
		Options:     defaultOptions,
		Diagnostics: []ExpectedDiagnostic{},
		Finals:      []FinalCommand{},
	}
}

// Unsupported reports whether a directive ruled the test out on this target.
func (p *Plan) Unsupported() bool {
	return p.Selected == SelectNo
}
