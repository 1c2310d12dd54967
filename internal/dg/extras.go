package dg

import (
	"strings"

	"github.com/eykd/dgrun/internal/dgerr"
	"github.com/eykd/dgrun/internal/outcome"
)

// ExtraDirectives returns the family-specific directive handlers by name.
// Families opt in to the ones they need.
func ExtraDirectives() map[string]Handler {
	return map[string]Handler{
		"dg-additional-sources": dgAdditionalSources,
		"dg-additional-files":   dgAdditionalFiles,
		"dg-require-weak":       dgRequireWeak,
		"dg-require-iconv":      dgRequireIconv,
		"dg-require-tls":        dgRequireTLS,
	}
}

func dgAdditionalSources(st *ScanState, _ int, args []string) error {
	if len(args) == 0 {
		return dgerr.New(dgerr.Directive, "dg-additional-sources: syntax error")
	}
	st.Plan.AdditionalSources = strings.Fields(args[0])
	return nil
}

// dgAdditionalFiles only matters when files must be copied to a remote
// target, which dgrun does not do.
func dgAdditionalFiles(*ScanState, int, []string) error {
	return nil
}

func dgRequireWeak(st *ScanState, _ int, _ []string) error {
	if !st.Caps.Weak {
		st.Plan.Selected = SelectNo
	}
	return nil
}

func dgRequireIconv(st *ScanState, _ int, _ []string) error {
	if !st.Caps.Iconv {
		st.Plan.Selected = SelectNo
		st.Plan.Expectation = outcome.ExpectPass
	}
	return nil
}

func dgRequireTLS(st *ScanState, _ int, _ []string) error {
	if !st.Caps.TLS {
		st.Plan.Selected = SelectNo
	}
	return nil
}
