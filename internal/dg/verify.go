package dg

import (
	"fmt"
	"regexp"
	"strconv"

	"github.com/eykd/dgrun/internal/dgerr"
	"github.com/eykd/dgrun/internal/outcome"
)

var newlinesRE = regexp.MustCompile(`\n+`)

// VerifyDiagnostics checks each expected diagnostic against output in order
// and returns what is left of output. Every output line a diagnostic matches
// is removed, so one line never satisfies two expectations. Matching is
// proportional to lines × expectations.
func VerifyDiagnostics(name, output string, diags []ExpectedDiagnostic, res *outcome.Result) (string, error) {
	for _, d := range diags {
		lineDesc, marker := "", ""
		if d.Line != 0 {
			lineDesc = strconv.Itoa(d.Line)
			marker = ":" + lineDesc + ":"
		}
		re, err := regexp.Compile(`(?m)^.+` + regexp.QuoteMeta(marker) + `.*(` + d.Pattern + `).*$`)
		if err != nil {
			return output, dgerr.Wrap(dgerr.Pattern, fmt.Sprintf("bad %s pattern %q", d.Kind, d.Pattern), err)
		}

		matched := re.MatchString(output)
		if matched {
			output = re.ReplaceAllLiteralString(output, "")
		}

		o := outcome.Fail
		if matched != (d.Kind == DiagBogus) {
			o = outcome.Pass
		}
		msg := fmt.Sprintf("%s %s (test for %s, line %s)", name, d.Comment, d.Kind.Description(), lineDesc)
		res.Record(o, msg, d.Expectation)
	}
	return output, nil
}

// CheckExcess prunes output, drops every newline, and records a failure if
// anything is left.
func CheckExcess(name, output string, prune func(string) string, res *outcome.Result) outcome.Outcome {
	if prune != nil {
		output = prune(output)
	}
	output = newlinesRE.ReplaceAllString(output, "")

	msg := name + " (test for excess errors)"
	if output != "" {
		return res.Record(outcome.Fail, msg, outcome.ExpectUnset)
	}
	return res.Record(outcome.Pass, msg, outcome.ExpectUnset)
}
