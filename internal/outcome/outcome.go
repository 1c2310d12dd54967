// Package outcome models DejaGNU verdicts and folds them into a test result.
package outcome

import (
	"fmt"
	"strings"
)

// Outcome is one DejaGNU verdict.
type Outcome string

const (
	Pass        Outcome = "PASS"
	Fail        Outcome = "FAIL"
	XPass       Outcome = "XPASS"
	XFail       Outcome = "XFAIL"
	Warning     Outcome = "WARNING"
	Untested    Outcome = "UNTESTED"
	Unresolved  Outcome = "UNRESOLVED"
	Unsupported Outcome = "UNSUPPORTED"
)

// All lists every outcome in DejaGNU summary order.
var All = []Outcome{Pass, Fail, XPass, XFail, Warning, Untested, Unresolved, Unsupported}

// Description returns the phrase used in a DejaGNU summary line.
func (o Outcome) Description() string {
	switch o {
	case Pass:
		return "expected passes"
	case Fail:
		return "unexpected failures"
	case XPass:
		return "unexpected successes"
	case XFail:
		return "expected failures"
	case Warning:
		return "warnings"
	case Untested:
		return "untested testcases"
	case Unresolved:
		return "unresolved testcases"
	case Unsupported:
		return "unsupported tests"
	default:
		return strings.ToLower(string(o))
	}
}

// Expectation records whether a step is expected to fail.
type Expectation int

const (
	// ExpectUnset means no expectation was declared.
	ExpectUnset Expectation = iota
	// ExpectPass means the step is expected to pass.
	ExpectPass
	// ExpectFail means the step is expected to fail.
	ExpectFail
)

// String returns "pass", "fail", or "" for an unset expectation.
func (e Expectation) String() string {
	switch e {
	case ExpectPass:
		return "pass"
	case ExpectFail:
		return "fail"
	default:
		return ""
	}
}

// MarshalText encodes the expectation as its String form.
func (e Expectation) MarshalText() ([]byte, error) {
	return []byte(e.String()), nil
}

// UnmarshalText is the inverse of MarshalText.
func (e *Expectation) UnmarshalText(b []byte) error {
	switch string(b) {
	case "":
		*e = ExpectUnset
	case "pass":
		*e = ExpectPass
	case "fail":
		*e = ExpectFail
	default:
		return fmt.Errorf("unknown expectation %q", b)
	}
	return nil
}

// Flip turns PASS into XPASS and FAIL into XFAIL when the step was expected
// to fail. All other combinations pass through unchanged.
func Flip(o Outcome, e Expectation) Outcome {
	if e != ExpectFail {
		return o
	}
	switch o {
	case Pass:
		return XPass
	case Fail:
		return XFail
	default:
		return o
	}
}

// Status is the test-level result.
type Status string

const (
	StatusPass     Status = "PASS"
	StatusFail     Status = "FAIL"
	StatusUntested Status = "UNTESTED"
	// StatusError marks a test file the engine could not interpret.
	StatusError Status = "ERROR"
)

// Status maps a verdict to the test status it forces. The boolean is false
// for verdicts that leave a passing test passing.
func (o Outcome) Status() (Status, bool) {
	switch o {
	case Fail, XFail:
		return StatusFail, true
	case Untested, Unresolved, Unsupported:
		return StatusUntested, true
	default:
		return "", false
	}
}
