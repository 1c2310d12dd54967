package dg

import (
	"strconv"
	"strings"

	"github.com/eykd/dgrun/internal/dgerr"
	"github.com/eykd/dgrun/internal/outcome"
	"github.com/eykd/dgrun/internal/selector"
	"github.com/eykd/dgrun/internal/tclword"
)

// CoreDirectives returns the handlers every family understands.
func CoreDirectives() map[string]Handler {
	return map[string]Handler{
		"dg-do":      dgDo,
		"dg-options": dgOptions,
		"dg-error":   expectDiagnostic(DiagError),
		"dg-warning": expectDiagnostic(DiagWarning),
		"dg-bogus":   expectDiagnostic(DiagBogus),
		"dg-final":   dgFinal,
	}
}

func dgDo(st *ScanState, _ int, args []string) error {
	if len(args) > 2 {
		return dgerr.New(dgerr.Directive, "dg-do: too many arguments")
	}
	if len(args) == 0 {
		return dgerr.New(dgerr.Directive, "dg-do: syntax error")
	}

	p := st.Plan
	if len(args) == 2 {
		v, err := st.Evaluate(args[1])
		if err != nil {
			return err
		}
		switch v {
		case selector.Selected:
			p.Selected = SelectYes
		case selector.NotSelected:
			if p.Selected != SelectYes {
				p.Selected = SelectNo
			}
		case selector.ExpectFail:
			p.Expectation = outcome.ExpectFail
		}
	} else {
		p.Selected = SelectYes
		p.Expectation = outcome.ExpectPass
	}

	kind, ok := ParseKind(args[0])
	if !ok {
		return dgerr.New(dgerr.Directive, "dg-do: syntax error")
	}
	p.Kind = kind
	return nil
}

func dgOptions(st *ScanState, _ int, args []string) error {
	if len(args) > 2 {
		return dgerr.New(dgerr.Directive, "'dg-options': too many arguments")
	}
	if len(args) == 0 {
		return dgerr.New(dgerr.Directive, "'dg-options': syntax error")
	}
	if len(args) == 2 {
		v, err := st.Evaluate(args[1])
		if err != nil {
			return err
		}
		switch v {
		case selector.Selected:
			st.Plan.Options = args[0]
		case selector.NotSelected:
		default:
			return dgerr.New(dgerr.Directive, "'dg-options': 'xfail' not allowed here")
		}
		return nil
	}
	st.Plan.Options = args[0]
	return nil
}

// expectDiagnostic returns the handler for dg-error, dg-warning and dg-bogus:
//
//	{ dg-<kind> pattern [comment [selector [line]]] }
func expectDiagnostic(kind DiagKind) Handler {
	name := "dg-" + string(kind)
	return func(st *ScanState, line int, args []string) error {
		if len(args) > 4 {
			return dgerr.New(dgerr.Directive, "'"+name+"': too many arguments")
		}
		if len(args) == 0 {
			return dgerr.New(dgerr.Directive, "'"+name+"': syntax error")
		}

		if len(args) >= 4 {
			switch l := strings.TrimSpace(args[3]); l {
			case "0":
				line = 0
			case ".":
			default:
				n, err := strconv.Atoi(l)
				if err != nil {
					return dgerr.Wrap(dgerr.Directive, "'"+name+"': bad line number "+strconv.Quote(args[3]), err)
				}
				line = n
			}
		}

		exp := outcome.ExpectPass
		if len(args) >= 3 {
			v, err := st.Evaluate(args[2])
			if err != nil {
				return err
			}
			switch v {
			case selector.NotSelected:
				return nil
			case selector.ExpectFail:
				exp = outcome.ExpectFail
			}
		}

		d := ExpectedDiagnostic{Line: line, Kind: kind, Pattern: args[0], Expectation: exp}
		if len(args) >= 2 {
			d.Comment = args[1]
		}
		st.Plan.Diagnostics = append(st.Plan.Diagnostics, d)
		return nil
	}
}

func dgFinal(st *ScanState, line int, args []string) error {
	if len(args) > 1 {
		return dgerr.New(dgerr.Directive, "dg-final: too many arguments")
	}
	if len(args) == 0 {
		return dgerr.New(dgerr.Directive, "dg-final: syntax error")
	}
	words, err := tclword.Split(args[0])
	if err != nil {
		return err
	}
	if len(words) == 0 {
		return dgerr.New(dgerr.Directive, "dg-final: empty command")
	}
	st.Plan.Finals = append(st.Plan.Finals, FinalCommand{Name: words[0], Args: words[1:], Line: line})
	return nil
}
