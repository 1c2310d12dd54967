package dg

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/eykd/dgrun/internal/dgerr"
	"github.com/eykd/dgrun/internal/outcome"
	"github.com/eykd/dgrun/internal/selector"
)

// FinalFunc runs one dg-final command.
type FinalFunc func(ctx context.Context, fc *FinalContext, args []string) error

// FinalContext is what a FinalFunc sees of the running test.
type FinalContext struct {
	Engine  *Engine
	Test    Test
	Name    string // test name used in messages
	Command string // the dg-final command name
	Plan    *Plan
	Result  *outcome.Result
}

// AssemblyFile is where a compile-kind build of the test leaves its assembly.
func (fc *FinalContext) AssemblyFile() string {
	return fc.Engine.outputFile(fc.Test.TmpDir, Compile, fc.Test.Path)
}

// Evaluate evaluates a selector against the engine's platform.
func (fc *FinalContext) Evaluate(sel string) (selector.Verdict, error) {
	return selector.Evaluate(sel, fc.Engine.Platform)
}

// CoreFinals returns the dg-final commands every family understands.
func CoreFinals() map[string]FinalFunc {
	asm := func(ctx context.Context, fc *FinalContext, args []string) error {
		return scanFile(ctx, fc, fc.AssemblyFile(), args)
	}
	file := func(ctx context.Context, fc *FinalContext, args []string) error {
		if len(args) == 0 {
			return dgerr.New(dgerr.Directive, fc.Command+": missing file name")
		}
		return scanFile(ctx, fc, filepath.Join(fc.Test.TmpDir, args[0]), args[1:])
	}
	return map[string]FinalFunc{
		"scan-assembler":         asm,
		"scan-assembler-not":     asm,
		"scan-assembler-dem":     asm,
		"scan-assembler-dem-not": asm,
		"scan-file":              file,
		"scan-file-not":          file,
	}
}

// ExtraFinals returns the family-specific dg-final commands by name.
func ExtraFinals() map[string]FinalFunc {
	return map[string]FinalFunc{
		"run-gcov": runGcov,
	}
}

// scanFile searches path for args[0], honoring an optional selector in
// args[1]. Commands ending in "not" pass when the pattern is absent; "-dem"
// commands demangle the text first.
func scanFile(ctx context.Context, fc *FinalContext, path string, args []string) error {
	if len(args) == 0 {
		return dgerr.New(dgerr.Directive, fc.Command+": missing pattern")
	}

	exp := outcome.ExpectPass
	if len(args) > 1 {
		v, err := fc.Evaluate(args[1])
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

	pattern := args[0]
	re, err := regexp.Compile(pattern)
	if err != nil {
		return dgerr.Wrap(dgerr.Pattern, fmt.Sprintf("%s: bad pattern %q", fc.Command, pattern), err)
	}

	message := fc.Name + " " + fc.Command + " " + pattern
	data, err := os.ReadFile(path)
	if err != nil {
		fc.Result.Record(outcome.Unresolved, message+": "+filepath.Base(path)+" missing", outcome.ExpectUnset)
		return nil
	}
	text := string(data)
	if strings.Contains(fc.Command, "-dem") {
		text, err = fc.Engine.Tool.Demangle(ctx, text)
		if err != nil {
			fc.Result.Record(outcome.Unresolved, message+": demangler failed: "+err.Error(), outcome.ExpectUnset)
			return nil
		}
	}

	positive := !strings.HasSuffix(fc.Command, "not")
	o := outcome.Fail
	if re.MatchString(text) == positive {
		o = outcome.Pass
	}
	fc.Result.Record(o, message, exp)
	return nil
}
