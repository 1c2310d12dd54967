package dg

import (
	"context"
	"fmt"
	"maps"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/phuslu/log"

	"github.com/eykd/dgrun/internal/dgerr"
	"github.com/eykd/dgrun/internal/logging"
	"github.com/eykd/dgrun/internal/outcome"
	"github.com/eykd/dgrun/internal/selector"
	"github.com/eykd/dgrun/internal/tclword"
)

// DefaultExecTimeout bounds each run of a built test program.
const DefaultExecTimeout = 300 * time.Second

// Family is the set of behaviors that distinguish one group of tests from
// another: defaults, extra directives, output pruning and option loops.
type Family struct {
	Name           string
	Language       string
	DefaultOptions string
	DefaultKind    Kind
	// Prune removes tool output that is never an error.
	Prune func(string) string
	// Extensions overrides DefaultExtensions per kind.
	Extensions map[Kind]string
	Directives map[string]Handler
	Finals     map[string]FinalFunc
	// OptionSets runs each test once per entry, prepending the entry to the
	// test's own options.
	OptionSets []string
	// UseDebugOptions takes the option sets from Capabilities.DebugOptions.
	UseDebugOptions bool
	// LinkOptions are passed to the tool when it links.
	LinkOptions []string
	// PCHSuffix turns on precompiled-header mode for headers with this suffix.
	PCHSuffix   string
	RequiresTLS bool
	// Feedback turns on profile-feedback mode.
	Feedback *Feedback
	// Compat turns on split-object mode: a *_main test is built from three
	// objects and run.
	Compat bool
	// ABIBaseline turns on the libstdc++ ABI check; the test file is a
	// baseline_symbols.txt.
	ABIBaseline bool
}

// Test identifies one test source.
type Test struct {
	ID     string // path relative to the suite root
	Path   string
	TmpDir string // scratch directory owned by this test
}

// Engine runs dg tests of one family.
type Engine struct {
	Family      Family
	Tool        Toolchain
	Platform    selector.Platform
	Caps        Capabilities
	Env         map[string]string
	ExecTimeout time.Duration
	// Gcov is the coverage tool used by run-gcov; DefaultGcov when empty.
	Gcov string
	// ABICheck is the abi_check program. When empty it is built with
	// "make abi_check" in LibOutDir.
	ABICheck  string
	LibOutDir string
	Logger    *log.Logger
}

// Scanner returns a scanner with the family's directives enabled.
func (e *Engine) Scanner() *Scanner {
	return NewScanner(e.Platform, e.Caps, e.Family.Directives)
}

func (e *Engine) log() *log.Logger {
	return logging.OrDiscard(e.Logger)
}

func (e *Engine) execTimeout() time.Duration {
	if e.ExecTimeout <= 0 {
		return DefaultExecTimeout
	}
	return e.ExecTimeout
}

// Run runs t and records its verdicts on res. The returned error is non-nil
// only when the test file itself is unusable (see dgerr.Class.Fatal) or ctx
// was cancelled.
func (e *Engine) Run(ctx context.Context, t Test, res *outcome.Result) error {
	if e.Family.RequiresTLS && !e.Caps.TLS {
		res.SetStatus(outcome.StatusUntested, "Thread-local storage is not supported.")
		return nil
	}
	switch {
	case e.Family.PCHSuffix != "":
		return e.runPCH(ctx, t, res)
	case e.Family.Feedback != nil:
		return e.runFeedback(ctx, t, res)
	case e.Family.Compat:
		return e.runCompat(ctx, t, res)
	case e.Family.ABIBaseline:
		return e.runABI(ctx, t, res)
	}
	for _, flags := range e.optionSets() {
		if err := ctx.Err(); err != nil {
			return err
		}
		if _, err := e.runDG(ctx, t, flags, res, dgRun{}); err != nil {
			return err
		}
	}
	return nil
}

func (e *Engine) optionSets() []string {
	if e.Family.UseDebugOptions {
		var sets []string
		for _, opts := range e.Caps.DebugOptions {
			sets = append(sets, strings.Join(opts, " "))
		}
		if len(sets) > 0 {
			return sets
		}
	}
	if len(e.Family.OptionSets) > 0 {
		return e.Family.OptionSets
	}
	return []string{""}
}

// dgRun adjusts a single pass of runDG.
type dgRun struct {
	source     string // compile this instead of the test source
	kind       Kind   // override the planned kind
	noDefaults bool   // ignore the family's default options
	keepOutput bool   // leave the output file for the caller
}

func testName(id, flags string) string {
	if flags == "" {
		return id
	}
	return id + " " + flags
}

// runDG scans, builds, verifies and optionally executes one pass of t. It
// returns the output file, which is already removed unless opt.keepOutput.
func (e *Engine) runDG(ctx context.Context, t Test, flags string, res *outcome.Result, opt dgRun) (string, error) {
	name := testName(t.ID, flags)

	defaults := e.Family.DefaultOptions
	if opt.noDefaults {
		defaults = ""
	}
	plan := NewPlan(defaults, e.Family.DefaultKind)
	if err := e.Scanner().ScanFile(t.Path, plan); err != nil {
		return "", err
	}
	if plan.Unsupported() {
		res.Record(outcome.Unsupported, name, outcome.ExpectUnset)
		return "", nil
	}

	kind := plan.Kind
	if opt.kind != "" {
		kind = opt.kind
	}
	source := t.Path
	if opt.source != "" {
		source = opt.source
	}

	options := strings.TrimSpace(flags + " " + plan.Options)
	output, file, err := e.build(ctx, t, res, source, kind, options, plan.AdditionalSources)
	if err != nil {
		return "", err
	}
	if !opt.keepOutput {
		defer removeQuietly(file)
	}

	output, err = VerifyDiagnostics(name, output, plan.Diagnostics, res)
	if err != nil {
		return file, err
	}
	CheckExcess(name, output, e.Family.Prune, res)

	if kind == Run {
		e.execute(ctx, t, name, file, plan.Expectation, res)
	}

	for _, fc := range plan.Finals {
		if err := e.runFinal(ctx, t, name, plan, fc, res); err != nil {
			return file, err
		}
	}
	return file, nil
}

// build compiles source (plus any additional sources) for kind and returns
// the tool output and the output file name.
func (e *Engine) build(ctx context.Context, t Test, res *outcome.Result, source string, kind Kind, options string, extra []string) (string, string, error) {
	flags, err := tclword.Split(options)
	if err != nil {
		return "", "", err
	}

	sources := []string{source}
	dir := filepath.Dir(t.Path)
	for _, s := range extra {
		sources = append(sources, filepath.Join(dir, s))
	}

	// -frepo tests are assembled first and then linked from the object.
	repo := slices.Contains(flags, "-frepo")
	if repo {
		kind = Assemble
	}
	file := e.outputFile(t.TmpDir, kind, source)
	output := e.compile(ctx, res, CompileRequest{
		Sources: sources, Output: file, Kind: kind, Options: flags,
		LinkOptions: e.Family.LinkOptions, Dir: t.TmpDir,
	})
	if repo {
		obj := file
		file = e.outputFile(t.TmpDir, Link, source)
		output += e.compile(ctx, res, CompileRequest{
			Sources: []string{obj}, Output: file, Kind: Link, Options: flags,
			LinkOptions: e.Family.LinkOptions, Dir: t.TmpDir,
		})
		removeQuietly(obj)
	}
	return output, file, nil
}

// compile runs the tool under test and returns its output. A silent failure
// is reported as "exit status is N" so the excess check still sees it.
func (e *Engine) compile(ctx context.Context, res *outcome.Result, req CompileRequest) string {
	r, err := e.Tool.Compile(ctx, req)
	if err != nil {
		e.log().Warn().Err(err).Strs("sources", req.Sources).Msg("compiler did not start")
		idx := res.RecordCommand(r.Argv)
		res.RecordCommandOutput(idx, -1, err.Error())
		return dgerr.Wrap(dgerr.Tool, "compiler did not start", err).Error()
	}
	idx := res.RecordCommand(r.Argv)
	res.RecordCommandOutput(idx, r.Status, r.Output)
	e.log().Debug().Strs("argv", r.Argv).Int("status", r.Status).Msg("compiled")

	if r.Output == "" && r.Status != 0 {
		return fmt.Sprintf("exit status is %d", r.Status)
	}
	return r.Output
}

// execute runs a built program and records the execution test.
func (e *Engine) execute(ctx context.Context, t Test, name, file string, exp outcome.Expectation, res *outcome.Result) {
	if _, err := os.Stat(file); err != nil {
		res.Record(outcome.Warning, name+" compilation failed to produce executable", outcome.ExpectUnset)
		return
	}

	res.Record(e.runProgram(ctx, t, file, res), name+" execution test", exp)
}

// runProgram runs a built test program in the test's scratch directory and
// returns PASS for a clean zero exit and FAIL otherwise.
func (e *Engine) runProgram(ctx context.Context, t Test, file string, res *outcome.Result) outcome.Outcome {
	r := e.runCommand(ctx, res, ExecRequest{
		Path:    file,
		Env:     maps.Clone(e.Env),
		Dir:     t.TmpDir,
		Timeout: e.execTimeout(),
	})
	e.log().Debug().Str("program", file).Int("status", r.Status).Bool("exited", r.Exited).Msg("executed")
	if r.Succeeded() {
		return outcome.Pass
	}
	return outcome.Fail
}

// runCommand executes req and logs it on res. A command that could not be
// started comes back with status -1 and the error as its output.
func (e *Engine) runCommand(ctx context.Context, res *outcome.Result, req ExecRequest) CommandResult {
	idx := res.RecordCommand(append([]string{req.Path}, req.Args...))
	r, err := e.Tool.Execute(ctx, req)
	if err != nil {
		r = CommandResult{Status: -1, Output: err.Error()}
	}
	res.RecordCommandOutput(idx, r.Status, r.Output)
	return r
}

func (e *Engine) finals() map[string]FinalFunc {
	f := CoreFinals()
	maps.Copy(f, e.Family.Finals)
	return f
}

func (e *Engine) runFinal(ctx context.Context, t Test, name string, plan *Plan, fc FinalCommand, res *outcome.Result) error {
	fn, ok := e.finals()[fc.Name]
	if !ok {
		return &dgerr.Error{Class: dgerr.Directive, Line: fc.Line, Message: "no such final command: " + fc.Name}
	}
	err := fn(ctx, &FinalContext{
		Engine:  e,
		Test:    t,
		Name:    name,
		Command: fc.Name,
		Plan:    plan,
		Result:  res,
	}, fc.Args)
	return dgerr.AtLine(err, fc.Line)
}

// outputFile names the file a build of kind leaves in dir. Precompiled
// headers keep the source extension: foo.h → foo.h.gch.
func (e *Engine) outputFile(dir string, kind Kind, source string) string {
	ext, ok := e.Family.Extensions[kind]
	if !ok {
		ext = DefaultExtensions[kind]
	}
	base := filepath.Base(source)
	if kind != Precompile {
		base = strings.TrimSuffix(base, filepath.Ext(base))
	}
	return filepath.Join(dir, base+ext)
}

// removeQuietly removes path, ignoring every error.
func removeQuietly(path string) {
	if path != "" {
		_ = os.Remove(path)
	}
}
