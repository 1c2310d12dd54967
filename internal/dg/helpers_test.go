package dg_test

import (
	"context"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"testing"

	"github.com/eykd/dgrun/internal/dg"
	"github.com/eykd/dgrun/internal/outcome"
	"github.com/eykd/dgrun/internal/selector"
)

// ─── Test double ─────────────────────────────────────────────────────────────

// fakeTool is a Toolchain that never starts a process. By default every
// compile succeeds silently and creates its output file; every execution
// exits 0.
type fakeTool struct {
	compiles []dg.CompileRequest
	execs    []dg.ExecRequest

	compile  func(req dg.CompileRequest) (dg.CommandResult, error)
	execute  func(req dg.ExecRequest) (dg.CommandResult, error)
	demangle func(text string) string
}

func (f *fakeTool) Compile(_ context.Context, req dg.CompileRequest) (dg.CommandResult, error) {
	f.compiles = append(f.compiles, req)
	if f.compile != nil {
		return f.compile(req)
	}
	if err := os.WriteFile(req.Output, []byte("output of "+string(req.Kind)), 0o644); err != nil {
		return dg.CommandResult{}, err
	}
	return dg.CommandResult{Argv: compileArgv(req), Exited: true}, nil
}

func (f *fakeTool) Execute(_ context.Context, req dg.ExecRequest) (dg.CommandResult, error) {
	f.execs = append(f.execs, req)
	if f.execute != nil {
		return f.execute(req)
	}
	return dg.CommandResult{Argv: append([]string{req.Path}, req.Args...), Exited: true}, nil
}

func (f *fakeTool) Demangle(_ context.Context, text string) (string, error) {
	if f.demangle != nil {
		return f.demangle(text), nil
	}
	return text, nil
}

func compileArgv(req dg.CompileRequest) []string {
	argv := append([]string{"cc"}, req.Options...)
	argv = append(argv, req.Sources...)
	return append(argv, "-o", req.Output)
}

// ─── Fixtures ────────────────────────────────────────────────────────────────

var native = selector.Platform{Target: "x86_64-pc-linux-gnu"}

// writeSource writes content to dir/name and returns the path.
func writeSource(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("MkdirAll: %v", err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	return path
}

// newTest writes a test source and returns a dg.Test with its own scratch dir.
func newTest(t *testing.T, name, content string) dg.Test {
	t.Helper()
	src := t.TempDir()
	path := writeSource(t, src, name, content)
	return dg.Test{ID: name, Path: path, TmpDir: t.TempDir()}
}

func newEngine(tool dg.Toolchain) *dg.Engine {
	return &dg.Engine{
		Family:   dg.Family{Name: "test"},
		Tool:     tool,
		Platform: native,
		Caps:     dg.AllCapabilities(),
	}
}

// entryLines renders res entries as "OUTCOME: message" strings.
func entryLines(res *outcome.Result) []string {
	lines := make([]string, len(res.Entries))
	for i, e := range res.Entries {
		lines[i] = e.String()
	}
	return lines
}

func lines(s ...string) string {
	return strings.Join(s, "\n") + "\n"
}

func regexpReplace(pattern, s string) string {
	return regexp.MustCompile(pattern).ReplaceAllString(s, "")
}
