package suite_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eykd/dgrun/internal/dg"
	"github.com/eykd/dgrun/internal/family"
	"github.com/eykd/dgrun/internal/outcome"
	"github.com/eykd/dgrun/internal/selector"
	"github.com/eykd/dgrun/internal/suite"
)

// fakeTool compiles by writing the output file and runs every program
// successfully.
type fakeTool struct {
	compiles int
	execs    int
}

func (f *fakeTool) Compile(_ context.Context, req dg.CompileRequest) (dg.CommandResult, error) {
	f.compiles++
	if err := os.WriteFile(req.Output, []byte("out"), 0o644); err != nil {
		return dg.CommandResult{}, err
	}
	return dg.CommandResult{Argv: []string{"cc", "-o", req.Output}, Exited: true}, nil
}

func (f *fakeTool) Execute(_ context.Context, req dg.ExecRequest) (dg.CommandResult, error) {
	f.execs++
	return dg.CommandResult{Argv: []string{req.Path}, Exited: true}, nil
}

func (f *fakeTool) Demangle(_ context.Context, text string) (string, error) {
	return text, nil
}

func writeTree(t *testing.T, files map[string]string) string {
	t.Helper()
	root := t.TempDir()
	for name, content := range files {
		path := filepath.Join(root, filepath.FromSlash(name))
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	}
	return root
}

func ids(tests []suite.Test) []string {
	out := make([]string, len(tests))
	for i, t := range tests {
		out[i] = t.ID + "=" + t.Profile.Name
	}
	return out
}

// TestDiscover verifies that Discover classifies files by family, skips
// non-test extensions and hidden directories, and sorts by ID.
func TestDiscover(t *testing.T) {
	root := writeTree(t, map[string]string{
		"gcc.dg/b.c":                  "",
		"gcc.dg/a.c":                  "",
		"gcc.dg/a.h":                  "",
		"gcc.dg/tls/t.c":              "",
		"g++.dg/x.C":                  "",
		"g++.dg/notes.txt":            "",
		"gcc.dg/.cache/hidden.c":      "",
		"libstdc++-v3/testsuite/s.cc": "",
	})

	tests, err := suite.Discover(root, nil, family.Default(), "")
	require.NoError(t, err)
	assert.Equal(t, []string{
		"g++.dg/x.C=g++-dg",
		"gcc.dg/a.c=gcc-dg",
		"gcc.dg/b.c=gcc-dg",
		"gcc.dg/tls/t.c=gcc-dg-tls",
		"libstdc++-v3/testsuite/s.cc=libstdc++",
	}, ids(tests))
	assert.Equal(t, filepath.Join(root, "gcc.dg", "a.c"), tests[1].Path)
}

// TestDiscoverPaths verifies that explicit files and directories narrow the
// search and that duplicates collapse.
func TestDiscoverPaths(t *testing.T) {
	root := writeTree(t, map[string]string{
		"gcc.dg/a.c":     "",
		"gcc.dg/tls/t.c": "",
		"g++.dg/x.C":     "",
	})

	tests, err := suite.Discover(root, []string{
		filepath.Join(root, "gcc.dg", "tls"),
		filepath.Join(root, "gcc.dg", "tls", "t.c"),
		filepath.Join(root, "g++.dg", "x.C"),
	}, family.Default(), "")
	require.NoError(t, err)
	assert.Equal(t, []string{"g++.dg/x.C=g++-dg", "gcc.dg/tls/t.c=gcc-dg-tls"}, ids(tests))
}

// TestDiscoverForcedFamily verifies that a forced family overrides
// classification.
func TestDiscoverForcedFamily(t *testing.T) {
	root := writeTree(t, map[string]string{"misc/a.c": ""})

	tests, err := suite.Discover(root, nil, family.Default(), "gcc-dg-noncompile")
	require.NoError(t, err)
	assert.Equal(t, []string{"misc/a.c=gcc-dg-noncompile"}, ids(tests))
}

// TestDiscoverErrors verifies the rejected inputs.
func TestDiscoverErrors(t *testing.T) {
	root := writeTree(t, map[string]string{"gcc.dg/a.c": ""})
	other := t.TempDir()

	tests := []struct {
		name  string
		paths []string
		force string
		want  string
	}{
		{"unknown family", nil, "fortran", `unknown family "fortran"`},
		{"outside root", []string{other}, "", "outside the testsuite root"},
		{"missing path", []string{filepath.Join(root, "nope.c")}, "", "no such file"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := suite.Discover(root, tt.paths, family.Default(), tt.force)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func newRunner(tool dg.Toolchain) *suite.Runner {
	return &suite.Runner{
		Platform:   selector.Platform{Target: "x86_64-pc-linux-gnu"},
		Caps:       dg.Capabilities{TLS: true},
		Toolchains: map[string]dg.Toolchain{family.LangC: tool, family.LangCXX: tool},
	}
}

// TestRunner verifies that the runner runs each test through its family
// and hands results to the sink in order.
func TestRunner(t *testing.T) {
	root := writeTree(t, map[string]string{
		"gcc.dg/run.c":     "/* { dg-do run } */\nint main(void) { return 0; }\n",
		"gcc.dg/compile.c": "/* { dg-do compile } */\n",
		"gcc.dg/broken.c":  "/* { dg-do frobnicate } */\n",
	})
	tests, err := suite.Discover(root, nil, family.Default(), "")
	require.NoError(t, err)

	tool := &fakeTool{}
	r := newRunner(tool)
	r.TmpDir = t.TempDir()

	var got []*outcome.Result
	err = r.Run(context.Background(), tests, func(res *outcome.Result) error {
		got = append(got, res)
		return nil
	})
	require.NoError(t, err)
	require.Len(t, got, 3)

	assert.Equal(t, "gcc.dg/broken.c", got[0].ID)
	assert.Equal(t, outcome.StatusError, got[0].Status)
	assert.Equal(t, "gcc-dg", got[0].Family)

	assert.Equal(t, "gcc.dg/compile.c", got[1].ID)
	assert.Equal(t, outcome.StatusPass, got[1].Status)

	assert.Equal(t, "gcc.dg/run.c", got[2].ID)
	assert.Equal(t, outcome.StatusPass, got[2].Status)
	assert.Equal(t, 1, tool.execs)

	entries, err := os.ReadDir(r.TmpDir)
	require.NoError(t, err)
	assert.Empty(t, entries, "scratch directories are removed")
}

// TestRunnerMissingToolchain verifies that a language without a compiler
// stops the run.
func TestRunnerMissingToolchain(t *testing.T) {
	root := writeTree(t, map[string]string{"g++.dg/x.C": "/* { dg-do compile } */\n"})
	tests, err := suite.Discover(root, nil, family.Default(), "")
	require.NoError(t, err)

	r := newRunner(&fakeTool{})
	delete(r.Toolchains, family.LangCXX)
	_, err = r.RunTest(context.Background(), tests[0])
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no compiler for language c++")
}

// TestRunnerSinkError verifies that a failing sink stops the run.
func TestRunnerSinkError(t *testing.T) {
	root := writeTree(t, map[string]string{
		"gcc.dg/a.c": "/* { dg-do compile } */\n",
		"gcc.dg/b.c": "/* { dg-do compile } */\n",
	})
	tests, err := suite.Discover(root, nil, family.Default(), "")
	require.NoError(t, err)

	calls := 0
	boom := errors.New("disk full")
	err = newRunner(&fakeTool{}).Run(context.Background(), tests, func(*outcome.Result) error {
		calls++
		return boom
	})
	require.ErrorIs(t, err, boom)
	assert.Equal(t, 1, calls)
	assert.True(t, strings.Contains(err.Error(), "gcc.dg/a.c"))
}

// TestRunnerCancelled verifies that cancellation is returned rather than
// recorded.
func TestRunnerCancelled(t *testing.T) {
	root := writeTree(t, map[string]string{"gcc.dg/a.c": "/* { dg-do compile } */\n"})
	tests, err := suite.Discover(root, nil, family.Default(), "")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = newRunner(&fakeTool{}).RunTest(ctx, tests[0])
	require.ErrorIs(t, err, context.Canceled)
}

// cancellingTool cancels the run while the test program executes, the way
// an interrupt arrives mid-suite.
type cancellingTool struct {
	fakeTool
	cancel context.CancelFunc
}

func (c *cancellingTool) Execute(ctx context.Context, req dg.ExecRequest) (dg.CommandResult, error) {
	c.cancel()
	return dg.CommandResult{Argv: []string{req.Path}, Status: -1, Output: "killed"}, nil
}

// TestRunnerInterruptedExecution verifies that a program killed by
// cancellation is neither recorded nor reported as a failure.
func TestRunnerInterruptedExecution(t *testing.T) {
	root := writeTree(t, map[string]string{
		"gcc.dg/a.c": "/* { dg-do run } */\nint main(void) { return 0; }\n",
		"gcc.dg/b.c": "/* { dg-do run } */\nint main(void) { return 0; }\n",
	})
	tests, err := suite.Discover(root, nil, family.Default(), "")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	r := newRunner(&cancellingTool{cancel: cancel})
	r.TmpDir = t.TempDir()

	sunk := 0
	err = r.Run(ctx, tests, func(*outcome.Result) error {
		sunk++
		return nil
	})
	require.ErrorIs(t, err, context.Canceled)
	assert.Zero(t, sunk)

	entries, err := os.ReadDir(r.TmpDir)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

// TestRunnerRelativeTmpDir verifies that scratch paths handed to the tool
// are absolute even when the scratch root is relative.
func TestRunnerRelativeTmpDir(t *testing.T) {
	root := writeTree(t, map[string]string{"gcc.dg/a.c": "/* { dg-do compile } */\n"})
	tests, err := suite.Discover(root, nil, family.Default(), "")
	require.NoError(t, err)

	t.Chdir(t.TempDir())
	require.NoError(t, os.Mkdir("scratch", 0o755))
	tool := &recordingTool{}
	r := newRunner(tool)
	r.TmpDir = "scratch"

	res, err := r.RunTest(context.Background(), tests[0])
	require.NoError(t, err)
	assert.Equal(t, outcome.StatusPass, res.Status)
	require.NotEmpty(t, tool.outputs)
	for _, out := range tool.outputs {
		assert.True(t, filepath.IsAbs(out), "output %q is relative", out)
	}
}

type recordingTool struct {
	fakeTool
	outputs []string
}

func (r *recordingTool) Compile(ctx context.Context, req dg.CompileRequest) (dg.CommandResult, error) {
	r.outputs = append(r.outputs, req.Output, req.Dir)
	return r.fakeTool.Compile(ctx, req)
}
