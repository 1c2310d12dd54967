package toolchain

import (
	"context"
	"fmt"
	"time"

	"github.com/eykd/dgrun/internal/dg"
)

// Defaults for GCC fields left empty.
const (
	DefaultDemangler      = "c++filt"
	DefaultCompileTimeout = 300 * time.Second
)

// GCC drives a GCC-compatible compiler driver. It implements dg.Toolchain.
type GCC struct {
	Path    string
	Flags   []string // global flags, before the test's own options
	LDFlags []string
	LibDirs []string // -L directories for link commands
	Timeout time.Duration
	// Demangler filters text for scan-assembler-dem.
	Demangler string
	Runner    CommandRunner
}

var _ dg.Toolchain = (*GCC)(nil)

func (g *GCC) runner() CommandRunner {
	if g.Runner == nil {
		return OSRunner{}
	}
	return g.Runner
}

func (g *GCC) timeout() time.Duration {
	if g.Timeout <= 0 {
		return DefaultCompileTimeout
	}
	return g.Timeout
}

// modeSwitches returns the driver flags that stop after kind.
func modeSwitches(kind dg.Kind) []string {
	switch kind {
	case dg.Preprocess:
		return []string{"-E"}
	case dg.Compile:
		return []string{"-S"}
	case dg.Assemble:
		return []string{"-c"}
	default:
		return nil
	}
}

// Argv assembles the driver command line for req:
//
//	path flags options [sources] mode [-Ldirs] -o output [sources] [ldflags linkopts]
//
// Sources follow -o only when assembling.
func (g *GCC) Argv(req dg.CompileRequest) []string {
	link := req.Kind == dg.Link || req.Kind == dg.Run

	argv := []string{g.Path}
	argv = append(argv, g.Flags...)
	argv = append(argv, req.Options...)
	if req.Kind != dg.Assemble {
		argv = append(argv, req.Sources...)
	}
	argv = append(argv, modeSwitches(req.Kind)...)
	if link {
		for _, d := range g.LibDirs {
			argv = append(argv, "-L"+d)
		}
	}
	argv = append(argv, "-o", req.Output)
	switch {
	case req.Kind == dg.Assemble:
		argv = append(argv, req.Sources...)
	case link:
		argv = append(argv, g.LDFlags...)
		argv = append(argv, req.LinkOptions...)
	}
	return argv
}

// Compile runs the driver for req in req.Dir.
func (g *GCC) Compile(ctx context.Context, req dg.CompileRequest) (dg.CommandResult, error) {
	if g.Path == "" {
		return dg.CommandResult{}, fmt.Errorf("no compiler configured")
	}
	return g.runner().Run(ctx, Command{
		Argv:    g.Argv(req),
		Dir:     req.Dir,
		Timeout: g.timeout(),
	})
}

// Execute runs a built program or a helper tool such as gcov.
func (g *GCC) Execute(ctx context.Context, req dg.ExecRequest) (dg.CommandResult, error) {
	return g.runner().Run(ctx, Command{
		Argv:    append([]string{req.Path}, req.Args...),
		Env:     req.Env,
		Dir:     req.Dir,
		Timeout: req.Timeout,
	})
}

// Demangle pipes text through the demangler.
func (g *GCC) Demangle(ctx context.Context, text string) (string, error) {
	tool := g.Demangler
	if tool == "" {
		tool = DefaultDemangler
	}
	r, err := g.runner().Run(ctx, Command{Argv: []string{tool}, Stdin: text, Timeout: g.timeout()})
	if err != nil {
		return "", err
	}
	if !r.Succeeded() {
		return "", fmt.Errorf("%s exited with status %d", tool, r.Status)
	}
	return r.Output, nil
}
