package dg

import (
	"context"
	"time"
)

// CompileRequest asks the tool under test to turn Sources into Output.
type CompileRequest struct {
	Sources []string
	Output  string
	Kind    Kind
	Options []string
	// LinkOptions are appended to link commands only.
	LinkOptions []string
	// Dir is the scratch directory the tool runs in.
	Dir string
}

// ExecRequest runs a program with no stdin and combined stdout/stderr.
type ExecRequest struct {
	Path    string
	Args    []string
	Env     map[string]string // added to the inherited environment
	Dir     string
	Timeout time.Duration
}

// CommandResult is what came back from an external command.
type CommandResult struct {
	Argv   []string
	Status int
	// Exited is false when the process was killed by a signal or a timeout.
	Exited bool
	Output string
}

// Succeeded reports a normal exit with status 0.
func (r CommandResult) Succeeded() bool {
	return r.Exited && r.Status == 0
}

// Toolchain is the compiler and execution environment tests run against.
// Returned errors mean the command could not be started at all; a command
// that ran and failed reports that through CommandResult.
type Toolchain interface {
	Compile(ctx context.Context, req CompileRequest) (CommandResult, error)
	Execute(ctx context.Context, req ExecRequest) (CommandResult, error)
	// Demangle filters text through a C++ symbol demangler.
	Demangle(ctx context.Context, text string) (string, error)
}
