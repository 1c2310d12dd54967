// Package toolchain runs the compiler under test and the programs it builds.
package toolchain

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"maps"
	"os/exec"
	"slices"
	"strings"
	"time"

	"github.com/eykd/dgrun/internal/dg"
)

const waitDelay = 2 * time.Second

// Command is one external command invocation.
type Command struct {
	Argv    []string
	Env     map[string]string // added to the inherited environment
	Dir     string
	Stdin   string
	Timeout time.Duration // zero means no limit beyond ctx
}

// CommandRunner abstracts command execution so compilers can be tested
// without starting processes.
type CommandRunner interface {
	Run(ctx context.Context, c Command) (dg.CommandResult, error)
}

// OSRunner executes commands on the host.
type OSRunner struct{}

// Run executes c with merged environment variables and combined output
// capture. A command that starts and fails is not an error; the failure is
// in the returned status.
func (OSRunner) Run(ctx context.Context, c Command) (dg.CommandResult, error) {
	res := dg.CommandResult{Argv: slices.Clone(c.Argv)}
	if len(c.Argv) == 0 {
		return res, errors.New("empty argv")
	}
	if c.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.Timeout)
		defer cancel()
	}

	// #nosec G204 -- argv comes from the suite configuration and test options.
	cmd := exec.CommandContext(ctx, c.Argv[0], c.Argv[1:]...)
	cmd.Dir = c.Dir
	// Orphaned grandchildren must not hold the output pipe open forever.
	cmd.WaitDelay = waitDelay
	if len(c.Env) != 0 {
		merged := cmd.Environ()
		for _, k := range slices.Sorted(maps.Keys(c.Env)) {
			merged = append(merged, fmt.Sprintf("%s=%s", k, c.Env[k]))
		}
		cmd.Env = merged
	}
	cmd.Stdin = strings.NewReader(c.Stdin)
	var out bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &out

	err := cmd.Run()
	res.Output = out.String()
	var exitErr *exec.ExitError
	switch {
	case err == nil:
		res.Exited = true
	case errors.As(err, &exitErr):
		res.Status = exitErr.ExitCode()
		res.Exited = exitErr.Exited()
	default:
		return res, fmt.Errorf("run %q: %w", c.Argv, err)
	}
	if ctx.Err() != nil && !res.Exited {
		res.Output += fmt.Sprintf("\n%s: %v\n", c.Argv[0], ctx.Err())
	}
	return res, nil
}
