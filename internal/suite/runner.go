package suite

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/phuslu/log"

	"github.com/eykd/dgrun/internal/dg"
	"github.com/eykd/dgrun/internal/dgerr"
	"github.com/eykd/dgrun/internal/logging"
	"github.com/eykd/dgrun/internal/outcome"
	"github.com/eykd/dgrun/internal/selector"
)

// Runner runs tests one at a time, each in its own scratch directory.
type Runner struct {
	Platform selector.Platform
	Caps     dg.Capabilities
	// Toolchains maps a profile language to the compiler for it.
	Toolchains  map[string]dg.Toolchain
	Env         map[string]string
	ExecTimeout time.Duration
	Gcov        string
	// ABICheck and LibOutDir locate the libstdc++ ABI checker.
	ABICheck  string
	LibOutDir string
	// TmpDir is where per-test scratch directories are created; the OS
	// temp dir when empty.
	TmpDir string
	Logger *log.Logger

	mu       sync.Mutex
	families map[string]dg.Family
}

// Run runs tests in order and hands each result to sink. It stops early
// only when ctx is cancelled or sink fails.
func (r *Runner) Run(ctx context.Context, tests []Test, sink func(*outcome.Result) error) error {
	l := logging.OrDiscard(r.Logger)
	start := time.Now()
	counts := outcome.Counts{}
	for _, t := range tests {
		res, err := r.RunTest(ctx, t)
		if err != nil {
			return err
		}
		counts.Add(res)
		if err := sink(res); err != nil {
			return fmt.Errorf("recording %s: %w", t.ID, err)
		}
	}
	l.Info().Int("tests", len(tests)).Int("entries", counts.Total()).
		Int("pass", counts[outcome.Pass]).Int("fail", counts[outcome.Fail]).
		Dur("elapsed", time.Since(start)).Msg("suite finished")
	return nil
}

// RunTest runs one test. Errors that make the test file unusable become an
// UNRESOLVED entry and status ERROR on the result; only cancellation and
// setup failures are returned.
func (r *Runner) RunTest(ctx context.Context, t Test) (*outcome.Result, error) {
	l := logging.OrDiscard(r.Logger)
	res := outcome.NewResult(t.ID)
	res.Family = t.Profile.Name

	fam, err := r.family(t)
	if err != nil {
		return nil, err
	}
	tool, ok := r.Toolchains[t.Profile.Language]
	if !ok {
		return nil, dgerr.Newf(dgerr.Config, "no compiler for language %s", t.Profile.Language)
	}

	tmp, err := os.MkdirTemp(r.TmpDir, "dgrun-"+scratchName(t.ID)+"-")
	if err != nil {
		return nil, fmt.Errorf("creating scratch directory: %w", err)
	}
	defer os.RemoveAll(tmp)
	// Tools run inside tmp, so paths under it must not be relative.
	if tmp, err = filepath.Abs(tmp); err != nil {
		return nil, fmt.Errorf("creating scratch directory: %w", err)
	}

	e := &dg.Engine{
		Family:      fam,
		Tool:        tool,
		Platform:    r.Platform,
		Caps:        r.Caps,
		Env:         r.Env,
		ExecTimeout: r.ExecTimeout,
		Gcov:        r.Gcov,
		ABICheck:    r.ABICheck,
		LibOutDir:   r.LibOutDir,
		Logger:      r.Logger,
	}
	start := time.Now()
	err = e.Run(ctx, dg.Test{ID: t.ID, Path: t.Path, TmpDir: tmp}, res)
	res.Duration = time.Since(start)
	// A program killed by cancellation looks like an ordinary failure, so
	// the partial result is dropped whatever Run returned.
	if ctxErr := ctx.Err(); ctxErr != nil {
		l.Warn().Str("test", t.ID).Err(ctxErr).Msg("test interrupted")
		return nil, ctxErr
	}
	if err != nil {
		l.Warn().Str("test", t.ID).Str("class", string(dgerr.ClassOf(err))).Err(err).Msg("test could not be interpreted")
		res.Error(err.Error())
	}

	l.Info().Str("test", t.ID).Str("family", fam.Name).Str("status", string(res.Status)).
		Dur("duration", res.Duration).Msg("test finished")
	return res, nil
}

func (r *Runner) family(t Test) (dg.Family, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if f, ok := r.families[t.Profile.Name]; ok {
		return f, nil
	}
	f, err := t.Profile.Family()
	if err != nil {
		return dg.Family{}, err
	}
	if r.families == nil {
		r.families = map[string]dg.Family{}
	}
	r.families[t.Profile.Name] = f
	return f, nil
}

// scratchName turns a test ID into something safe inside a directory name.
func scratchName(id string) string {
	id = strings.NewReplacer("/", "_", "\\", "_", "*", "_").Replace(id)
	if len(id) > 64 {
		id = id[len(id)-64:]
	}
	return id
}
