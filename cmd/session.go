package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"maps"
	"os"
	"slices"
	"time"

	"github.com/phuslu/log"
	"github.com/spf13/cobra"

	"github.com/eykd/dgrun/internal/config"
	"github.com/eykd/dgrun/internal/dg"
	"github.com/eykd/dgrun/internal/family"
	"github.com/eykd/dgrun/internal/logging"
	"github.com/eykd/dgrun/internal/outcome"
	"github.com/eykd/dgrun/internal/report"
	"github.com/eykd/dgrun/internal/store"
	"github.com/eykd/dgrun/internal/suite"
	"github.com/eykd/dgrun/internal/toolchain"
)

// History is the part of the result store the commands use.
type History interface {
	BeginRun(ctx context.Context, target, srcdir string) (*store.Run, error)
	RecordResult(ctx context.Context, runID string, r *outcome.Result) error
	FinishRun(ctx context.Context, runID string) error
	Runs(ctx context.Context, limit int) ([]store.Run, error)
	Results(ctx context.Context, runID string) ([]*outcome.Result, error)
	Diff(ctx context.Context, oldID, newID string) (*store.Diff, error)
	Close() error
}

// SuiteIO loads configuration and builds the collaborators that the
// suite-level commands share.
type SuiteIO interface {
	LoadConfig(path string) (*config.Config, error)
	// LoadFamilies returns the built-in profiles overlaid with path; an
	// empty path means the built-ins alone.
	LoadFamilies(path string) (*family.Registry, error)
	Toolchains(cfg *config.Config) (map[string]dg.Toolchain, error)
	Probe(ctx context.Context, tc dg.Toolchain, tmpDir string, logger *log.Logger) (dg.Capabilities, error)
	OpenHistory(path string) (History, error)
	Now() time.Time
}

// osSuiteIO implements SuiteIO against the real filesystem and compilers.
type osSuiteIO struct{}

func newDefaultSuiteIO() *osSuiteIO {
	return &osSuiteIO{}
}

func (*osSuiteIO) LoadConfig(path string) (*config.Config, error) {
	return config.Load(path)
}

func (*osSuiteIO) LoadFamilies(path string) (*family.Registry, error) {
	return family.Load(path)
}

func (*osSuiteIO) Toolchains(cfg *config.Config) (map[string]dg.Toolchain, error) {
	tcs := make(map[string]dg.Toolchain, len(cfg.Compilers))
	for lang := range cfg.Compilers {
		tc, err := cfg.Toolchain(lang)
		if err != nil {
			return nil, err
		}
		tcs[lang] = tc
	}
	return tcs, nil
}

func (*osSuiteIO) Probe(ctx context.Context, tc dg.Toolchain, tmpDir string, logger *log.Logger) (dg.Capabilities, error) {
	dir, err := os.MkdirTemp(tmpDir, "dgrun-probe-")
	if err != nil {
		return dg.Capabilities{}, fmt.Errorf("creating probe directory: %w", err)
	}
	defer os.RemoveAll(dir)
	return toolchain.Probe(ctx, tc, dir, logger), nil
}

func (*osSuiteIO) OpenHistory(path string) (History, error) {
	st, err := store.Open(path)
	if err != nil {
		return nil, err
	}
	return st, nil
}

func (*osSuiteIO) Now() time.Time {
	return time.Now()
}

// configPath returns the --config value when the command has inherited one.
func configPath(cmd *cobra.Command) string {
	if f := cmd.Flags().Lookup("config"); f != nil {
		return f.Value.String()
	}
	return ""
}

// session is a loaded configuration plus everything derived from it.
type session struct {
	io     SuiteIO
	cfg    *config.Config
	reg    *family.Registry
	logger *log.Logger
}

// openSession loads the configuration and family profiles and builds the
// logger, which writes to the command's stderr.
func openSession(cmd *cobra.Command, sio SuiteIO) (*session, error) {
	cfg, err := sio.LoadConfig(configPath(cmd))
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	logger, err := logging.New(cmd.ErrOrStderr(), cfg.Logging())
	if err != nil {
		return nil, fmt.Errorf("configuring logging: %w", err)
	}
	reg, err := sio.LoadFamilies(cfg.Families)
	if err != nil {
		return nil, fmt.Errorf("loading families: %w", err)
	}
	return &session{io: sio, cfg: cfg, reg: reg, logger: logger}, nil
}

// probeToolchain picks the compiler capabilities are probed with: C when
// configured, otherwise the first language.
func probeToolchain(tcs map[string]dg.Toolchain) (string, dg.Toolchain, error) {
	if tc, ok := tcs[family.LangC]; ok {
		return family.LangC, tc, nil
	}
	langs := slices.Sorted(maps.Keys(tcs))
	if len(langs) == 0 {
		return "", nil, errors.New("no compilers configured")
	}
	return langs[0], tcs[langs[0]], nil
}

// runner builds a suite runner, probing the compiler for capabilities.
func (s *session) runner(ctx context.Context) (*suite.Runner, error) {
	tcs, err := s.io.Toolchains(s.cfg)
	if err != nil {
		return nil, fmt.Errorf("configuring compilers: %w", err)
	}
	lang, tc, err := probeToolchain(tcs)
	if err != nil {
		return nil, err
	}
	caps, err := s.io.Probe(ctx, tc, s.cfg.TmpDir, s.logger)
	if err != nil {
		return nil, fmt.Errorf("probing %s compiler: %w", lang, err)
	}
	return &suite.Runner{
		Platform:    s.cfg.Platform(),
		Caps:        caps,
		Toolchains:  tcs,
		Env:         s.cfg.Env,
		ExecTimeout: s.cfg.ExecTimeout(),
		Gcov:        s.cfg.Gcov,
		ABICheck:    s.cfg.Libstdcxx.ABICheck,
		LibOutDir:   s.cfg.Libstdcxx.OutDir,
		TmpDir:      s.cfg.TmpDir,
		Logger:      s.logger,
	}, nil
}

// history opens the configured history store.
func (s *session) history() (History, error) {
	if s.cfg.History == "" {
		return nil, errors.New("no history database configured (set history in dgrun.toml)")
	}
	h, err := s.io.OpenHistory(s.cfg.History)
	if err != nil {
		return nil, fmt.Errorf("opening history: %w", err)
	}
	return h, nil
}

// suiteRun is one pass over a set of tests.
type suiteRun struct {
	runner *suite.Runner
	tests  []suite.Test
	writer report.Writer
	// footer receives the one-line console summary; nil skips it.
	footer  io.Writer
	history History
}

// run executes the tests, streaming results to the writer and the history
// store, and returns the summary.
func (s *session) run(ctx context.Context, r suiteRun) (*report.Summary, error) {
	started := s.io.Now()
	sum := report.NewSummary("", s.cfg.Target, started)
	if r.history != nil {
		rec, err := r.history.BeginRun(ctx, s.cfg.Target, s.cfg.SrcDir)
		if err != nil {
			return nil, err
		}
		sum.RunID = rec.ID
	}

	err := r.runner.Run(ctx, r.tests, func(res *outcome.Result) error {
		sum.Add(res)
		if err := r.writer.WriteResult(res); err != nil {
			return fmt.Errorf("writing report: %w", err)
		}
		if r.history != nil {
			return r.history.RecordResult(ctx, sum.RunID, res)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	sum.Elapsed = s.io.Now().Sub(started)
	if r.history != nil {
		if err := r.history.FinishRun(ctx, sum.RunID); err != nil {
			return nil, err
		}
	}
	if err := r.writer.Close(sum); err != nil {
		return nil, fmt.Errorf("writing report: %w", err)
	}
	if r.footer != nil {
		if err := report.WriteFooter(r.footer, sum); err != nil {
			return nil, err
		}
	}
	return sum, nil
}
