package cmd

import (
	"fmt"
	"slices"
	"strings"

	"github.com/spf13/cobra"

	"github.com/eykd/dgrun/internal/outcome"
	"github.com/eykd/dgrun/internal/report"
	"github.com/eykd/dgrun/internal/suite"
)

// NewRunCmd creates the run subcommand.
func NewRunCmd(sio SuiteIO) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run [paths...]",
		Short: "Run the tests under srcdir, or only the given files and directories",
		Long: `Run discovers dg tests, builds and runs each one against the configured
compilers, and writes a report to stdout. It exits non-zero when any test
fails or cannot be interpreted.`,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			format, _ := cmd.Flags().GetString("format")
			force, _ := cmd.Flags().GetString("family")
			record, _ := cmd.Flags().GetBool("history")
			if !slices.Contains(report.Formats, format) {
				return fmt.Errorf("unknown format %q (want one of %s)", format, strings.Join(report.Formats, ", "))
			}

			s, err := openSession(cmd, sio)
			if err != nil {
				return err
			}
			tests, err := suite.Discover(s.cfg.SrcDir, args, s.reg, force)
			if err != nil {
				return fmt.Errorf("discovering tests: %w", err)
			}
			if len(tests) == 0 {
				return fmt.Errorf("no tests found under %s", sanitizePath(s.cfg.SrcDir))
			}

			ctx := cmd.Context()
			runner, err := s.runner(ctx)
			if err != nil {
				return err
			}
			w, err := report.New(format, cmd.OutOrStdout())
			if err != nil {
				return err
			}
			r := suiteRun{runner: runner, tests: tests, writer: w, footer: cmd.ErrOrStderr()}
			if record {
				h, err := s.history()
				if err != nil {
					return err
				}
				defer h.Close()
				r.history = h
			}

			sum, err := s.run(ctx, r)
			if err != nil {
				return fmt.Errorf("running tests: %w", err)
			}
			if sum.Failed() {
				failed := sum.Statuses[outcome.StatusFail] + sum.Statuses[outcome.StatusError]
				return fmt.Errorf("%d of %d tests failed", failed, sum.Tests())
			}
			return nil
		},
	}

	cmd.Flags().String("format", report.FormatDejaGNU, "Report format: "+strings.Join(report.Formats, ", "))
	cmd.Flags().String("family", "", "Run every test with this family instead of classifying by path")
	cmd.Flags().Bool("history", false, "Record the run in the history database")

	return cmd
}
